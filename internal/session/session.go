// Package session manages the single active campaign per process. A Manager
// holds at most one open store; opening a new campaign closes the previous
// one first, and the previous handle is released even when the subsequent
// open fails.
package session

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/mwinters/loreboard/internal/storage"
)

// Session binds one open campaign file to its store and optional watcher.
type Session struct {
	store   *storage.Store
	path    string
	watcher *FileWatcher
}

// Store returns the session's campaign store.
func (s *Session) Store() *storage.Store { return s.store }

// Path returns the campaign file path.
func (s *Session) Path() string { return s.path }

func (s *Session) close() error {
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

// Config controls Manager behavior.
type Config struct {
	// WatchFiles enables the on-disk change watcher for open campaigns.
	WatchFiles bool

	// Logger for session lifecycle events.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WatchFiles: true,
		Logger:     log.New(os.Stderr, "[session] ", log.LstdFlags),
	}
}

// Manager owns the process's current session.
type Manager struct {
	mu      sync.Mutex
	current *Session
	config  *Config
}

// NewManager creates a session manager.
func NewManager(config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	return &Manager{config: config}
}

// Open opens the campaign at path, closing any current session first. The
// close happens before the open is attempted, so a failed open never leaks
// the previous handle.
func (m *Manager) Open(path string) (*Session, error) {
	return m.swap(path, storage.Open)
}

// Create initializes a new campaign at path, closing any current session
// first.
func (m *Manager) Create(path string) (*Session, error) {
	return m.swap(path, storage.Create)
}

func (m *Manager) swap(path string, open func(string) (*storage.Store, error)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if err := m.current.close(); err != nil {
			m.config.Logger.Printf("warning: failed to close previous campaign: %v", err)
		}
		m.current = nil
	}

	store, err := open(path)
	if err != nil {
		return nil, err
	}

	sess := &Session{store: store, path: path}
	if m.config.WatchFiles {
		watcher, err := NewFileWatcher(path, m.config.Logger)
		if err != nil {
			m.config.Logger.Printf("warning: campaign file watcher unavailable: %v", err)
		} else {
			sess.watcher = watcher
		}
	}

	m.current = sess
	m.config.Logger.Printf("opened campaign %s", path)
	return sess, nil
}

// Close closes the current session. Closing with nothing open is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	err := m.current.close()
	m.config.Logger.Printf("closed campaign %s", m.current.path)
	m.current = nil
	if err != nil {
		return fmt.Errorf("failed to close campaign: %w", err)
	}
	return nil
}

// Current returns the active session, or NoActiveCampaign if nothing is
// open.
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, storage.ErrNoActiveCampaign
	}
	return m.current, nil
}
