// Package storage implements the campaign store: a single-file SQLite
// database holding the campaign metadata, card templates, lists, the card
// containment hierarchy, the card link graph, and image blobs.
//
// The database runs in embedded mode with WAL for concurrent reads. Every
// multi-step mutation executes inside one transaction that also refreshes the
// campaign's modified_at stamp; a failed step rolls the whole operation back.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection for one campaign file.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens an existing campaign file, or initializes a new one at the
// given path. The schema is materialized idempotently: tables and indexes
// are created if absent and newer columns are added additively, never
// destroying existing rows.
//
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create campaign directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open campaign database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping campaign database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if err := s.InitSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Create initializes a brand-new campaign file. It fails with Conflict if a
// file already exists at the path.
func Create(path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, errorf(KindConflict, "campaign file %s already exists", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return Open(path)
}

// Path returns the campaign file path this store was opened with.
func (s *Store) Path() string { return s.path }

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB { return s.conn }

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close campaign database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates tables and indexes if they don't exist and applies
// additive column migrations. Safe to call multiple times.
func (s *Store) InitSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS campaign_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS card_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL CHECK (length(name) > 0 AND length(name) <= 100),
		icon TEXT,
		color TEXT CHECK (color IS NULL OR color = '' OR color GLOB '#[0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f]'),
		field_definitions TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CONSTRAINT valid_field_definitions CHECK (json_valid(field_definitions) AND json_type(field_definitions) = 'array')
	);

	CREATE TABLE IF NOT EXISTS lists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL CHECK (length(name) > 0 AND length(name) <= 100),
		position INTEGER NOT NULL CHECK (position >= 0),
		collapsed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cards (
		id TEXT PRIMARY KEY,
		list_id TEXT NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
		template_id TEXT NOT NULL REFERENCES card_templates(id) ON DELETE RESTRICT,
		name TEXT NOT NULL CHECK (length(name) > 0 AND length(name) <= 200),
		field_values TEXT NOT NULL DEFAULT '{}',
		position INTEGER NOT NULL CHECK (position >= 0),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CONSTRAINT valid_field_values CHECK (json_valid(field_values) AND json_type(field_values) = 'object')
	);

	CREATE TABLE IF NOT EXISTS card_links (
		id TEXT PRIMARY KEY,
		source_card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
		target_card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
		field_key TEXT NOT NULL,
		created_at TEXT NOT NULL,
		CONSTRAINT no_self_links CHECK (source_card_id != target_card_id),
		UNIQUE(source_card_id, target_card_id, field_key)
	);

	CREATE TABLE IF NOT EXISTS image_blobs (
		id TEXT PRIMARY KEY,
		mime_type TEXT NOT NULL,
		data BLOB NOT NULL,
		size_bytes INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_templates_name ON card_templates(name);
	CREATE INDEX IF NOT EXISTS idx_lists_position ON lists(position);
	CREATE INDEX IF NOT EXISTS idx_cards_list ON cards(list_id);
	CREATE INDEX IF NOT EXISTS idx_cards_template ON cards(template_id);
	CREATE INDEX IF NOT EXISTS idx_cards_name ON cards(name);
	CREATE INDEX IF NOT EXISTS idx_links_source ON card_links(source_card_id);
	CREATE INDEX IF NOT EXISTS idx_links_target ON card_links(target_card_id);
	`

	if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := s.migrate(ctx); err != nil {
		return err
	}

	return s.seedMeta(ctx)
}

// migrate applies additive column migrations for campaign files created by
// older schema versions. Columns are only ever added, never dropped.
func (s *Store) migrate(ctx context.Context) error {
	folderColumns := []struct {
		name string
		ddl  string
	}{
		{"parent_folder_id", "ALTER TABLE cards ADD COLUMN parent_folder_id TEXT REFERENCES cards(id) ON DELETE CASCADE"},
		{"folder_level", "ALTER TABLE cards ADD COLUMN folder_level INTEGER NOT NULL DEFAULT 0"},
		{"is_folder", "ALTER TABLE cards ADD COLUMN is_folder INTEGER NOT NULL DEFAULT 0"},
		{"is_expanded", "ALTER TABLE cards ADD COLUMN is_expanded INTEGER NOT NULL DEFAULT 1"},
	}

	for _, col := range folderColumns {
		exists, err := s.columnExists(ctx, "cards", col.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.conn.ExecContext(ctx, col.ddl); err != nil {
			return fmt.Errorf("failed to add column cards.%s: %w", col.name, err)
		}
	}

	// Position ordering is scoped per (list, folder) bucket, so the index
	// covers the bucket key.
	indexes := `
	CREATE INDEX IF NOT EXISTS idx_cards_parent_folder ON cards(parent_folder_id);
	CREATE INDEX IF NOT EXISTS idx_cards_is_folder ON cards(is_folder);
	CREATE INDEX IF NOT EXISTS idx_cards_bucket_position ON cards(list_id, parent_folder_id, position);
	`
	if _, err := s.conn.ExecContext(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create folder indexes: %w", err)
	}

	return nil
}

func (s *Store) columnExists(ctx context.Context, table, column string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
	if err := s.conn.QueryRowContext(ctx, query, table, column).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to inspect %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}

// seedMeta writes the default metadata rows for a fresh campaign file.
func (s *Store) seedMeta(ctx context.Context) error {
	var version string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM campaign_meta WHERE key = 'version'`).Scan(&version)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to read campaign version: %w", err)
	}

	now := nowStamp()
	defaults := [][2]string{
		{"name", "New Campaign"},
		{"description", ""},
		{"created_at", now},
		{"modified_at", now},
		{"version", schemaVersion},
	}
	for _, kv := range defaults {
		if _, err := s.conn.ExecContext(ctx,
			`INSERT INTO campaign_meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to seed campaign metadata: %w", err)
		}
	}
	return nil
}

// schemaVersion is bumped when a new additive migration lands.
const schemaVersion = "2"

// nowStamp returns the timestamp format stored in the database. Nanosecond
// precision keeps created_at ordering stable for links created back to back.
func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseStamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// withTx runs fn inside a transaction, rolling back on error or panic and
// committing otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
