// Package api exposes the campaign operations over HTTP. All handlers
// operate on the process's single active campaign through a
// session.Manager, return JSON, and push a change event to connected
// WebSocket clients after every successful mutation.
package api

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/mwinters/loreboard/internal/session"
	"github.com/mwinters/loreboard/internal/storage"
)

// Server wires the HTTP handlers to the session manager and the
// notification hub.
type Server struct {
	sessions *session.Manager
	hub      *Hub
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a server. The returned server's hub is not running;
// call Start (or run the hub yourself) before serving.
func NewServer(sessions *session.Manager, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stderr, "[api] ", log.LstdFlags)
	}
	return &Server{
		sessions: sessions,
		hub:      NewHub(logger),
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start runs the notification hub.
func (s *Server) Start() {
	go s.hub.Run()
}

// Stop shuts down the notification hub.
func (s *Server) Stop() {
	s.hub.Stop()
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	// Campaign lifecycle and metadata
	r.HandleFunc("/api/campaign/open", s.handleOpenCampaign).Methods("POST")
	r.HandleFunc("/api/campaign/create", s.handleCreateCampaign).Methods("POST")
	r.HandleFunc("/api/campaign/close", s.handleCloseCampaign).Methods("POST")
	r.HandleFunc("/api/campaign", s.handleGetMeta).Methods("GET")
	r.HandleFunc("/api/campaign", s.handleUpdateMeta).Methods("PATCH")

	// Templates
	r.HandleFunc("/api/templates", s.handleListTemplates).Methods("GET")
	r.HandleFunc("/api/templates", s.handleCreateTemplate).Methods("POST")
	r.HandleFunc("/api/templates/{id}", s.handleGetTemplate).Methods("GET")
	r.HandleFunc("/api/templates/{id}", s.handleUpdateTemplate).Methods("PATCH")
	r.HandleFunc("/api/templates/{id}", s.handleDeleteTemplate).Methods("DELETE")

	// Lists
	r.HandleFunc("/api/lists", s.handleListLists).Methods("GET")
	r.HandleFunc("/api/lists", s.handleCreateList).Methods("POST")
	r.HandleFunc("/api/lists/{id}", s.handleGetList).Methods("GET")
	r.HandleFunc("/api/lists/{id}", s.handleUpdateList).Methods("PATCH")
	r.HandleFunc("/api/lists/{id}", s.handleDeleteList).Methods("DELETE")
	r.HandleFunc("/api/lists/{id}/move", s.handleMoveList).Methods("POST")

	// Cards
	r.HandleFunc("/api/cards", s.handleListCards).Methods("GET")
	r.HandleFunc("/api/cards", s.handleCreateCard).Methods("POST")
	r.HandleFunc("/api/cards/{id}", s.handleGetCard).Methods("GET")
	r.HandleFunc("/api/cards/{id}", s.handleUpdateCard).Methods("PATCH")
	r.HandleFunc("/api/cards/{id}", s.handleDeleteCard).Methods("DELETE")
	r.HandleFunc("/api/cards/{id}/move", s.handleMoveCard).Methods("POST")
	r.HandleFunc("/api/cards/{id}/expand", s.handleExpandCard).Methods("POST")
	r.HandleFunc("/api/cards/{id}/children", s.handleFolderChildren).Methods("GET")
	r.HandleFunc("/api/cards/{id}/backlinks", s.handleBacklinks).Methods("GET")

	// Links
	r.HandleFunc("/api/links", s.handleListLinks).Methods("GET")
	r.HandleFunc("/api/links", s.handleCreateLink).Methods("POST")
	r.HandleFunc("/api/links", s.handleDeleteLinksForField).Methods("DELETE")
	r.HandleFunc("/api/links/cards", s.handleLinkedCards).Methods("GET")
	r.HandleFunc("/api/links/{id}", s.handleDeleteLink).Methods("DELETE")

	// Images
	r.HandleFunc("/api/images", s.handleSaveImage).Methods("POST")
	r.HandleFunc("/api/images/{id}", s.handleGetImage).Methods("GET")
	r.HandleFunc("/api/images/{id}", s.handleDeleteImage).Methods("DELETE")

	// WebSocket route for change notifications
	r.HandleFunc("/api/ws", s.handleWebSocket)

	return r
}

// Handler wraps the router with CORS for the given origins. An empty slice
// allows any origin, which suits the local desktop-frontend case.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(s.Router())
}

// store returns the active campaign's store, or NoActiveCampaign.
func (s *Server) store() (*storage.Store, error) {
	sess, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}
	return sess.Store(), nil
}

// notifyChanged pushes a change event naming the mutated resource.
func (s *Server) notifyChanged(resource string) {
	s.hub.Broadcast(Event{
		Type: EventCampaignChanged,
		Data: map[string]string{"resource": resource},
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("failed to upgrade websocket: %v", err)
		return
	}

	c := &client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	select {
	case s.hub.register <- c:
	case <-s.hub.quit:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
