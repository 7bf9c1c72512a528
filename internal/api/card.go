package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mwinters/loreboard/internal/schema"
	"github.com/mwinters/loreboard/internal/storage"
)

type createCardRequest struct {
	ListID         string             `json:"list_id"`
	TemplateID     string             `json:"template_id"`
	Name           string             `json:"name"`
	FieldValues    schema.FieldValues `json:"field_values"`
	Position       *int               `json:"position"`
	ParentFolderID string             `json:"parent_folder_id"`
	IsFolder       bool               `json:"is_folder"`
	IsExpanded     *bool              `json:"is_expanded"`
}

type updateCardRequest struct {
	Name        *string             `json:"name"`
	FieldValues *schema.FieldValues `json:"field_values"`
}

type moveCardRequest struct {
	ListID         string `json:"list_id"`
	ParentFolderID string `json:"parent_folder_id"`
	Index          int    `json:"index"`
}

type expandRequest struct {
	// Expanded sets the flag directly; omitting it toggles.
	Expanded *bool `json:"expanded"`
}

// handleListCards serves three query shapes: ?list_id= for one board list,
// ?query= for a name search, and no parameters for every card in the
// campaign.
func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var cards []*schema.PopulatedCard
	switch {
	case r.URL.Query().Get("list_id") != "":
		cards, err = store.CardsByList(r.Context(), r.URL.Query().Get("list_id"))
	case r.URL.Query().Get("query") != "":
		cards, err = store.SearchCards(r.Context(), r.URL.Query().Get("query"))
	default:
		cards, err = store.AllCards(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	card, err := store.GetCard(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req createCardRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	position := -1
	if req.Position != nil {
		position = *req.Position
	}

	card, err := store.CreateCard(r.Context(), storage.CreateCardParams{
		ListID:         req.ListID,
		TemplateID:     req.TemplateID,
		Name:           req.Name,
		FieldValues:    req.FieldValues,
		Position:       position,
		ParentFolderID: req.ParentFolderID,
		IsFolder:       req.IsFolder,
		IsExpanded:     req.IsExpanded,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("cards")
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req updateCardRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	card, err := store.UpdateCard(r.Context(), mux.Vars(r)["id"], storage.CardPatch{
		Name:        req.Name,
		FieldValues: req.FieldValues,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("cards")
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := store.DeleteCard(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("cards")
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMoveCard(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req moveCardRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ListID == "" {
		s.writeError(w, badRequest("list_id is required"))
		return
	}

	err = store.MoveCard(r.Context(), mux.Vars(r)["id"], storage.Destination{
		ListID:         req.ListID,
		ParentFolderID: req.ParentFolderID,
		Index:          req.Index,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("cards")
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleExpandCard(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	// An empty body means toggle.
	var req expandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.writeError(w, badRequest("invalid request body: %v", err))
		return
	}

	id := mux.Vars(r)["id"]
	if req.Expanded != nil {
		err = store.SetExpanded(r.Context(), id, *req.Expanded)
	} else {
		err = store.ToggleExpansion(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("cards")
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleFolderChildren(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	children, err := store.FolderChildren(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

func (s *Server) handleBacklinks(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	backlinks, err := store.Backlinks(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backlinks)
}
