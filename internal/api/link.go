package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

type createLinkRequest struct {
	SourceCardID string `json:"source_card_id"`
	TargetCardID string `json:"target_card_id"`
	FieldKey     string `json:"field_key"`
}

// fieldQuery pulls the card_id/field_key pair every link route filters by.
func fieldQuery(r *http.Request) (cardID, fieldKey string, err error) {
	cardID = r.URL.Query().Get("card_id")
	fieldKey = r.URL.Query().Get("field_key")
	if cardID == "" || fieldKey == "" {
		return "", "", badRequest("card_id and field_key query parameters are required")
	}
	return cardID, fieldKey, nil
}

func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	cardID, fieldKey, err := fieldQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	links, err := store.LinksForField(r.Context(), cardID, fieldKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func (s *Server) handleLinkedCards(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	cardID, fieldKey, err := fieldQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cards, err := store.LinkedCards(r.Context(), cardID, fieldKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req createLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	link, err := store.CreateLink(r.Context(), req.SourceCardID, req.TargetCardID, req.FieldKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("links")
	writeJSON(w, http.StatusCreated, link)
}

func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := store.DeleteLink(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("links")
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteLinksForField(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	cardID, fieldKey, err := fieldQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := store.DeleteLinksForField(r.Context(), cardID, fieldKey); err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("links")
	writeJSON(w, http.StatusNoContent, nil)
}
