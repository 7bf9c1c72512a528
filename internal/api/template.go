package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mwinters/loreboard/internal/schema"
	"github.com/mwinters/loreboard/internal/storage"
)

type createTemplateRequest struct {
	Name             string                   `json:"name"`
	Icon             string                   `json:"icon"`
	Color            string                   `json:"color"`
	FieldDefinitions []schema.FieldDefinition `json:"field_definitions"`
}

type updateTemplateRequest struct {
	Name             *string                   `json:"name"`
	Icon             *string                   `json:"icon"`
	Color            *string                   `json:"color"`
	FieldDefinitions *[]schema.FieldDefinition `json:"field_definitions"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	templates, err := store.ListTemplates(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	tpl, err := store.GetTemplate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req createTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	tpl, err := store.CreateTemplate(r.Context(), storage.CreateTemplateParams{
		Name:             req.Name,
		Icon:             req.Icon,
		Color:            req.Color,
		FieldDefinitions: req.FieldDefinitions,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("templates")
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req updateTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	tpl, err := store.UpdateTemplate(r.Context(), mux.Vars(r)["id"], storage.TemplatePatch{
		Name:             req.Name,
		Icon:             req.Icon,
		Color:            req.Color,
		FieldDefinitions: req.FieldDefinitions,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("templates")
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := store.DeleteTemplate(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("templates")
	writeJSON(w, http.StatusNoContent, nil)
}
