package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mwinters/loreboard/internal/storage"
)

type createListRequest struct {
	Name     string `json:"name"`
	Position *int   `json:"position"`
}

type updateListRequest struct {
	Name      *string `json:"name"`
	Collapsed *bool   `json:"collapsed"`
}

type moveRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleListLists(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	lists, err := store.ListLists(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	list, err := store.GetList(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req createListRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	// A missing position appends.
	position := -1
	if req.Position != nil {
		position = *req.Position
	}

	list, err := store.CreateList(r.Context(), storage.CreateListParams{
		Name:     req.Name,
		Position: position,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("lists")
	writeJSON(w, http.StatusCreated, list)
}

func (s *Server) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req updateListRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	list, err := store.UpdateList(r.Context(), mux.Vars(r)["id"], storage.ListPatch{
		Name:      req.Name,
		Collapsed: req.Collapsed,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("lists")
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMoveList(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if err := store.MoveList(r.Context(), mux.Vars(r)["id"], req.Index); err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("lists")
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := store.DeleteList(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("lists")
	writeJSON(w, http.StatusNoContent, nil)
}
