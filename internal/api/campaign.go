package api

import (
	"net/http"

	"github.com/mwinters/loreboard/internal/session"
	"github.com/mwinters/loreboard/internal/storage"
)

type campaignPathRequest struct {
	Path string `json:"path"`
}

// campaignResponse pairs the metadata with the file it came from.
type campaignResponse struct {
	Path string `json:"path"`
	Meta any    `json:"meta"`
}

func (s *Server) handleOpenCampaign(w http.ResponseWriter, r *http.Request) {
	s.openOrCreate(w, r, s.sessions.Open)
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	s.openOrCreate(w, r, s.sessions.Create)
}

func (s *Server) openOrCreate(w http.ResponseWriter, r *http.Request, swap func(string) (*session.Session, error)) {
	var req campaignPathRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Path == "" {
		s.writeError(w, badRequest("path is required"))
		return
	}

	sess, err := swap(req.Path)
	if err != nil {
		s.writeError(w, err)
		return
	}

	meta, err := sess.Store().Meta(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaignResponse{Path: sess.Path(), Meta: meta})
}

func (s *Server) handleCloseCampaign(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetMeta(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Current()
	if err != nil {
		s.writeError(w, err)
		return
	}
	meta, err := sess.Store().Meta(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaignResponse{Path: sess.Path(), Meta: meta})
}

func (s *Server) handleUpdateMeta(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	var patch storage.MetaPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}

	meta, err := store.UpdateMeta(r.Context(), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("campaign")
	writeJSON(w, http.StatusOK, meta)
}
