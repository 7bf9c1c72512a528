package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// maxImageBytes caps uploads at 10MB, matching what a campaign frontend
// would reasonably embed in a card field.
const maxImageBytes = 10 << 20

type saveImageResponse struct {
	ID        string `json:"id"`
	SizeBytes int    `json:"size_bytes"`
}

// handleSaveImage stores the raw request body. The MIME type comes from the
// Content-Type header, not from sniffing.
func (s *Server) handleSaveImage(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}

	mimeType := r.Header.Get("Content-Type")
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImageBytes+1))
	if err != nil {
		s.writeError(w, badRequest("failed to read image body: %v", err))
		return
	}
	if len(data) > maxImageBytes {
		s.writeError(w, badRequest("image exceeds %d byte limit", maxImageBytes))
		return
	}

	id, err := store.SaveImage(r.Context(), data, mimeType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("images")
	writeJSON(w, http.StatusCreated, saveImageResponse{ID: id, SizeBytes: len(data)})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	img, err := store.GetImage(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	store, err := s.store()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := store.DeleteImage(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.notifyChanged("images")
	writeJSON(w, http.StatusNoContent, nil)
}
