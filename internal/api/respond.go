package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mwinters/loreboard/internal/storage"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// statusFor maps storage error kinds onto HTTP status codes. Anything
// without a kind is a server fault.
func statusFor(err error) int {
	switch storage.ErrorKind(err) {
	case storage.KindNotFound:
		return http.StatusNotFound
	case storage.KindValidationFailed:
		return http.StatusBadRequest
	case storage.KindConflict:
		return http.StatusConflict
	case storage.KindDepthExceeded, storage.KindCycleRejected:
		return http.StatusUnprocessableEntity
	case storage.KindNoActiveCampaign:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	if kind := storage.ErrorKind(err); kind != 0 {
		body.Kind = kind.String()
	}
	if status == http.StatusInternalServerError {
		s.logger.Printf("internal error: %v", err)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

// badRequest builds a ValidationFailed error for malformed requests.
func badRequest(format string, args ...any) error {
	return &storage.Error{
		Kind: storage.KindValidationFailed,
		Msg:  fmt.Sprintf(format, args...),
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &storage.Error{
			Kind: storage.KindValidationFailed,
			Msg:  fmt.Sprintf("invalid request body: %v", err),
		}
	}
	return nil
}
