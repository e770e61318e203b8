package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/itemdesk/internal/apperr"
	"github.com/starford/itemdesk/internal/itemstore"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error   string              `json:"error"`
	Details []itemstore.Problem `json:"details,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps store errors to status codes. Validation failures carry
// their per-field problems.
func writeError(w http.ResponseWriter, op string, err error) {
	var ve *itemstore.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "validation failed", Details: ve.Problems})
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
