package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/paperlink/internal/apperr"
	"github.com/starford/paperlink/internal/linker"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Kind  string `json:"kind,omitempty" example:"remote_lookup"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps err onto a status code. Linker failures carry their
// user-facing notice and kind; other errors are reported generically.
func writeError(w http.ResponseWriter, op string, err error) {
	var status int
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrRemoteLookup):
		status = http.StatusBadGateway
	case errors.Is(err, apperr.ErrEditor), errors.Is(err, apperr.ErrAlreadyExists):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}

	var le *linker.Error
	if errors.As(err, &le) {
		writeJSON(w, status, errResponse{Error: le.Notice, Kind: string(le.Kind)})
		return
	}

	switch status {
	case http.StatusBadRequest:
		writeJSON(w, status, errorBody(err.Error()))
	case http.StatusNotFound:
		writeJSON(w, status, errorBody("not found"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
	}
}
