package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/billing-manager/internal/apperror"
)

// envelope is the JSON shape every API endpoint responds with.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response not encoded", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// writeError translates the error kinds from internal/apperror into HTTP
// statuses. Anything unclassified is a 500 and gets logged here, once, so
// services don't have to.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "Server error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		message = "Server error"
	}

	writeJSON(w, status, envelope{Success: false, Error: message})
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "Invalid request body")
	}
	return nil
}
