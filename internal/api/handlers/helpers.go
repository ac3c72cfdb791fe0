package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/promptdeck/promptdeck/internal/identity"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/prompt"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps the store's error taxonomy onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	var ve *prompt.ValidationError
	var ce *prompt.ConflictError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, prompt.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &ce):
		writeError(w, http.StatusConflict, ce.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// requestUser resolves the acting user: the authenticated identity wins,
// otherwise the created_by the request body carried.
func requestUser(r *http.Request, fromBody models.User) models.User {
	if u, ok := identity.UserFromContext(r.Context()); ok {
		return u
	}
	return fromBody
}
