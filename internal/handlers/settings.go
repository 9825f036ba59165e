package handlers

import (
	"net/http"

	"aiformreply-backend/internal/identity"
	"aiformreply-backend/internal/middleware"

	"go.uber.org/zap"
)

type SettingsHandler struct {
	identity *identity.Service
	log      *zap.Logger
}

func NewSettingsHandler(identity *identity.Service, log *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		identity: identity,
		log:      log,
	}
}

type UpdateEmailRequest struct {
	Email string `json:"email"`
}

type UpdatePasswordRequest struct {
	Password string `json:"password"`
}

// --- PATCH /settings/email ---

func (h *SettingsHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req UpdateEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := middleware.GetPrincipal(r.Context())
	user, err := h.identity.UpdateEmail(r.Context(), p.User.ID, req.Email)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// --- PATCH /settings/password ---

func (h *SettingsHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req UpdatePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := middleware.GetPrincipal(r.Context())
	if err := h.identity.UpdatePassword(r.Context(), p.User.ID, req.Password); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
