package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"aiformreply-backend/internal/identity"
	"aiformreply-backend/internal/middleware"
	"aiformreply-backend/internal/models"

	"go.uber.org/zap"
)

type AuthHandler struct {
	identity *identity.Service
	log      *zap.Logger
}

func NewAuthHandler(identity *identity.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		log:      log,
	}
}

// --- Request / Response types ---

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ReauthenticateRequest struct {
	Password string `json:"password"`
}

type StateResponse struct {
	User *models.User `json:"user"`
	// PasswordChangeNeedsReauth tells the settings view to prompt for the
	// current password before submitting a new one.
	PasswordChangeNeedsReauth bool `json:"password_change_needs_reauth"`
}

// --- POST /auth/signup ---

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.identity.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// --- POST /auth/signin ---

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- POST /auth/signout ---

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if err := h.identity.SignOut(r.Context(), p); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// --- GET /auth/state ---

func (h *AuthHandler) State(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	user := p.User
	writeJSON(w, http.StatusOK, StateResponse{
		User:                      &user,
		PasswordChangeNeedsReauth: h.identity.NeedsReauth(&user, h.identity.Now()),
	})
}

// --- POST /auth/reauthenticate ---

func (h *AuthHandler) Reauthenticate(w http.ResponseWriter, r *http.Request) {
	var req ReauthenticateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := middleware.GetPrincipal(r.Context())
	if err := h.identity.Reauthenticate(r.Context(), p.User.ID, req.Password); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "reauthenticated"})
}

// --- POST /auth/verification ---

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if err := h.identity.ResendVerification(r.Context(), p.User.ID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "verification email sent"})
}

// --- GET /auth/verify ---
// Opened from the verification email, so it answers with a small HTML page.

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		renderVerifyPage(w, http.StatusBadRequest, "Missing token", "The verification link is incomplete.")
		return
	}

	if _, err := h.identity.VerifyEmail(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, identity.ErrVerificationTokenInvalid),
			errors.Is(err, identity.ErrVerificationTokenExpired),
			errors.Is(err, identity.ErrVerificationTokenUsed):
			renderVerifyPage(w, http.StatusBadRequest, "Link not valid", capitalize(err.Error())+". Request a new link from your settings.")
		default:
			h.log.Error("verify email", zap.Error(err))
			renderVerifyPage(w, http.StatusInternalServerError, "Something went wrong", "Please try again in a moment.")
		}
		return
	}

	renderVerifyPage(w, http.StatusOK, "Email verified", "Your email address is confirmed. You can close this tab.")
}

func renderVerifyPage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>%s</title>
	<style>
		body { font-family: -apple-system, sans-serif; display: flex; justify-content: center; align-items: center; min-height: 100vh; margin: 0; background: #f0f7ff; }
		.card { text-align: center; padding: 40px; background: white; border-radius: 16px; box-shadow: 0 4px 24px rgba(0,0,0,0.1); max-width: 400px; }
		h1 { color: #333; font-size: 24px; }
		p { color: #666; font-size: 16px; line-height: 1.5; }
	</style>
</head>
<body>
	<div class="card">
		<h1>%s</h1>
		<p>%s</p>
	</div>
</body>
</html>`, title, title, body)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
