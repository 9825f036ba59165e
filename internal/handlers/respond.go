package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"aiformreply-backend/internal/assist"
	"aiformreply-backend/internal/identity"
	"aiformreply-backend/internal/support"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// errorBody is the JSON shape of every error response. Code is set only
// when the client is expected to react to it, e.g. by prompting for the
// password again.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorTable = []errorMapping{
	{identity.ErrReauthRequired, http.StatusUnauthorized, "reauth_required"},
	{identity.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{identity.ErrUnauthenticated, http.StatusUnauthorized, ""},
	{identity.ErrInvalidEmail, http.StatusBadRequest, ""},
	{identity.ErrWeakPassword, http.StatusBadRequest, "weak_password"},
	{identity.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{identity.ErrAlreadyVerified, http.StatusConflict, ""},
	{identity.ErrRateLimited, http.StatusTooManyRequests, ""},
	{identity.ErrUserNotFound, http.StatusNotFound, ""},
	{identity.ErrVerificationTokenInvalid, http.StatusBadRequest, ""},
	{identity.ErrVerificationTokenExpired, http.StatusBadRequest, ""},
	{identity.ErrVerificationTokenUsed, http.StatusBadRequest, ""},
	{assist.ErrEmptyInput, http.StatusBadRequest, ""},
	{assist.ErrNotConfigured, http.StatusServiceUnavailable, ""},
	{support.ErrEmptyMessage, http.StatusBadRequest, ""},
	{support.ErrMissingIdempotencyKey, http.StatusBadRequest, ""},
}

// writeError maps known service errors to their status. Anything else is
// logged, reported to Sentry, and returned as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			writeJSON(w, m.status, errorBody{Error: m.target.Error(), Code: m.code})
			return
		}
	}

	log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}
