package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"aiformreply-backend/internal/identity"
)

type contextKey string

const principalKey contextKey = "principal"

// Authenticator resolves a bearer token to the signed-in principal.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*identity.Principal, error)
}

// JWTAuth rejects requests without a valid, unrevoked session token.
func JWTAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			p, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				unauthorized(w, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal returns the principal stored by JWTAuth, or nil.
func GetPrincipal(ctx context.Context) *identity.Principal {
	p, _ := ctx.Value(principalKey).(*identity.Principal)
	return p
}

// WithPrincipal stores p in ctx the way JWTAuth does.
func WithPrincipal(ctx context.Context, p *identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
