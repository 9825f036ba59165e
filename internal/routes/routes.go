package routes

import (
	"net/http"
	"strings"

	"aiformreply-backend/internal/handlers"
	customMiddleware "aiformreply-backend/internal/middleware"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Profile  *handlers.ProfileHandler
	Settings *handlers.SettingsHandler
	Support  *handlers.SupportHandler
	Health   *handlers.HealthHandler
}

type Options struct {
	// CORSOrigins is a comma-separated allow list, or "*".
	CORSOrigins string
	// Sentry enables the request hub middleware. Only set it after
	// sentry.Init succeeded.
	Sentry bool
}

// New builds the API router.
func New(h Handlers, authn customMiddleware.Authenticator, log *zap.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.RequestLogger(log))
	r.Use(middleware.Recoverer)
	if opts.Sentry {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(opts.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health.Check)

	// Public routes (no auth required)
	r.Post("/auth/signup", h.Auth.SignUp)
	r.Post("/auth/signin", h.Auth.SignIn)
	r.Get("/auth/verify", h.Auth.VerifyEmail)

	// Protected routes (session token required)
	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.JWTAuth(authn))

		r.Post("/auth/signout", h.Auth.SignOut)
		r.Get("/auth/state", h.Auth.State)
		r.Post("/auth/reauthenticate", h.Auth.Reauthenticate)
		r.Post("/auth/verification", h.Auth.ResendVerification)

		r.Get("/profile", h.Profile.Get)
		r.Put("/profile/knowledge-base", h.Profile.SaveKnowledgeBase)
		r.Post("/profile/knowledge-base/assist", h.Profile.Assist)

		r.Patch("/settings/email", h.Settings.UpdateEmail)
		r.Patch("/settings/password", h.Settings.UpdatePassword)

		r.Post("/support/reports", h.Support.SubmitReport)
	})

	return r
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
