package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aiformreply-backend/internal/assist"
	"aiformreply-backend/internal/config"
	"aiformreply-backend/internal/database"
	"aiformreply-backend/internal/handlers"
	"aiformreply-backend/internal/identity"
	"aiformreply-backend/internal/logging"
	"aiformreply-backend/internal/mailer"
	"aiformreply-backend/internal/notify"
	"aiformreply-backend/internal/profile"
	"aiformreply-backend/internal/repository"
	"aiformreply-backend/internal/repository/memory"
	"aiformreply-backend/internal/routes"
	"aiformreply-backend/internal/support"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveMemory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API on $PORT.

With --memory all data is kept in process and lost on exit, and
MONGODB_URI is not needed. Useful for local frontend work.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "use the in-memory store instead of MongoDB")
}

// store is the set of repositories the services run on.
type store struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   repository.VerificationTokenRepository
	profiles repository.ProfileRepository
	reports  repository.ProblemReportRepository
	ping     handlers.Pinger
	close    func(ctx context.Context) error
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if err := cfg.Validate(serveMemory); err != nil {
		return err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sentryEnabled := initSentry(cfg, log)
	if sentryEnabled {
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	notifier := notify.NewLogNotifier(log)

	ids := identity.NewService(st.users, st.sessions, st.tokens,
		mailer.New(cfg.ResendAPIKey, cfg.FromEmail, log),
		identity.Options{
			JWTSecret:       cfg.JWTSecret,
			SessionTTL:      cfg.SessionTTL,
			VerificationTTL: cfg.VerificationTTL,
			ReauthWindow:    cfg.ReauthWindow,
			BaseURL:         cfg.BaseURL,
		}, log)
	unsubscribe := ids.Subscribe(auditListener(log, notifier))
	defer unsubscribe()

	profiles := profile.NewService(st.profiles, cfg.TrialDays)
	suggester := assist.NewClient(assist.Options{
		APIKey:      cfg.OpenAIAPIKey,
		APIURL:      cfg.OpenAIAPIURL,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.AITemperature,
		MaxTokens:   cfg.AIMaxTokens,
		Timeout:     cfg.AITimeout,
	})
	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY not set, AI suggestions are disabled")
	}
	reports := support.NewService(st.reports, notifier, log)

	router := routes.New(routes.Handlers{
		Auth:     handlers.NewAuthHandler(ids, log),
		Profile:  handlers.NewProfileHandler(profiles, suggester, log),
		Settings: handlers.NewSettingsHandler(ids, log),
		Support:  handlers.NewSupportHandler(reports, log),
		Health:   handlers.NewHealthHandler(st.ping, log),
	}, ids, log, routes.Options{
		CORSOrigins: cfg.CORSOrigins,
		Sentry:      sentryEnabled,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", zap.String("port", cfg.Port), zap.Bool("memory", serveMemory))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
		reports.Wait()
		if err := st.close(shutdownCtx); err != nil {
			log.Error("store close error", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

func initSentry(cfg *config.Config, log *zap.Logger) bool {
	if cfg.SentryDSN == "" {
		return false
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
		Environment:      cfg.SentryEnvironment,
	}); err != nil {
		log.Error("sentry init failed", zap.Error(err))
		return false
	}
	return true
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*store, error) {
	if serveMemory {
		m := memory.NewStore()
		return &store{
			users:    m.Users,
			sessions: m.Sessions,
			tokens:   m.Tokens,
			profiles: m.Profiles,
			reports:  m.Reports,
			ping:     func(context.Context) error { return nil },
			close:    func(context.Context) error { return nil },
		}, nil
	}

	mdb, err := database.Connect(ctx, cfg.MongoURI, cfg.DBName, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	db := mdb.Database()
	userRepo := repository.NewUserRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	tokenRepo := repository.NewVerificationTokenRepo(db)
	reportRepo := repository.NewProblemReportRepo(db)

	indexCtx, cancelIdx := context.WithTimeout(ctx, 10*time.Second)
	defer cancelIdx()
	for name, ensure := range map[string]func(context.Context) error{
		"users":           userRepo.EnsureIndexes,
		"sessions":        sessionRepo.EnsureIndexes,
		"tokens":          tokenRepo.EnsureIndexes,
		"problem_reports": reportRepo.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			log.Warn("failed to create indexes", zap.String("collection", name), zap.Error(err))
		}
	}

	return &store{
		users:    userRepo,
		sessions: sessionRepo,
		tokens:   tokenRepo,
		profiles: repository.NewProfileRepo(db),
		reports:  reportRepo,
		ping:     mdb.Ping,
		close:    mdb.Disconnect,
	}, nil
}

// auditListener logs every auth-state change and announces new sign-ups.
func auditListener(log *zap.Logger, notifier notify.Notifier) identity.Listener {
	return func(c identity.StateChange) {
		log.Info("auth state changed",
			zap.String("kind", string(c.Kind)),
			zap.String("user_id", c.User.ID.Hex()),
		)
		if c.Kind != identity.SignedUp {
			return
		}
		if err := notifier.Publish(context.Background(), "New sign-up: `"+c.User.Email+"`"); err != nil {
			log.Warn("publish sign-up", zap.Error(err))
		}
	}
}
