package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string
	BaseURL     string
	CORSOrigins string

	// Database
	MongoURI string
	DBName   string

	// Sessions
	JWTSecret       string
	SessionTTL      time.Duration
	VerificationTTL time.Duration
	ReauthWindow    time.Duration

	// Trial
	TrialDays int

	// Email
	ResendAPIKey string
	FromEmail    string

	// AI assist
	OpenAIAPIKey  string
	OpenAIAPIURL  string
	OpenAIModel   string
	AITemperature float64
	AIMaxTokens   int
	AITimeout     time.Duration

	// Observability
	LogLevel          string
	LogFile           string
	SentryDSN         string
	SentryEnvironment string

	// Process manager
	ProcessConfigPath string
}

// Load reads the environment, after merging a local .env file if one exists.
func Load() *Config {
	// Missing .env is normal in production where vars are set directly.
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		BaseURL:     getEnv("BASE_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		MongoURI: getEnv("MONGODB_URI", ""),
		DBName:   getEnv("DB_NAME", "aiformreply"),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		SessionTTL:      parseDuration(getEnv("SESSION_TTL", ""), 30*24*time.Hour),
		VerificationTTL: parseDuration(getEnv("VERIFICATION_TTL", ""), 24*time.Hour),
		ReauthWindow:    parseDuration(getEnv("REAUTH_WINDOW", ""), 5*time.Minute),

		TrialDays: parseInt(getEnv("TRIAL_DAYS", ""), 30),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		FromEmail:    getEnv("FROM_EMAIL", "AI Form Reply <info@aiformreply.com>"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIAPIURL:  getEnv("OPENAI_API_URL", "https://api.openai.com/v1/chat/completions"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		AITemperature: parseFloat(getEnv("AI_TEMPERATURE", ""), 0.7),
		AIMaxTokens:   parseInt(getEnv("AI_MAX_TOKENS", ""), 300),
		AITimeout:     parseDuration(getEnv("AI_TIMEOUT", ""), 60*time.Second),

		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFile:           getEnv("LOG_FILE", ""),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", "production"),

		ProcessConfigPath: getEnv("PROCESS_CONFIG", "ecosystem.yaml"),
	}
}

// Validate checks the settings the server cannot start without. MongoURI is
// optional when the in-memory store is used.
func (c *Config) Validate(memoryStore bool) error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if !memoryStore && c.MongoURI == "" {
		return errors.New("MONGODB_URI is required")
	}
	if c.TrialDays <= 0 {
		return errors.New("TRIAL_DAYS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}
