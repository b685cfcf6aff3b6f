// Package config collects all runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr string
	Env  string // development | production

	JWTSecret string

	QuestionsTable      string
	PaymentsTable       string
	UsersTable          string
	FulfillmentQueueURL string

	UploadBucket        string
	UploadPrefix        string
	UploadPublicBaseURL string
	MaxUploadBytes      int64

	MetricsNamespace string

	Mpesa MpesaConfig
	AI    AIConfig
}

type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Load reads configuration from the environment. A .env file is honored when
// present (local development); real deployments set variables directly.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr: envOr("ADDR", ":8080"),
		Env:  envOr("APP_ENV", "development"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		QuestionsTable:      envOr("QUESTIONS_TABLE", "questions"),
		PaymentsTable:       envOr("PAYMENTS_TABLE", "payments"),
		UsersTable:          envOr("USERS_TABLE", "users"),
		FulfillmentQueueURL: os.Getenv("FULFILLMENT_QUEUE_URL"),

		UploadBucket:        os.Getenv("UPLOAD_BUCKET"),
		UploadPrefix:        envOr("UPLOAD_PREFIX", "uploads"),
		UploadPublicBaseURL: os.Getenv("UPLOAD_PUBLIC_BASE_URL"),
		MaxUploadBytes:      envInt64("MAX_UPLOAD_BYTES", 5<<20),

		MetricsNamespace: envOr("METRICS_NAMESPACE", "SomaSaidi"),

		Mpesa: MpesaConfig{
			BaseURL:        envOr("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
			ShortCode:      os.Getenv("MPESA_SHORTCODE"),
			Passkey:        os.Getenv("MPESA_PASSKEY"),
			CallbackURL:    envOr("SERVER_URL", "http://localhost:8080") + "/api/payments/mpesa/callback",
			Timeout:        envDuration("MPESA_TIMEOUT", 30*time.Second),
		},
		AI: AIConfig{
			BaseURL: envOr("AI_BASE_URL", "https://api.x.ai/v1"),
			APIKey:  os.Getenv("AI_API_KEY"),
			Model:   envOr("AI_MODEL", "grok-beta"),
			Timeout: envDuration("AI_TIMEOUT", 30*time.Second),
		},
	}

	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.FulfillmentQueueURL == "" {
		return cfg, fmt.Errorf("FULFILLMENT_QUEUE_URL is required")
	}
	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
