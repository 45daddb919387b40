// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds everything cmd/server needs to wire the process.
type Config struct {
	// DBPath is the sqlite database file location.
	DBPath string

	// Port is the HTTP listen port.
	Port string

	// PaystackSecretKey authenticates gateway calls and verifies webhook
	// signatures.
	PaystackSecretKey string

	// PaystackBaseURL overrides the gateway API base, for staging setups.
	PaystackBaseURL string

	// PushURL is the push-notification delivery endpoint.
	PushURL string

	// WebhookWorkers sizes the dispatcher's worker pool.
	WebhookWorkers int
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Load reads configuration from the environment. PAYSTACK_SECRET_KEY is the
// only required variable; everything else has a sensible default.
func Load() (*Config, error) {
	secret := os.Getenv("PAYSTACK_SECRET_KEY")
	if secret == "" {
		return nil, fmt.Errorf("PAYSTACK_SECRET_KEY is required")
	}

	workers := 4
	if raw := os.Getenv("WEBHOOK_WORKERS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("WEBHOOK_WORKERS must be a positive integer, got %q", raw)
		}
		workers = n
	}

	return &Config{
		DBPath:            getEnv("DB_PATH", "./data/halver.db"),
		Port:              getEnv("PORT", "8080"),
		PaystackSecretKey: secret,
		PaystackBaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PushURL:           getEnv("PUSH_URL", "https://exp.host/--/api/v2/push/send"),
		WebhookWorkers:    workers,
	}, nil
}
