package billing

import (
	"errors"
	"time"

	"github.com/DenialAppealPro/appealpro/internal/pkg/env"
)

// Config holds payment processor webhook configuration
type Config struct {
	WebhookSecret string
	Tolerance     time.Duration
}

// LoadConfig loads Stripe configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		WebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		Tolerance:     time.Duration(env.GetEnvInt("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300)) * time.Second,
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	return cfg, nil
}
