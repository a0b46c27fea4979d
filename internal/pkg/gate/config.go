package gate

import (
	"fmt"
	"strings"
	"time"

	"github.com/DenialAppealPro/appealpro/internal/pkg/env"
)

// RefundPolicy decides what happens to funding when the pipeline fails.
type RefundPolicy string

const (
	// RefundNone keeps the credit or token consumed; a retry must fund again.
	RefundNone RefundPolicy = "none"
	// RefundOnFailure returns the credit to its pool or frees the retail token.
	RefundOnFailure RefundPolicy = "refund_on_failure"
)

type Config struct {
	RefundPolicy RefundPolicy
	// Timeout bounds a single pipeline run.
	Timeout time.Duration
	// Lease is how long a funded attempt blocks other attempts. It must
	// outlive Timeout so a slow but healthy run is never taken over.
	Lease time.Duration
}

func DefaultConfig() Config {
	return Config{
		RefundPolicy: RefundNone,
		Timeout:      60 * time.Second,
		Lease:        5 * time.Minute,
	}
}

// LoadConfig reads GENERATION_* settings.
func LoadConfig() (Config, error) {
	def := DefaultConfig()
	cfg := Config{
		RefundPolicy: RefundPolicy(strings.ToLower(env.GetEnv("GENERATION_REFUND_POLICY", string(def.RefundPolicy)))),
		Timeout:      time.Duration(env.GetEnvInt("GENERATION_TIMEOUT_SECONDS", int(def.Timeout/time.Second))) * time.Second,
		Lease:        time.Duration(env.GetEnvInt("GENERATION_LEASE_SECONDS", int(def.Lease/time.Second))) * time.Second,
	}
	return cfg, cfg.Validate()
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RefundPolicy == "" {
		c.RefundPolicy = def.RefundPolicy
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.Lease == 0 {
		c.Lease = def.Lease
	}
	return c
}

func (c Config) Validate() error {
	switch c.RefundPolicy {
	case RefundNone, RefundOnFailure:
	default:
		return fmt.Errorf("GENERATION_REFUND_POLICY must be %q or %q, got %q", RefundNone, RefundOnFailure, c.RefundPolicy)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT_SECONDS must be positive")
	}
	if c.Lease <= c.Timeout {
		return fmt.Errorf("GENERATION_LEASE_SECONDS (%s) must exceed GENERATION_TIMEOUT_SECONDS (%s)", c.Lease, c.Timeout)
	}
	return nil
}
