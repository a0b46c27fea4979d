package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofiber/fiber/v2/log"

	"github.com/DenialAppealPro/appealpro/internal/pkg/database"
	"github.com/DenialAppealPro/appealpro/internal/pkg/metrics"
)

// RetryPolicy bounds how often a contended transaction is re-run.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy makes three attempts with exponential backoff.
var DefaultRetryPolicy = RetryPolicy{
	MaxTries:        3,
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     500 * time.Millisecond,
}

// Contended wraps a lock failure so it matches ErrContended and keeps the cause.
func Contended(err error) error {
	return fmt.Errorf("%w: %v", ErrContended, err)
}

// WithRetry runs op until it succeeds, fails with a non-contention error, or
// the policy is exhausted. Lock failures surface as ErrContended.
func WithRetry(ctx context.Context, p RetryPolicy, name string, op func() error) error {
	if p.MaxTries == 0 {
		p.MaxTries = 1
	}
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := op()
		if err == nil {
			return struct{}{}, nil
		}
		if database.IsLockContention(err) {
			err = Contended(err)
		}
		if errors.Is(err, ErrContended) {
			if attempt < int(p.MaxTries) {
				metrics.LockRetries.WithLabelValues(name).Inc()
				log.Warnf("[Ledger] %s contended (attempt %d/%d): %v", name, attempt, p.MaxTries, err)
			}
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.MaxTries))
	return err
}
