package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Outcome reports whether an event's effect ran.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
)

var errDuplicateEvent = errors.New("ledger: duplicate event")

// Guard applies the effect of each external event at most once.
type Guard struct {
	db    *gorm.DB
	retry RetryPolicy
}

func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db, retry: DefaultRetryPolicy}
}

// WithRetryPolicy returns a copy of the guard using p.
func (g *Guard) WithRetryPolicy(p RetryPolicy) *Guard {
	cp := *g
	cp.retry = p
	return &cp
}

// Process records eventID and runs effect in the same transaction. If the id
// was already recorded the effect is skipped and OutcomeDuplicate is returned.
// An effect error rolls back the record as well, so redelivery is retried.
func (g *Guard) Process(ctx context.Context, eventID, kind string, effect func(tx *gorm.DB) error) (Outcome, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", errors.New("ledger: event id is required")
	}

	err := WithRetry(ctx, g.retry, "process_event", func() error {
		return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			recorded, err := RecordEvent(tx, eventID, kind)
			if err != nil {
				return err
			}
			if !recorded {
				return errDuplicateEvent
			}
			return effect(tx)
		})
	})
	if errors.Is(err, errDuplicateEvent) {
		log.Infof("[Ledger] Duplicate event %s (%s) suppressed", eventID, kind)
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

// EventID returns id, or a content hash of payload when the processor sent none.
func EventID(id string, payload []byte) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	sum := sha256.Sum256(payload)
	return "hash:" + hex.EncodeToString(sum[:])
}
