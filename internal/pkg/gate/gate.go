// Package gate decides whether a work unit may be generated and makes a
// successful generation terminal.
//
// A request runs in two transactions around the document pipeline. The first
// locks the work unit, rejects completed units, and commits the funding (one
// credit or the unit's retail token) together with a lease. The pipeline then
// runs without holding any lock. The second transaction records the outcome.
// Locks are always taken work unit first, account second.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DenialAppealPro/appealpro/app/models"
	"github.com/DenialAppealPro/appealpro/internal/pkg/ledger"
	"github.com/DenialAppealPro/appealpro/internal/pkg/metrics"
	"github.com/DenialAppealPro/appealpro/internal/pkg/pipeline"
)

// Generator produces the document for an appeal and returns its storage key.
type Generator interface {
	Generate(ctx context.Context, d pipeline.AppealData) (string, error)
}

// Result describes a completed generation.
type Result struct {
	UUID            string     `json:"uuid"`
	Status          string     `json:"status"`
	DocumentKey     string     `json:"-"`
	FundingMode     string     `json:"funding_mode"`
	FundedPool      string     `json:"funded_pool,omitempty"`
	GenerationCount int        `json:"generation_count"`
	GeneratedAt     *time.Time `json:"generated_at,omitempty"`
}

type Gate struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	gen    Generator
	cfg    Config
	now    func() time.Time
}

// New builds a gate. Zero config fields take their defaults; an invalid
// config is replaced by DefaultConfig so a pipeline run never starts with an
// expired deadline.
func New(db *gorm.DB, l *ledger.Ledger, gen Generator, cfg Config) *Gate {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		log.Warnf("[Gate] Invalid generation config, using defaults: %v", err)
		cfg = DefaultConfig()
	}
	return &Gate{db: db, ledger: l, gen: gen, cfg: cfg, now: time.Now}
}

// RefundPolicy reports what a pipeline failure does to the unit's funding.
func (g *Gate) RefundPolicy() RefundPolicy {
	return g.cfg.RefundPolicy
}

// attempt is what the funding transaction hands to the completion transaction.
type attempt struct {
	id     string
	unit   models.WorkUnit
	pool   string
	reused bool
}

// RequestGeneration funds and generates the work unit identified by id.
func (g *Gate) RequestGeneration(ctx context.Context, id string) (*Result, error) {
	at, err := g.fund(ctx, id)
	if err != nil {
		g.count(at, err)
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	key, genErr := g.gen.Generate(pctx, pipeline.FromWorkUnit(&at.unit))
	cancel()

	// The outcome must be recorded even if the caller went away.
	res, err := g.complete(context.WithoutCancel(ctx), at, key, genErr)
	g.count(at, err)
	return res, err
}

func (g *Gate) count(at *attempt, err error) {
	mode := "unknown"
	if at != nil {
		mode = at.unit.FundingMode
	}
	result := "generated"
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyCompleted):
		result = "already_completed"
	case errors.Is(err, ErrInsufficientCredit), errors.Is(err, ErrPaymentRequired):
		result = "payment_required"
	case errors.Is(err, ErrInProgress), errors.Is(err, ErrContended):
		result = "contended"
	case errors.Is(err, ErrPipelineFailed):
		result = "pipeline_failed"
	default:
		result = "error"
	}
	metrics.Generations.WithLabelValues(mode, result).Inc()
}

// fund is the first transaction. Nothing it writes survives unless funding succeeds.
func (g *Gate) fund(ctx context.Context, id string) (*attempt, error) {
	var at *attempt
	err := ledger.WithRetry(ctx, ledger.DefaultRetryPolicy, "fund_work_unit", func() error {
		at = nil
		return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			u, err := ledger.LockWorkUnit(tx, id)
			if err != nil {
				return err
			}
			at = &attempt{unit: *u}
			now := g.now().UTC()

			if u.IsTerminal() {
				return ErrAlreadyCompleted
			}
			if u.Status == models.WorkUnitStatusFunded && u.AttemptStartedAt != nil {
				if now.Sub(*u.AttemptStartedAt) < g.cfg.Lease {
					return ErrInProgress
				}
				// A previous attempt died after funding; take over its funding.
				at.reused = true
				log.Warnf("[Gate] Taking over stale attempt %s on work unit %s", u.AttemptID, u.UUID)
			}

			switch u.FundingMode {
			case models.FundingModeCredit:
				if err := g.fundCredit(ctx, tx, at); err != nil {
					return err
				}
			case models.FundingModeRetailToken:
				if err := fundRetail(u); err != nil {
					return err
				}
			default:
				return fmt.Errorf("gate: unknown funding mode %q", u.FundingMode)
			}

			at.id = uuid.NewString()
			at.unit.Status = models.WorkUnitStatusFunded
			at.unit.AttemptID = at.id
			at.unit.AttemptStartedAt = &now
			at.unit.FundedPool = at.pool
			if u.FundingMode == models.FundingModeRetailToken {
				at.unit.TokenUsed = true
			}
			return tx.Model(&models.WorkUnit{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
				"status":             models.WorkUnitStatusFunded,
				"attempt_id":         at.id,
				"attempt_started_at": now,
				"funded_pool":        at.pool,
				"token_used":         at.unit.TokenUsed,
				"failure_reason":     "",
			}).Error
		})
	})
	if err != nil {
		return at, err
	}
	return at, nil
}

func (g *Gate) fundCredit(ctx context.Context, tx *gorm.DB, at *attempt) error {
	u := &at.unit
	if at.reused && u.FundedPool != "" {
		at.pool = u.FundedPool
		return nil
	}
	if u.AccountID == nil {
		return ErrNoAccount
	}
	pool, err := g.ledger.WithTx(tx).Deduct(ctx, *u.AccountID)
	if err != nil {
		return err
	}
	at.pool = string(pool)
	return nil
}

// fundRetail consumes the unit's single-use token. A token spent by a failed
// attempt needs a new payment before the unit can be funded again.
func fundRetail(u *models.WorkUnit) error {
	if u.RetailPaidAt == nil {
		return ErrPaymentRequired
	}
	if u.TokenUsed && u.Status != models.WorkUnitStatusFunded {
		return ErrPaymentRequired
	}
	return nil
}

// complete is the second transaction.
func (g *Gate) complete(ctx context.Context, at *attempt, key string, genErr error) (*Result, error) {
	var (
		res    *Result
		failed error
	)
	err := ledger.WithRetry(ctx, ledger.DefaultRetryPolicy, "complete_work_unit", func() error {
		res, failed = nil, nil
		return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			u, err := ledger.LockWorkUnit(tx, at.unit.UUID)
			if err != nil {
				return err
			}
			if u.IsTerminal() {
				// A takeover attempt finished first.
				return ErrAlreadyCompleted
			}
			if genErr != nil {
				failed = fmt.Errorf("%w: %v", ErrPipelineFailed, genErr)
				return g.fail(ctx, tx, u, at, genErr)
			}

			now := g.now().UTC()
			if err := tx.Model(&models.WorkUnit{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
				"status":             models.WorkUnitStatusGenerated,
				"generation_count":   gorm.Expr("generation_count + 1"),
				"last_generated_at":  now,
				"document_key":       key,
				"attempt_id":         "",
				"attempt_started_at": gorm.Expr("NULL"),
				"failure_reason":     "",
			}).Error; err != nil {
				return err
			}
			res = &Result{
				UUID:            u.UUID,
				Status:          models.WorkUnitStatusGenerated,
				DocumentKey:     key,
				FundingMode:     u.FundingMode,
				FundedPool:      at.pool,
				GenerationCount: u.GenerationCount + 1,
				GeneratedAt:     &now,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if failed != nil {
		return nil, failed
	}
	log.Infof("[Gate] Work unit %s generated (%s)", res.UUID, res.FundingMode)
	return res, nil
}

// fail records a pipeline failure and applies the refund policy inside tx.
func (g *Gate) fail(ctx context.Context, tx *gorm.DB, u *models.WorkUnit, at *attempt, genErr error) error {
	if u.AttemptID != at.id {
		// Another attempt owns the unit now and will record its own outcome.
		log.Warnf("[Gate] Attempt %s on work unit %s lost its lease: %v", at.id, u.UUID, genErr)
		return nil
	}

	updates := map[string]interface{}{
		"status":             models.WorkUnitStatusFailed,
		"failure_reason":     truncate(genErr.Error(), 1000),
		"attempt_id":         "",
		"attempt_started_at": gorm.Expr("NULL"),
		"funded_pool":        "",
	}

	refunded := false
	if g.cfg.RefundPolicy == RefundOnFailure {
		switch u.FundingMode {
		case models.FundingModeCredit:
			if u.AccountID != nil && u.FundedPool != "" {
				if _, err := g.ledger.WithTx(tx).Credit(ctx, *u.AccountID, 1, ledger.ParsePool(u.FundedPool)); err != nil {
					return err
				}
				refunded = true
			}
		case models.FundingModeRetailToken:
			updates["token_used"] = false
			refunded = true
		}
	}

	if err := tx.Model(&models.WorkUnit{}).Where("id = ?", u.ID).Updates(updates).Error; err != nil {
		return err
	}
	log.Errorf("[Gate] Pipeline failed for work unit %s (refunded=%t): %v", u.UUID, refunded, genErr)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
