// Package ledger owns every mutation of account credit balances.
//
// Each operation locks the account row inside a transaction, so operations on
// the same account are linearized by the database across processes. Operations
// on different accounts never contend.
package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/DenialAppealPro/appealpro/app/models"
	"github.com/DenialAppealPro/appealpro/internal/pkg/database"
	"github.com/DenialAppealPro/appealpro/internal/pkg/metrics"
)

// Pool names one of the two credit balances.
type Pool string

const (
	PoolSubscription Pool = "subscription"
	PoolBulk         Pool = "bulk"
)

func (p Pool) column() (string, error) {
	switch p {
	case PoolSubscription:
		return "subscription_credits", nil
	case PoolBulk, "":
		return "bulk_credits", nil
	default:
		return "", ErrInvalidPool
	}
}

// ParsePool maps a stored pool name back to a Pool; unknown names are bulk.
func ParsePool(s string) Pool {
	if strings.EqualFold(strings.TrimSpace(s), string(PoolSubscription)) {
		return PoolSubscription
	}
	return PoolBulk
}

// Balance is a point-in-time view of an account.
type Balance struct {
	AccountID           uint   `json:"account_id"`
	SubscriptionCredits int    `json:"subscription_credits"`
	BulkCredits         int    `json:"bulk_credits"`
	Tier                string `json:"tier"`
}

func (b Balance) Total() int {
	return b.SubscriptionCredits + b.BulkCredits
}

func balanceOf(a *models.Account) Balance {
	return Balance{
		AccountID:           a.ID,
		SubscriptionCredits: a.SubscriptionCredits,
		BulkCredits:         a.BulkCredits,
		Tier:                a.Tier(),
	}
}

// Ledger is stateless apart from its database handle.
type Ledger struct {
	db    *gorm.DB
	tx    *gorm.DB
	retry RetryPolicy
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db, retry: DefaultRetryPolicy}
}

// WithRetryPolicy returns a copy of the ledger using p.
func (l *Ledger) WithRetryPolicy(p RetryPolicy) *Ledger {
	cp := *l
	cp.retry = p
	return &cp
}

// WithTx returns a ledger whose operations run as savepoints inside tx. The
// account lock is then held until tx ends. Contention is reported, not retried;
// the owner of tx decides whether to retry the whole transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	cp := *l
	cp.tx = tx
	return &cp
}

func (l *Ledger) run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	var err error
	if l.tx != nil {
		err = l.tx.WithContext(ctx).Transaction(fn)
		if database.IsLockContention(err) {
			err = Contended(err)
		}
	} else {
		err = WithRetry(ctx, l.retry, op, func() error {
			return l.db.WithContext(ctx).Transaction(fn)
		})
	}
	metrics.LedgerOperations.WithLabelValues(op, resultLabel(err)).Inc()
	return err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientCredit):
		return "insufficient"
	case errors.Is(err, ErrContended):
		return "contended"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Deduct consumes one credit, draining the subscription pool before the bulk
// pool, and returns the pool charged. Empty accounts get ErrInsufficientCredit
// and are left untouched.
func (l *Ledger) Deduct(ctx context.Context, accountID uint) (Pool, error) {
	var charged Pool
	err := l.run(ctx, "deduct", func(tx *gorm.DB) error {
		acct, err := LockAccount(tx, accountID)
		if err != nil {
			return err
		}
		if acct.TotalCredits() <= 0 {
			return ErrInsufficientCredit
		}

		charged = PoolBulk
		if acct.SubscriptionCredits > 0 {
			charged = PoolSubscription
		}
		col, _ := charged.column()
		return tx.Model(&models.Account{}).Where("id = ?", accountID).
			Update(col, gorm.Expr(col+" - 1")).Error
	})
	if err != nil {
		return "", err
	}
	return charged, nil
}

// Credit adds amount to pool. One-time purchases use PoolBulk, which never expires.
func (l *Ledger) Credit(ctx context.Context, accountID uint, amount int, pool Pool) (Balance, error) {
	if amount <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	col, err := pool.column()
	if err != nil {
		return Balance{}, err
	}

	var bal Balance
	err = l.run(ctx, "credit", func(tx *gorm.DB) error {
		acct, err := LockAccount(tx, accountID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Account{}).Where("id = ?", accountID).
			Update(col, gorm.Expr(col+" + ?", amount)).Error; err != nil {
			return err
		}
		if col == "subscription_credits" {
			acct.SubscriptionCredits += amount
		} else {
			acct.BulkCredits += amount
		}
		bal = balanceOf(acct)
		return nil
	})
	return bal, err
}

// ResetSubscriptionPool overwrites the subscription pool with newAmount. The
// bulk pool is never read or written here, so renewals cannot inflate it.
func (l *Ledger) ResetSubscriptionPool(ctx context.Context, accountID uint, newAmount int) (Balance, error) {
	if newAmount < 0 {
		return Balance{}, ErrInvalidAmount
	}

	var bal Balance
	err := l.run(ctx, "reset_subscription", func(tx *gorm.DB) error {
		acct, err := LockAccount(tx, accountID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Account{}).Where("id = ?", accountID).
			Update("subscription_credits", newAmount).Error; err != nil {
			return err
		}
		acct.SubscriptionCredits = newAmount
		bal = balanceOf(acct)
		return nil
	})
	return bal, err
}

// SetTier records the subscription tier. Balances are not changed.
func (l *Ledger) SetTier(ctx context.Context, accountID uint, tier string) error {
	tier = strings.ToLower(strings.TrimSpace(tier))
	if tier == models.TierNone {
		return l.ClearTier(ctx, accountID)
	}
	return l.run(ctx, "set_tier", func(tx *gorm.DB) error {
		if _, err := LockAccount(tx, accountID); err != nil {
			return err
		}
		return tx.Model(&models.Account{}).Where("id = ?", accountID).
			Update("subscription_tier", tier).Error
	})
}

// ClearTier removes the subscription tier. Existing credits stay spendable.
func (l *Ledger) ClearTier(ctx context.Context, accountID uint) error {
	return l.run(ctx, "clear_tier", func(tx *gorm.DB) error {
		if _, err := LockAccount(tx, accountID); err != nil {
			return err
		}
		return tx.Model(&models.Account{}).Where("id = ?", accountID).
			Update("subscription_tier", gorm.Expr("NULL")).Error
	})
}

// Balance reads the current balance without locking.
func (l *Ledger) Balance(ctx context.Context, accountID uint) (Balance, error) {
	db := l.db
	if l.tx != nil {
		db = l.tx
	}
	var acct models.Account
	if err := db.WithContext(ctx).Where("id = ?", accountID).First(&acct).Error; err != nil {
		return Balance{}, notFound(err)
	}
	return balanceOf(&acct), nil
}

// DeductOrReject is Deduct with an empty account reported as ok=false instead
// of an error. The pool is set only when ok is true.
func (l *Ledger) DeductOrReject(ctx context.Context, accountID uint) (Pool, bool, error) {
	pool, err := l.Deduct(ctx, accountID)
	if errors.Is(err, ErrInsufficientCredit) {
		log.Debugf("[Ledger] Account %d has no credits left", accountID)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return pool, true, nil
}
