package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/DenialAppealPro/appealpro/app/models"
	"github.com/DenialAppealPro/appealpro/internal/pkg/entitlements"
	"github.com/DenialAppealPro/appealpro/internal/pkg/gate"
	"github.com/DenialAppealPro/appealpro/internal/pkg/ledger"
	"github.com/DenialAppealPro/appealpro/internal/pkg/metrics"
)

var (
	// ErrNoActiveSubscription means a renewal arrived for an account without a
	// tier. The event is not recorded, so the processor redelivers it once the
	// purchase event has been applied.
	ErrNoActiveSubscription = errors.New("billing: no active subscription")

	ErrUnknownTier = errors.New("billing: unknown tier")
)

// Service reconciles normalized payment events into ledger operations.
type Service struct {
	guard  *ledger.Guard
	ledger *ledger.Ledger
}

// NewService creates a billing service from injected collaborators.
func NewService(guard *ledger.Guard, l *ledger.Ledger) *Service {
	return &Service{guard: guard, ledger: l}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(ledger.NewGuard(db), ledger.New(db))
}

// Reconcile applies ev exactly once. Repeated deliveries of the same event id
// return OutcomeDuplicate without touching any balance.
func (s *Service) Reconcile(ctx context.Context, ev NormalizedEvent) (ledger.Outcome, error) {
	if err := ev.Validate(); err != nil {
		metrics.ProcessedEvents.WithLabelValues(string(ev.Kind), "rejected").Inc()
		return "", err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	out, err := s.guard.Process(ctx, ev.EventID, string(ev.Kind), func(tx *gorm.DB) error {
		return s.apply(ctx, tx, ev)
	})
	if err != nil {
		metrics.ProcessedEvents.WithLabelValues(string(ev.Kind), "failed").Inc()
		log.Errorf("[Reconciler] Event %s (%s) failed: %v", ev.EventID, ev.Kind, err)
		return "", err
	}
	metrics.ProcessedEvents.WithLabelValues(string(ev.Kind), string(out)).Inc()
	if out == ledger.OutcomeApplied {
		log.Infof("[Reconciler] Applied %s (%s)", ev.EventID, ev.Kind)
	}
	return out, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, ev NormalizedEvent) error {
	l := s.ledger.WithTx(tx)

	switch ev.Kind {
	case KindSubscriptionPurchased:
		tier := normalizeTier(ev.Tier)
		plan, ok := entitlements.LookupPlan(tier)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTier, ev.Tier)
		}
		acct, err := s.resolveAccount(tx, ev, true)
		if err != nil {
			return err
		}
		if err := l.SetTier(ctx, acct.ID, tier); err != nil {
			return err
		}
		_, err = l.ResetSubscriptionPool(ctx, acct.ID, plan.IncludedCredits)
		return err

	case KindBulkPackPurchased:
		acct, err := s.resolveAccount(tx, ev, true)
		if err != nil {
			return err
		}
		_, err = l.Credit(ctx, acct.ID, ev.Credits, ledger.PoolBulk)
		return err

	case KindRetailPaid:
		changed, err := gate.MarkRetailPaid(tx, ev.WorkUnitID, ev.OccurredAt)
		if err != nil {
			return err
		}
		if !changed {
			log.Infof("[Reconciler] Retail payment %s for work unit %s changed nothing", ev.EventID, ev.WorkUnitID)
		}
		return nil

	case KindSubscriptionRenewed:
		acct, err := s.resolveAccount(tx, ev, false)
		if errors.Is(err, ledger.ErrNotFound) {
			return fmt.Errorf("%w: no account for %s", ErrNoActiveSubscription, ev.EventID)
		}
		if err != nil {
			return err
		}
		tier := renewalTier(ev.Tier, acct.Tier())
		plan, ok := entitlements.LookupPlan(tier)
		if !ok {
			return fmt.Errorf("%w: account %d", ErrNoActiveSubscription, acct.ID)
		}
		if tier != acct.Tier() {
			if err := l.SetTier(ctx, acct.ID, tier); err != nil {
				return err
			}
		}
		_, err = l.ResetSubscriptionPool(ctx, acct.ID, plan.IncludedCredits)
		return err

	case KindSubscriptionCanceled:
		acct, err := s.resolveAccount(tx, ev, false)
		if errors.Is(err, ledger.ErrNotFound) {
			log.Warnf("[Reconciler] Cancellation %s for unknown account ignored", ev.EventID)
			return nil
		}
		if err != nil {
			return err
		}
		return l.ClearTier(ctx, acct.ID)
	}
	return fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, ev.Kind)
}

// resolveAccount finds the account an event refers to, by processor customer
// id first and email second. With create set, an unknown email gets a new account.
func (s *Service) resolveAccount(tx *gorm.DB, ev NormalizedEvent, create bool) (*models.Account, error) {
	acct, err := ledger.FindAccountByCustomerID(tx, ev.CustomerID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	if ev.AccountEmail == "" {
		return nil, ledger.ErrNotFound
	}
	if create {
		acct, err = ledger.GetOrCreateAccount(tx, ev.AccountEmail)
	} else {
		acct, err = ledger.FindAccountByEmail(tx, ev.AccountEmail)
	}
	if err != nil {
		return nil, err
	}
	if err := ledger.LinkCustomer(tx, acct, ev.CustomerID); err != nil {
		return nil, err
	}
	return acct, nil
}
