package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventKind is the provider-neutral meaning of a payment notification.
type EventKind string

const (
	KindSubscriptionPurchased EventKind = "subscription_purchased"
	KindBulkPackPurchased     EventKind = "bulk_pack_purchased"
	KindRetailPaid            EventKind = "retail_paid"
	KindSubscriptionRenewed   EventKind = "subscription_renewed"
	KindSubscriptionCanceled  EventKind = "subscription_canceled"
)

// NormalizedEvent is the provider-agnostic shape the reconciler consumes.
// Provider adapters fill it once at the boundary.
type NormalizedEvent struct {
	EventID      string
	Kind         EventKind
	AccountEmail string
	CustomerID   string
	Tier         string
	PackID       string
	Credits      int
	WorkUnitID   string
	OccurredAt   time.Time
}

var ErrMalformedEvent = errors.New("billing: malformed event")

// Validate checks that the fields the kind needs are present.
func (e NormalizedEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("%w: event id is required", ErrMalformedEvent)
	}
	hasAccount := strings.TrimSpace(e.AccountEmail) != "" || strings.TrimSpace(e.CustomerID) != ""

	switch e.Kind {
	case KindSubscriptionPurchased:
		if strings.TrimSpace(e.AccountEmail) == "" {
			return fmt.Errorf("%w: subscription purchase without email", ErrMalformedEvent)
		}
		if e.Tier == "" {
			return fmt.Errorf("%w: subscription purchase without tier", ErrMalformedEvent)
		}
	case KindBulkPackPurchased:
		if !hasAccount {
			return fmt.Errorf("%w: pack purchase without account", ErrMalformedEvent)
		}
		if e.Credits <= 0 {
			return fmt.Errorf("%w: pack purchase without credits", ErrMalformedEvent)
		}
	case KindRetailPaid:
		if strings.TrimSpace(e.WorkUnitID) == "" {
			return fmt.Errorf("%w: retail payment without work unit", ErrMalformedEvent)
		}
	case KindSubscriptionRenewed, KindSubscriptionCanceled:
		if !hasAccount {
			return fmt.Errorf("%w: %s without account", ErrMalformedEvent, e.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, e.Kind)
	}
	return nil
}
