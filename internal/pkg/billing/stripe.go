package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/DenialAppealPro/appealpro/internal/pkg/entitlements"
	"github.com/DenialAppealPro/appealpro/internal/pkg/ledger"
)

// Checkout session metadata keys set when the session is created.
const (
	MetaPurchaseType = "purchase_type"
	MetaTier         = "tier"
	MetaPackID       = "pack_id"
	MetaWorkUnitID   = "work_unit_id"
	MetaEmail        = "email"
)

// purchase_type values
const (
	PurchaseSubscription = "subscription"
	PurchaseBulkPack     = "bulk_pack"
	PurchaseRetail       = "retail"
)

var (
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
	// ErrEventIgnored marks notifications that carry no ledger effect.
	ErrEventIgnored = errors.New("billing: event ignored")
)

// StripeAdapter verifies Stripe webhooks and normalizes them.
type StripeAdapter struct {
	secret    string
	tolerance time.Duration
}

func NewStripeAdapter(cfg *Config) *StripeAdapter {
	return &StripeAdapter{secret: cfg.WebhookSecret, tolerance: cfg.Tolerance}
}

// Parse verifies the Stripe-Signature header and maps the event. Unhandled
// event types return ErrEventIgnored.
func (a *StripeAdapter) Parse(payload []byte, signatureHeader string) (*NormalizedEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, a.secret, webhook.ConstructEventOptions{
		Tolerance:                a.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	ev := &NormalizedEvent{
		EventID:    ledger.EventID(event.ID, payload),
		OccurredAt: time.Unix(event.Created, 0).UTC(),
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		err = a.fromCheckoutSession(event, ev)
	case stripe.EventTypeInvoicePaid:
		err = a.fromInvoice(event, ev)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		err = a.fromSubscriptionDeleted(event, ev)
	default:
		log.Debugf("[Stripe] Unhandled event type: %s", event.Type)
		return nil, ErrEventIgnored
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (a *StripeAdapter) fromCheckoutSession(event stripe.Event, ev *NormalizedEvent) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("%w: checkout session: %v", ErrMalformedEvent, err)
	}
	if !isPaidCheckout(string(session.PaymentStatus)) {
		log.Infof("[Stripe] Session %s completed with payment status %s, skipping", session.ID, session.PaymentStatus)
		return ErrEventIgnored
	}

	meta := session.Metadata
	ev.AccountEmail = firstNonEmpty(checkoutEmail(&session), meta[MetaEmail])
	if session.Customer != nil {
		ev.CustomerID = session.Customer.ID
	}

	switch strings.ToLower(strings.TrimSpace(meta[MetaPurchaseType])) {
	case PurchaseSubscription:
		ev.Kind = KindSubscriptionPurchased
		ev.Tier = normalizeTier(meta[MetaTier])
		if ev.Tier == "" {
			return fmt.Errorf("%w: unknown tier %q", ErrMalformedEvent, meta[MetaTier])
		}
	case PurchaseBulkPack:
		pack, ok := entitlements.LookupPack(meta[MetaPackID])
		if !ok {
			return fmt.Errorf("%w: unknown pack %q", ErrMalformedEvent, meta[MetaPackID])
		}
		ev.Kind = KindBulkPackPurchased
		ev.PackID = pack.ID
		ev.Credits = pack.Credits
	case PurchaseRetail:
		ev.Kind = KindRetailPaid
		ev.WorkUnitID = strings.TrimSpace(meta[MetaWorkUnitID])
	default:
		return fmt.Errorf("%w: unknown purchase_type %q", ErrMalformedEvent, meta[MetaPurchaseType])
	}
	return ev.Validate()
}

// fromInvoice maps paid renewal invoices. The first invoice of a subscription
// is covered by checkout.session.completed and is ignored here.
func (a *StripeAdapter) fromInvoice(event stripe.Event, ev *NormalizedEvent) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return fmt.Errorf("%w: invoice: %v", ErrMalformedEvent, err)
	}
	if inv.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle {
		return ErrEventIgnored
	}

	ev.Kind = KindSubscriptionRenewed
	ev.AccountEmail = inv.CustomerEmail
	if inv.Customer != nil {
		ev.CustomerID = inv.Customer.ID
	}
	ev.Tier = normalizeTier(inv.Metadata[MetaTier])
	return ev.Validate()
}

func (a *StripeAdapter) fromSubscriptionDeleted(event stripe.Event, ev *NormalizedEvent) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("%w: subscription: %v", ErrMalformedEvent, err)
	}

	ev.Kind = KindSubscriptionCanceled
	ev.AccountEmail = sub.Metadata[MetaEmail]
	if sub.Customer != nil {
		ev.CustomerID = sub.Customer.ID
	}
	return ev.Validate()
}

func checkoutEmail(s *stripe.CheckoutSession) string {
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		return s.CustomerDetails.Email
	}
	return s.CustomerEmail
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
