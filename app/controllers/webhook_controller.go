package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/DenialAppealPro/appealpro/internal/pkg/billing"
	"github.com/DenialAppealPro/appealpro/internal/pkg/ledger"
)

// HandleStripeWebhook verifies, normalizes and reconciles a Stripe event.
// Any non-2xx response makes Stripe redeliver the event later.
func (ctl *Controller) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	ev, err := ctl.stripe.Parse(rawBody, signature)
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrInvalidSignature):
		log.Warnf("[Webhook] Rejected Stripe event: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	case errors.Is(err, billing.ErrEventIgnored):
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	case errors.Is(err, billing.ErrMalformedEvent):
		log.Errorf("[Webhook] Malformed Stripe event: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_parse_failed"})
	}

	outcome, err := ctl.billing.Reconcile(c.UserContext(), *ev)
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrNoActiveSubscription):
		// Not recorded; the redelivery is applied once the purchase arrives.
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no_active_subscription"})
	case errors.Is(err, ledger.ErrNotFound):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "unknown_reference"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reconcile_failed"})
	}

	if outcome == ledger.OutcomeDuplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "kind": ev.Kind})
}
