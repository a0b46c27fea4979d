package billing

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test_secret"

func signed(t *testing.T, event map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func stripeEvent(id, typ string, object map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":      id,
		"object":  "event",
		"type":    typ,
		"created": time.Now().Unix(),
		"data":    map[string]interface{}{"object": object},
	}
}

func newAdapter() *StripeAdapter {
	return NewStripeAdapter(&Config{WebhookSecret: testSecret, Tolerance: 5 * time.Minute})
}

func TestStripeCheckoutSubscription(t *testing.T) {
	payload, header := signed(t, stripeEvent("evt_1", "checkout.session.completed", map[string]interface{}{
		"id":               "cs_1",
		"object":           "checkout.session",
		"payment_status":   "paid",
		"customer":         "cus_42",
		"customer_details": map[string]interface{}{"email": "owner@clinic.test"},
		"metadata":         map[string]string{"purchase_type": "subscription", "tier": "Growth"},
	}))

	ev, err := newAdapter().Parse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.EventID)
	assert.Equal(t, KindSubscriptionPurchased, ev.Kind)
	assert.Equal(t, "growth", ev.Tier)
	assert.Equal(t, "cus_42", ev.CustomerID)
	assert.Equal(t, "owner@clinic.test", ev.AccountEmail)
}

func TestStripeEventWithoutIDUsesPayloadHash(t *testing.T) {
	event := stripeEvent("", "checkout.session.completed", map[string]interface{}{
		"id":             "cs_noid",
		"object":         "checkout.session",
		"payment_status": "paid",
		"customer_email": "buyer@clinic.test",
		"metadata":       map[string]string{"purchase_type": "bulk_pack", "pack_id": "pack_25"},
	})
	payload, header := signed(t, event)

	first, err := newAdapter().Parse(payload, header)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.EventID, "hash:"), first.EventID)

	// A redelivery of the same body maps to the same key.
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now().Add(time.Second),
	})
	second, err := newAdapter().Parse(sp.Payload, sp.Header)
	require.NoError(t, err)
	assert.Equal(t, first.EventID, second.EventID)
}

func TestStripeCheckoutBulkPack(t *testing.T) {
	payload, header := signed(t, stripeEvent("evt_2", "checkout.session.completed", map[string]interface{}{
		"id":             "cs_2",
		"object":         "checkout.session",
		"payment_status": "paid",
		"customer_email": "buyer@clinic.test",
		"metadata":       map[string]string{"purchase_type": "bulk_pack", "pack_id": "pack_250"},
	}))

	ev, err := newAdapter().Parse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, KindBulkPackPurchased, ev.Kind)
	assert.Equal(t, 250, ev.Credits)
	assert.Equal(t, "pack_250", ev.PackID)
}

func TestStripeCheckoutRetail(t *testing.T) {
	payload, header := signed(t, stripeEvent("evt_3", "checkout.session.completed", map[string]interface{}{
		"id":             "cs_3",
		"object":         "checkout.session",
		"payment_status": "paid",
		"metadata":       map[string]string{"purchase_type": "retail", "work_unit_id": "wu-1"},
	}))

	ev, err := newAdapter().Parse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, KindRetailPaid, ev.Kind)
	assert.Equal(t, "wu-1", ev.WorkUnitID)
}

func TestStripeCheckoutUnpaidIsIgnored(t *testing.T) {
	payload, header := signed(t, stripeEvent("evt_4", "checkout.session.completed", map[string]interface{}{
		"id":             "cs_4",
		"object":         "checkout.session",
		"payment_status": "unpaid",
		"metadata":       map[string]string{"purchase_type": "retail", "work_unit_id": "wu-1"},
	}))

	_, err := newAdapter().Parse(payload, header)
	assert.ErrorIs(t, err, ErrEventIgnored)
}

func TestStripeCheckoutUnknownPack(t *testing.T) {
	payload, header := signed(t, stripeEvent("evt_5", "checkout.session.completed", map[string]interface{}{
		"id":             "cs_5",
		"object":         "checkout.session",
		"payment_status": "paid",
		"customer_email": "buyer@clinic.test",
		"metadata":       map[string]string{"purchase_type": "bulk_pack", "pack_id": "pack_3"},
	}))

	_, err := newAdapter().Parse(payload, header)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestStripeInvoiceRenewal(t *testing.T) {
	payload, header := signed(t, stripeEvent("evt_6", "invoice.paid", map[string]interface{}{
		"id":             "in_1",
		"object":         "invoice",
		"billing_reason": "subscription_cycle",
		"customer":       "cus_42",
		"customer_email": "owner@clinic.test",
	}))

	ev, err := newAdapter().Parse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, KindSubscriptionRenewed, ev.Kind)
	assert.Equal(t, "cus_42", ev.CustomerID)
	assert.Empty(t, ev.Tier)
}

func TestStripeFirstInvoiceIsIgnored(t *testing.T) {
	payload, header := signed(t, stripeEvent("evt_7", "invoice.paid", map[string]interface{}{
		"id":             "in_2",
		"object":         "invoice",
		"billing_reason": "subscription_create",
		"customer":       "cus_42",
	}))

	_, err := newAdapter().Parse(payload, header)
	assert.ErrorIs(t, err, ErrEventIgnored)
}

func TestStripeSubscriptionDeleted(t *testing.T) {
	payload, header := signed(t, stripeEvent("evt_8", "customer.subscription.deleted", map[string]interface{}{
		"id":       "sub_1",
		"object":   "subscription",
		"customer": "cus_42",
	}))

	ev, err := newAdapter().Parse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, KindSubscriptionCanceled, ev.Kind)
	assert.Equal(t, "cus_42", ev.CustomerID)
}

func TestStripeUnhandledType(t *testing.T) {
	payload, header := signed(t, stripeEvent("evt_9", "charge.refunded", map[string]interface{}{"id": "ch_1", "object": "charge"}))
	_, err := newAdapter().Parse(payload, header)
	assert.ErrorIs(t, err, ErrEventIgnored)
}

func TestStripeBadSignature(t *testing.T) {
	payload, _ := signed(t, stripeEvent("evt_10", "invoice.paid", map[string]interface{}{"id": "in_3", "object": "invoice"}))
	_, err := newAdapter().Parse(payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
