package billing

import (
	"strings"

	"github.com/DenialAppealPro/appealpro/internal/pkg/entitlements"
)

func normalizeTier(tier string) string {
	return string(entitlements.NormalizePlan(tier))
}

// renewalTier picks the tier to renew: the event's own tier wins, otherwise
// the tier stored on the account.
func renewalTier(eventTier, accountTier string) string {
	if t := normalizeTier(eventTier); t != "" {
		return t
	}
	return normalizeTier(accountTier)
}

func isPaidCheckout(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "no_payment_required":
		return true
	default:
		return false
	}
}
