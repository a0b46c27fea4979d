package models

import "time"

// Subscription tiers. An empty tier means the account has no recurring plan.
const (
	TierNone    = ""
	TierStarter = "starter"
	TierGrowth  = "growth"
	TierPro     = "pro"
)

// Account holds the dual-pool credit balance of one paying identity.
// Balances are only ever mutated by the ledger under a row lock.
type Account struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Email               string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_accounts_email" json:"email"`
	ProcessorCustomerID string    `gorm:"type:varchar(191);not null;default:'';index" json:"processor_customer_id"`
	SubscriptionCredits int       `gorm:"not null;default:0" json:"subscription_credits"`
	BulkCredits         int       `gorm:"not null;default:0" json:"bulk_credits"`
	SubscriptionTier    *string   `gorm:"type:varchar(32);default:null" json:"subscription_tier"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TotalCredits returns the spendable balance across both pools.
func (a *Account) TotalCredits() int {
	return a.SubscriptionCredits + a.BulkCredits
}

// Tier returns the subscription tier or TierNone.
func (a *Account) Tier() string {
	if a.SubscriptionTier == nil {
		return TierNone
	}
	return *a.SubscriptionTier
}
