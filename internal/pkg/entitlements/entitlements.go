// Package entitlements is the pricing catalog: subscription plans, credit packs
// and the retail per-appeal price. Amounts are in US cents.
package entitlements

import (
	"sort"
	"strings"

	"github.com/DenialAppealPro/appealpro/app/models"
)

type Plan string

const (
	PlanNone    Plan = Plan(models.TierNone)
	PlanStarter Plan = models.TierStarter
	PlanGrowth  Plan = models.TierGrowth
	PlanPro     Plan = models.TierPro
)

// RetailPriceCents is the price of a single appeal bought without credits.
const RetailPriceCents = 1000

// PlanInfo describes a subscription tier.
type PlanInfo struct {
	ID                Plan   `json:"id"`
	Name              string `json:"name"`
	MonthlyPriceCents int64  `json:"monthly_price_cents"`
	IncludedCredits   int    `json:"included_credits"`
	OveragePriceCents int64  `json:"overage_price_cents"`
}

// Pack describes a one-time bulk credit purchase.
type Pack struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Credits        int    `json:"credits"`
	PriceCents     int64  `json:"price_cents"`
	PerCreditCents int64  `json:"per_credit_cents"`
}

var plans = map[Plan]PlanInfo{
	PlanStarter: {ID: PlanStarter, Name: "Starter", MonthlyPriceCents: 9900, IncludedCredits: 20, OveragePriceCents: 800},
	PlanGrowth:  {ID: PlanGrowth, Name: "Growth", MonthlyPriceCents: 29900, IncludedCredits: 75, OveragePriceCents: 700},
	PlanPro:     {ID: PlanPro, Name: "Pro", MonthlyPriceCents: 59900, IncludedCredits: 200, OveragePriceCents: 600},
}

var packs = map[string]Pack{
	"pack_25":  {ID: "pack_25", Name: "25 Credits", Credits: 25, PriceCents: 22500, PerCreditCents: 900},
	"pack_50":  {ID: "pack_50", Name: "50 Credits", Credits: 50, PriceCents: 42500, PerCreditCents: 850},
	"pack_100": {ID: "pack_100", Name: "100 Credits", Credits: 100, PriceCents: 75000, PerCreditCents: 750},
	"pack_250": {ID: "pack_250", Name: "250 Credits", Credits: 250, PriceCents: 175000, PerCreditCents: 700},
	"pack_500": {ID: "pack_500", Name: "500 Credits", Credits: 500, PriceCents: 325000, PerCreditCents: 650},
}

// NormalizePlan maps free-form input to a known plan or PlanNone.
func NormalizePlan(plan string) Plan {
	p := Plan(strings.ToLower(strings.TrimSpace(plan)))
	if _, ok := plans[p]; ok {
		return p
	}
	return PlanNone
}

// PlanRank orders plans by included credits; PlanNone ranks lowest.
func PlanRank(plan Plan) int {
	switch NormalizePlan(string(plan)) {
	case PlanPro:
		return 3
	case PlanGrowth:
		return 2
	case PlanStarter:
		return 1
	default:
		return 0
	}
}

// LookupPlan returns the tier details for plan.
func LookupPlan(plan string) (PlanInfo, bool) {
	p, ok := plans[NormalizePlan(plan)]
	return p, ok
}

// IncludedCredits returns the monthly subscription pool for plan, or 0.
func IncludedCredits(plan string) int {
	p, _ := LookupPlan(plan)
	return p.IncludedCredits
}

// LookupPack returns the credit pack for id.
func LookupPack(id string) (Pack, bool) {
	p, ok := packs[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// OverageCostCents prices credits bought beyond the plan allowance. Without a
// plan the retail price applies.
func OverageCostCents(plan string, credits int) int64 {
	if credits <= 0 {
		return 0
	}
	p, ok := LookupPlan(plan)
	if !ok {
		return int64(credits) * RetailPriceCents
	}
	return int64(credits) * p.OveragePriceCents
}

// Catalog is the public price list.
type Catalog struct {
	Plans            []PlanInfo `json:"plans"`
	Packs            []Pack     `json:"packs"`
	RetailPriceCents int64      `json:"retail_price_cents"`
}

// GetCatalog returns plans by rank and packs by size.
func GetCatalog() Catalog {
	c := Catalog{RetailPriceCents: RetailPriceCents}
	for _, p := range plans {
		c.Plans = append(c.Plans, p)
	}
	sort.Slice(c.Plans, func(i, j int) bool { return PlanRank(c.Plans[i].ID) < PlanRank(c.Plans[j].ID) })
	for _, p := range packs {
		c.Packs = append(c.Packs, p)
	}
	sort.Slice(c.Packs, func(i, j int) bool { return c.Packs[i].Credits < c.Packs[j].Credits })
	return c
}
