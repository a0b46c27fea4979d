package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/DenialAppealPro/appealpro/app/models"
	"github.com/DenialAppealPro/appealpro/internal/pkg/entitlements"
	"github.com/DenialAppealPro/appealpro/internal/pkg/ledger"
)

func balanceJSON(b ledger.Balance) fiber.Map {
	return fiber.Map{
		"account_id":           b.AccountID,
		"subscription_credits": b.SubscriptionCredits,
		"bulk_credits":         b.BulkCredits,
		"total":                b.Total(),
		"tier":                 b.Tier,
	}
}

// HandleDeduct consumes one credit outside of any generation.
func (ctl *Controller) HandleDeduct(c *fiber.Ctx) error {
	id, err := accountIDParam(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid account id")
	}

	pool, ok, err := ctl.ledger.DeductOrReject(c.UserContext(), id)
	switch {
	case err == nil && !ok:
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"ok": false, "error": "insufficient_credit"})
	case err == nil:
	case errors.Is(err, ledger.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "not_found", "Account not found")
	case errors.Is(err, ledger.ErrContended):
		return errorJSON(c, fiber.StatusServiceUnavailable, "contended", "Please retry")
	default:
		log.Errorf("[API] Deduct for account %d failed: %v", id, err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Deduction failed")
	}

	bal, err := ctl.ledger.Balance(c.UserContext(), id)
	if err != nil {
		return c.JSON(fiber.Map{"ok": true, "pool": pool})
	}
	return c.JSON(fiber.Map{"ok": true, "pool": pool, "balance": balanceJSON(bal)})
}

// HandleBalance returns both credit pools of an account.
func (ctl *Controller) HandleBalance(c *fiber.Ctx) error {
	id, err := accountIDParam(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid account id")
	}

	bal, err := ctl.ledger.Balance(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "not_found", "Account not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load balance")
	}
	return c.JSON(balanceJSON(bal))
}

// HandleListAccountAppeals pages through an account's work units.
func (ctl *Controller) HandleListAccountAppeals(c *fiber.Ctx) error {
	id, err := accountIDParam(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid account id")
	}
	if _, err := ctl.repos.GetAccountRepository().GetByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "not_found", "Account not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load account")
	}

	page, perPage, offset := pagination(c)
	repo := ctl.repos.GetWorkUnitRepository()
	units, err := repo.ListByAccountID(id, offset, perPage)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to list appeals")
	}
	total, err := repo.CountByAccountID(id)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count appeals")
	}

	return c.JSON(fiber.Map{
		"appeals":  units,
		"page":     page,
		"per_page": perPage,
		"total":    total,
	})
}

// HandleAccountStats summarises an account's plan, balance and appeal history.
func (ctl *Controller) HandleAccountStats(c *fiber.Ctx) error {
	id, err := accountIDParam(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid account id")
	}
	acct, err := ctl.repos.GetAccountRepository().GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "not_found", "Account not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load account")
	}

	repo := ctl.repos.GetWorkUnitRepository()
	total, err := repo.CountByAccountID(id)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count appeals")
	}
	completed, err := repo.CountByAccountIDAndStatus(id, models.WorkUnitStatusGenerated)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count appeals")
	}

	return c.JSON(fiber.Map{
		"account_id":           acct.ID,
		"email":                acct.Email,
		"subscription_tier":    acct.Tier(),
		"subscription_credits": acct.SubscriptionCredits,
		"bulk_credits":         acct.BulkCredits,
		"credit_balance":       acct.TotalCredits(),
		"included_credits":     entitlements.IncludedCredits(acct.Tier()),
		"total_appeals":        total,
		"completed_appeals":    completed,
		"member_since":         acct.CreatedAt,
	})
}

// HandleOverageQuote prices ?credits= beyond the account's plan allowance.
func (ctl *Controller) HandleOverageQuote(c *fiber.Ctx) error {
	id, err := accountIDParam(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid account id")
	}
	credits := c.QueryInt("credits", 0)
	if credits <= 0 {
		return errorJSON(c, fiber.StatusUnprocessableEntity, "validation_failed", "credits must be a positive integer")
	}
	acct, err := ctl.repos.GetAccountRepository().GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "not_found", "Account not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load account")
	}

	return c.JSON(fiber.Map{
		"account_id":        acct.ID,
		"subscription_tier": acct.Tier(),
		"credits":           credits,
		"cost_cents":        entitlements.OverageCostCents(acct.Tier(), credits),
	})
}
