package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/DenialAppealPro/appealpro/app/models"
	"github.com/DenialAppealPro/appealpro/internal/pkg/database"
	"github.com/DenialAppealPro/appealpro/internal/pkg/rules"
)

// createPayerRuleRequest uses pointers so omitted fields can take defaults.
type createPayerRuleRequest struct {
	PayerName            *string  `json:"payer_name"`
	PlanType             *string  `json:"plan_type"`
	AppealDeadlineDays   *int     `json:"appeal_deadline_days"`
	MaxAppealLevels      *int     `json:"max_appeal_levels"`
	SupportsPortal       *bool    `json:"supports_portal"`
	SupportsFax          *bool    `json:"supports_fax"`
	SupportsMail         *bool    `json:"supports_mail"`
	RequiredDocuments    []string `json:"required_documents"`
	RequiresResubmission bool     `json:"requires_resubmission"`
	SpecialInstructions  string   `json:"special_instructions"`
}

func (r createPayerRuleRequest) missing() []string {
	var out []string
	if r.PayerName == nil || strings.TrimSpace(*r.PayerName) == "" {
		out = append(out, "payer_name")
	}
	if r.PlanType == nil || strings.TrimSpace(*r.PlanType) == "" {
		out = append(out, "plan_type")
	}
	if r.AppealDeadlineDays == nil {
		out = append(out, "appeal_deadline_days")
	}
	return out
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func (r createPayerRuleRequest) toPayerRule() *models.PayerRule {
	rule := &models.PayerRule{
		PayerName:            strings.TrimSpace(*r.PayerName),
		PlanType:             strings.ToLower(strings.TrimSpace(*r.PlanType)),
		AppealDeadlineDays:   *r.AppealDeadlineDays,
		MaxAppealLevels:      rules.DefaultMaxLevels,
		SupportsPortal:       boolOr(r.SupportsPortal, false),
		SupportsFax:          boolOr(r.SupportsFax, true),
		SupportsMail:         boolOr(r.SupportsMail, true),
		RequiresResubmission: r.RequiresResubmission,
		SpecialInstructions:  strings.TrimSpace(r.SpecialInstructions),
	}
	if r.MaxAppealLevels != nil {
		rule.MaxAppealLevels = *r.MaxAppealLevels
	}
	rule.SetDocuments(r.RequiredDocuments)
	return rule
}

// HandleListPayerRules returns every configured payer rule.
func (ctl *Controller) HandleListPayerRules(c *fiber.Ctx) error {
	list, err := ctl.repos.GetPayerRuleRepository().List()
	if err != nil {
		log.Errorf("[API] List payer rules failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to list payer rules")
	}
	if list == nil {
		list = []models.PayerRule{}
	}
	return c.JSON(fiber.Map{"rules": list})
}

// HandleCreatePayerRule stores filing rules for a payer and plan type.
func (ctl *Controller) HandleCreatePayerRule(c *fiber.Ctx) error {
	var req createPayerRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	if missing := req.missing(); len(missing) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_fields", "missing": missing})
	}

	rule := req.toPayerRule()
	if problems := validationProblems(rule.Validate()); len(problems) > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "fields": problems})
	}

	if err := ctl.repos.GetPayerRuleRepository().Create(rule); err != nil {
		if database.IsDuplicateKey(err) {
			return errorJSON(c, fiber.StatusConflict, "duplicate", "A rule for this payer and plan type already exists")
		}
		log.Errorf("[API] Create payer rule failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create payer rule")
	}
	log.Infof("[API] Payer rule %d created for %s/%s", rule.ID, rule.PayerName, rule.PlanType)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": rule.ID, "message": "Payer rule created"})
}
