package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/DenialAppealPro/appealpro/app/models"
	"github.com/DenialAppealPro/appealpro/internal/pkg/gate"
	"github.com/DenialAppealPro/appealpro/internal/pkg/jobqueue"
	"github.com/DenialAppealPro/appealpro/internal/pkg/pipeline"
	"github.com/DenialAppealPro/appealpro/internal/pkg/rules"
	"github.com/DenialAppealPro/appealpro/internal/pkg/storage"
)

const (
	// MaxBatchSize is the largest batch accepted by HandleBatchGenerate.
	MaxBatchSize = 25
	// batchConcurrency bounds concurrent generations within one batch.
	batchConcurrency = 5

	dateLayout = "2006-01-02"
)

type createAppealRequest struct {
	AccountEmail      string   `json:"account_email"`
	FundingMode       string   `json:"funding_mode"`
	ContactEmail      string   `json:"contact_email"`
	PayerName         string   `json:"payer_name"`
	PlanType          string   `json:"plan_type"`
	ClaimNumber       string   `json:"claim_number"`
	PatientID         string   `json:"patient_id"`
	ProviderNPI       string   `json:"provider_npi"`
	DateOfService     string   `json:"date_of_service"`
	DenialDate        string   `json:"denial_date"`
	DenialReasonCodes []string `json:"denial_reason_codes"`
	AppealLevel       string   `json:"appeal_level"`
	SubmissionChannel string   `json:"submission_channel"`
}

func (r createAppealRequest) toWorkUnit() (*models.WorkUnit, map[string]string) {
	problems := map[string]string{}
	dos, err := time.Parse(dateLayout, strings.TrimSpace(r.DateOfService))
	if err != nil {
		problems["date_of_service"] = "must be a date in YYYY-MM-DD format"
	}
	denial, err := time.Parse(dateLayout, strings.TrimSpace(r.DenialDate))
	if err != nil {
		problems["denial_date"] = "must be a date in YYYY-MM-DD format"
	}
	if len(problems) == 0 && denial.Before(dos) {
		problems["denial_date"] = "must not be before date_of_service"
	}
	// Letters stay procedural; the level is the only free text they echo.
	if phrase := pipeline.CheckLanguage(r.AppealLevel); phrase != "" {
		problems["appeal_level"] = fmt.Sprintf("must not contain %q", phrase)
	}

	mode := strings.ToLower(strings.TrimSpace(r.FundingMode))
	if mode == "" {
		mode = models.FundingModeCredit
	}
	return &models.WorkUnit{
		FundingMode:       mode,
		ContactEmail:      strings.TrimSpace(r.ContactEmail),
		PayerName:         strings.TrimSpace(r.PayerName),
		PlanType:          strings.ToLower(strings.TrimSpace(r.PlanType)),
		ClaimNumber:       strings.TrimSpace(r.ClaimNumber),
		PatientID:         strings.TrimSpace(r.PatientID),
		ProviderNPI:       strings.TrimSpace(r.ProviderNPI),
		DateOfService:     dos,
		DenialDate:        denial,
		DenialReasonCodes: strings.Join(r.DenialReasonCodes, ","),
		AppealLevel:       strings.TrimSpace(r.AppealLevel),
		SubmissionChannel: strings.ToLower(strings.TrimSpace(r.SubmissionChannel)),
	}, problems
}

// validationProblems flattens validator errors into field -> rule. Field
// names are the json names registered on the model validator.
func validationProblems(err error) map[string]string {
	problems := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			problems[fe.Field()] = fe.Tag()
		}
	}
	return problems
}

// HandleCreateAppeal checks intake data against the payer filing rules and
// stores a new work unit.
func (ctl *Controller) HandleCreateAppeal(c *fiber.Ctx) error {
	var req createAppealRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}

	wu, problems := req.toWorkUnit()
	if len(problems) == 0 {
		problems = validationProblems(wu.Validate())
	}
	if len(problems) > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "fields": problems})
	}

	ctx := c.UserContext()
	applied, err := ctl.rules.Evaluate(ctx, wu)
	var violation *rules.Violation
	switch {
	case err == nil:
	case errors.As(err, &violation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":         "rule_violation",
			"rule":          violation.Rule,
			"message":       violation.Message,
			"rules_applied": applied,
		})
	default:
		log.Errorf("[API] Rule evaluation failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to check filing rules")
	}
	wu.AppealDeadline = applied.Deadline()
	wu.RulesApplied = applied.JSON()

	created, err := ctl.gate.CreateWorkUnit(ctx, wu, req.AccountEmail)
	switch {
	case err == nil:
	case errors.Is(err, gate.ErrNoAccount):
		return errorJSON(c, fiber.StatusUnprocessableEntity, "account_required", "Credit funded appeals need an account_email")
	default:
		if problems := validationProblems(err); len(problems) > 0 {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "fields": problems})
		}
		log.Errorf("[API] Create appeal failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create appeal")
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// HandleGetAppeal returns a work unit by uuid.
func (ctl *Controller) HandleGetAppeal(c *fiber.Ctx) error {
	wu, err := ctl.repos.GetWorkUnitRepository().GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "not_found", "Appeal not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load appeal")
	}
	return c.JSON(fiber.Map{
		"appeal":             wu,
		"document_available": wu.DocumentKey != "",
	})
}

// HandleGetAppealDocument streams the generated letter.
func (ctl *Controller) HandleGetAppealDocument(c *fiber.Ctx) error {
	wu, err := ctl.repos.GetWorkUnitRepository().GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "not_found", "Appeal not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load appeal")
	}
	if wu.DocumentKey == "" {
		return errorJSON(c, fiber.StatusNotFound, "not_generated", "Appeal has not been generated")
	}

	rc, err := ctl.store.Get(c.UserContext(), wu.DocumentKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "document_missing", "Document not found in storage")
		}
		log.Errorf("[API] Load document %s failed: %v", wu.DocumentKey, err)
		return errorJSON(c, fiber.StatusBadGateway, "storage_unavailable", "Failed to load document")
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return errorJSON(c, fiber.StatusBadGateway, "storage_unavailable", "Failed to read document")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="appeal-%s.html"`, wu.UUID))
	return c.Send(body)
}

// HandleGenerateAppeal funds and generates one work unit.
func (ctl *Controller) HandleGenerateAppeal(c *fiber.Ctx) error {
	id := c.Params("uuid")
	res, err := ctl.gate.RequestGeneration(c.UserContext(), id)
	if err == nil {
		ctl.notifyReady(c.UserContext(), id)
	}
	status, body := ctl.generationResponse(id, res, err)
	return c.Status(status).JSON(body)
}

type batchRequest struct {
	UUIDs []string `json:"uuids"`
}

// HandleBatchGenerate generates up to MaxBatchSize work units concurrently.
// Each unit goes through the same gate as a single request.
func (ctl *Controller) HandleBatchGenerate(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	if len(req.UUIDs) == 0 {
		return errorJSON(c, fiber.StatusUnprocessableEntity, "validation_failed", "uuids must not be empty")
	}
	if len(req.UUIDs) > MaxBatchSize {
		return errorJSON(c, fiber.StatusUnprocessableEntity, "batch_too_large", fmt.Sprintf("At most %d appeals per batch", MaxBatchSize))
	}

	ctx := c.UserContext()
	results := make([]fiber.Map, len(req.UUIDs))
	g := new(errgroup.Group)
	g.SetLimit(batchConcurrency)
	for i, id := range req.UUIDs {
		g.Go(func() error {
			res, err := ctl.gate.RequestGeneration(ctx, id)
			if err == nil {
				ctl.notifyReady(ctx, id)
			}
			status, body := ctl.generationResponse(id, res, err)
			body["http_status"] = status
			results[i] = body
			return nil
		})
	}
	_ = g.Wait()

	summary := map[string]int{}
	for _, r := range results {
		key, _ := r["status"].(string)
		if key == "" {
			key, _ = r["error"].(string)
		}
		summary[key]++
	}
	return c.JSON(fiber.Map{"results": results, "summary": summary})
}

// generationResponse maps a gate outcome to an HTTP status and body.
func (ctl *Controller) generationResponse(id string, res *gate.Result, err error) (int, fiber.Map) {
	switch {
	case err == nil:
		return fiber.StatusOK, fiber.Map{
			"uuid":             res.UUID,
			"status":           res.Status,
			"funding_mode":     res.FundingMode,
			"funded_pool":      res.FundedPool,
			"generation_count": res.GenerationCount,
			"generated_at":     res.GeneratedAt,
		}
	case errors.Is(err, gate.ErrAlreadyCompleted):
		return fiber.StatusOK, fiber.Map{"uuid": id, "status": "already_completed"}
	case errors.Is(err, gate.ErrInsufficientCredit):
		return fiber.StatusPaymentRequired, fiber.Map{"uuid": id, "error": "insufficient_credit", "message": "No credits left"}
	case errors.Is(err, gate.ErrPaymentRequired):
		return fiber.StatusPaymentRequired, fiber.Map{"uuid": id, "error": "payment_required", "message": "Retail payment has not been received"}
	case errors.Is(err, gate.ErrInProgress):
		return fiber.StatusConflict, fiber.Map{"uuid": id, "error": "in_progress", "message": "Generation already in progress"}
	case errors.Is(err, gate.ErrNotFound):
		return fiber.StatusNotFound, fiber.Map{"uuid": id, "error": "not_found", "message": "Appeal not found"}
	case errors.Is(err, gate.ErrPipelineFailed):
		return fiber.StatusBadGateway, fiber.Map{
			"uuid":              id,
			"error":             "pipeline_failed",
			"message":           "Document generation failed",
			"payment_preserved": ctl.gate.RefundPolicy() == gate.RefundOnFailure,
		}
	case errors.Is(err, gate.ErrContended):
		return fiber.StatusServiceUnavailable, fiber.Map{"uuid": id, "error": "contended", "message": "Please retry"}
	default:
		log.Errorf("[API] Generation of %s failed: %v", id, err)
		return fiber.StatusInternalServerError, fiber.Map{"uuid": id, "error": "internal_server_error", "message": "Generation failed"}
	}
}

// notifyReady enqueues the appeal-ready email. Failures are logged only.
func (ctl *Controller) notifyReady(ctx context.Context, id string) {
	if ctl.notifier == nil {
		return
	}
	wu, err := ctl.gate.Get(ctx, id)
	if err != nil {
		log.Warnf("[API] Appeal-ready notification for %s skipped: %v", id, err)
		return
	}
	email := wu.ContactEmail
	if email == "" && wu.AccountID != nil {
		if acct, err := ctl.repos.GetAccountRepository().GetByID(*wu.AccountID); err == nil {
			email = acct.Email
		}
	}
	if email == "" {
		return
	}
	err = ctl.notifier.NotifyAppealReady(jobqueue.AppealReadyJobPayload{
		WorkUnitUUID: wu.UUID,
		Email:        email,
		ClaimNumber:  wu.ClaimNumber,
		PayerName:    wu.PayerName,
		DocumentURL:  ctl.documentURL(wu.UUID),
	})
	if err != nil {
		log.Warnf("[API] Failed to enqueue appeal-ready email for %s: %v", id, err)
	}
}

// documentURL is the public link to a generated letter, or "" without a base URL.
func (ctl *Controller) documentURL(id string) string {
	if ctl.publicURL == "" {
		return ""
	}
	return ctl.publicURL + "/api/v1/appeals/" + url.PathEscape(id) + "/document"
}
