package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to controllers to keep behavior consistent
	"github.com/DenialAppealPro/appealpro/app/controllers"
)

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer binds the v1 routes to the controller
type APIServer struct {
	ctl *controllers.Controller
}

// NewAPIServer creates a new API server instance
func NewAPIServer(ctl *controllers.Controller) *APIServer {
	return &APIServer{ctl: ctl}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// RegisterHandlers installs the v1 routes on r. Public routes come first;
// everything registered after the protected middleware requires an API key.
// The Stripe webhook authenticates by signature instead of API key.
func RegisterHandlers(r fiber.Router, s *APIServer, protected ...fiber.Handler) {
	r.Get("/ping", s.GetPing)
	r.Get("/pricing", controllers.HandlePricing)
	r.Get("/denial-codes", controllers.HandleDenialCodes)
	r.Post("/stripe/webhook", s.ctl.HandleStripeWebhook)

	p := r.Group("", protected...)
	p.Post("/appeals", s.ctl.HandleCreateAppeal)
	p.Post("/appeals/batch/generate", s.ctl.HandleBatchGenerate)
	p.Get("/appeals/:uuid", s.ctl.HandleGetAppeal)
	p.Get("/appeals/:uuid/document", s.ctl.HandleGetAppealDocument)
	p.Post("/appeals/:uuid/generate", s.ctl.HandleGenerateAppeal)

	p.Get("/accounts/:id/balance", s.ctl.HandleBalance)
	p.Get("/accounts/:id/appeals", s.ctl.HandleListAccountAppeals)
	p.Post("/accounts/:id/deduct", s.ctl.HandleDeduct)
	p.Get("/accounts/:id/stats", s.ctl.HandleAccountStats)
	p.Get("/accounts/:id/overage", s.ctl.HandleOverageQuote)

	p.Get("/payer-rules", s.ctl.HandleListPayerRules)
	p.Post("/payer-rules", s.ctl.HandleCreatePayerRule)
}
