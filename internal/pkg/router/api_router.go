package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DenialAppealPro/appealpro/app/controllers"
	apiv1 "github.com/DenialAppealPro/appealpro/internal/api/v1"
	"github.com/DenialAppealPro/appealpro/internal/pkg/middleware"
)

// ApiConfig holds what the API routes need beyond the controller.
type ApiConfig struct {
	APIKeys   []string
	RateLimit middleware.RateLimitConfig
}

type ApiRouter struct {
	ctl *controllers.Controller
	cfg ApiConfig
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer(h.ctl)
	apiv1.RegisterHandlers(v1, apiServer,
		middleware.APIKeyAuthMiddleware(h.cfg.APIKeys),
		middleware.RateLimit(h.cfg.RateLimit),
	)
}

func NewApiRouter(ctl *controllers.Controller, cfg ApiConfig) *ApiRouter {
	return &ApiRouter{ctl: ctl, cfg: cfg}
}
