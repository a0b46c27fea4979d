package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DenialAppealPro/appealpro/app/controllers"
)

type SystemRouter struct {
	ctl *controllers.Controller
}

func (s SystemRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", s.ctl.HandleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func NewSystemRouter(ctl *controllers.Controller) *SystemRouter {
	return &SystemRouter{ctl: ctl}
}
