package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DenialAppealPro/appealpro/app/controllers"
)

// Router registers a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, ctl *controllers.Controller, cfg ApiConfig) {
	// System routes first so health and metrics bypass API auth and limits.
	setup(app, NewSystemRouter(ctl), NewApiRouter(ctl, cfg))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
