package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DenialAppealPro/appealpro/internal/pkg/storage"
)

// HandleHealth reports the state of every dependency. The blob store and the
// registered checks must all pass for a 200.
func (ctl *Controller) HandleHealth(c *fiber.Ctx) error {
	healthy := true
	checks := fiber.Map{}

	if ctl.store != nil {
		h := storage.CheckHealth(c.UserContext(), ctl.store)
		checks["storage"] = h
		healthy = healthy && h.Healthy
	}
	for name, p := range ctl.checks {
		if err := p.Ping(); err != nil {
			checks[name] = fiber.Map{"healthy": false, "error": err.Error()}
			healthy = false
			continue
		}
		checks[name] = fiber.Map{"healthy": true}
	}

	status := fiber.StatusOK
	state := "ok"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "checks": checks})
}
