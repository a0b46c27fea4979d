package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DenialAppealPro/appealpro/internal/pkg/entitlements"
	"github.com/DenialAppealPro/appealpro/internal/pkg/pipeline"
)

// HandlePricing returns the plan and pack catalog.
func HandlePricing(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "public, max-age=300")
	return c.JSON(entitlements.GetCatalog())
}

// HandleDenialCodes lists the denial codes the letter renderer describes.
func HandleDenialCodes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"codes": pipeline.DenialCodes()})
}
