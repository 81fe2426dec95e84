package rest

import (
	"github.com/gofiber/fiber/v2"

	coreconfig "github.com/vectorhub/ragcache/core/config"
	"github.com/vectorhub/ragcache/pkg/utils"
)

// InitRestApp exposes the runtime settings view.
func InitRestApp(app fiber.Router) {
	app.Get("/app/status", func(c *fiber.Ctx) error {
		return c.JSON(utils.ResponseData{
			Status:  200,
			Code:    "SUCCESS",
			Message: "Application settings retrieved",
			Results: coreconfig.GetAllSettings(),
		})
	})
}
