package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vectorhub/ragcache/pkg/ingestworker"
)

// InitRestWorkerPool exposes real-time ingest pool statistics. The pool
// may be nil when the process runs in API-only mode.
func InitRestWorkerPool(app fiber.Router, pool *ingestworker.Pool) {
	app.Get("/workers/stats", func(c *fiber.Ctx) error {
		if pool == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Ingest worker pool not running in this process",
			})
		}
		return c.JSON(pool.GetStats())
	})
}
