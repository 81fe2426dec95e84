package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vectorhub/ragcache/domains/health"
	"github.com/vectorhub/ragcache/pkg/utils"
)

type Health struct {
	Service health.IHealthUsecase
}

func InitRestHealth(app fiber.Router, service health.IHealthUsecase) Health {
	handler := Health{Service: service}

	group := app.Group("/api/health")
	group.Get("/status", handler.GetStatus)
	group.Post("/check-all", handler.CheckAll)

	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	records := h.Service.GetStatus(c.UserContext())

	status := 200
	for _, record := range records {
		if record.Status == health.StatusError {
			status = 503
		}
	}

	return c.Status(status).JSON(utils.ResponseData{
		Status:  status,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: records,
	})
}

func (h *Health) CheckAll(c *fiber.Ctx) error {
	records := []health.HealthRecord{
		h.Service.CheckCacheStore(c.UserContext()),
		h.Service.CheckDatabase(c.UserContext()),
		h.Service.CheckQueue(c.UserContext()),
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Verification run for all entities",
		Results: records,
	})
}
