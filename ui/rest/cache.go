package rest

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"

	domainCache "github.com/vectorhub/ragcache/domains/cache"
	"github.com/vectorhub/ragcache/pkg/utils"
	"github.com/vectorhub/ragcache/ui/rest/middleware"
	"github.com/vectorhub/ragcache/validations"
)

type Cache struct {
	Service domainCache.ICacheUsecase
}

func InitRestCache(app fiber.Router, service domainCache.ICacheUsecase) Cache {
	rest := Cache{Service: service}
	app.Get("/cache/stats", rest.GetStats)
	app.Post("/cache/invalidate", rest.Invalidate)

	return rest
}

func (handler *Cache) GetStats(c *fiber.Ctx) error {
	stats := handler.Service.GetStats(c.UserContext())

	return c.JSON(utils.ResponseData{
		Status: 200,
		Code:   "SUCCESS",
		Message: fmt.Sprintf("Cache stats retrieved (%s hits, %s misses)",
			humanize.Comma(stats.Hits), humanize.Comma(stats.Misses)),
		Results: stats,
	})
}

func (handler *Cache) Invalidate(c *fiber.Ctx) error {
	var request domainCache.InvalidateRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(validations.ValidateInvalidate(c.UserContext(), request))

	tenantID := middleware.TenantFrom(c)
	counts := handler.Service.InvalidateCoordinated(c.UserContext(), tenantID,
		request.DataType, request.ResourceID, request.Related)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Invalidation dispatched",
		Results: counts,
	})
}
