package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vectorhub/ragcache/pkg/utils"
)

const tenantHeader = "X-Tenant-ID"

// TenantKey is the locals key the handlers read the tenant from.
const TenantKey = "tenantID"

// RequireTenant rejects requests without an X-Tenant-ID header. Every
// cache key and job row is scoped by tenant, so there is no sensible
// default to fall back to.
func RequireTenant() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tenantID := ctx.Get(tenantHeader)
		if tenantID == "" {
			return ctx.Status(400).JSON(utils.ResponseData{
				Status:  400,
				Code:    "MISSING_TENANT",
				Message: "header " + tenantHeader + " is required",
			})
		}
		ctx.Locals(TenantKey, tenantID)
		return ctx.Next()
	}
}

// TenantFrom reads the tenant set by RequireTenant.
func TenantFrom(ctx *fiber.Ctx) string {
	tenantID, _ := ctx.Locals(TenantKey).(string)
	return tenantID
}
