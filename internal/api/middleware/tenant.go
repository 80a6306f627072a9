package middleware

import (
	"regexp"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/domain"
)

const localTenantID = "tenant_id"

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,100}$`)

// ValidTenantID reports whether id can address a tenant.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// Tenant resolves the :tenant route parameter into the request locals.
func Tenant() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("tenant")
		if !ValidTenantID(id) {
			return &domain.AppError{
				Code:       "INVALID_TENANT_ID",
				Message:    "Tenant ID must be 1-100 letters, digits, '-' or '_'",
				StatusCode: fiber.StatusBadRequest,
			}
		}

		c.Locals(localTenantID, id)
		return c.Next()
	}
}

// GetTenantID returns the tenant resolved by Tenant, or "".
func GetTenantID(c *fiber.Ctx) string {
	id, _ := c.Locals(localTenantID).(string)
	return id
}
