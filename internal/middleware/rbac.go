package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/echo-go-api/internal/utils"
)

// RequireStaff admits staff identities regardless of their role claim.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if staff, _ := c.Locals("is_staff").(bool); !staff {
			return utils.SendError(c, fiber.StatusForbidden, "staff only")
		}
		return c.Next()
	}
}
