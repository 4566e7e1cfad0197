package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AdminOnly guards the /api/admin surface with the shared operator
// secret. An empty configured secret disables the surface entirely.
func AdminOnly(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "not found",
				"kind":  "not_found",
			})
		}
		provided := c.Get("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			zap.S().Warnf("❌ [Admin] rejected request to %s from %s", c.Path(), c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid admin credentials",
				"kind":  "authentication_error",
			})
		}
		return c.Next()
	}
}
