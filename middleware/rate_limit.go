package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"osint-market/ratelimit"
)

// RateLimit enforces the per-action quota. Authenticated callers are
// bucketed by wallet so hunters cannot dodge limits by rotating IPs;
// anonymous traffic falls back to the client IP.
func RateLimit(limiter *ratelimit.Limiter, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := "ip:" + c.IP()
		if wallet, _ := c.Locals("wallet").(string); wallet != "" {
			identifier = "wallet:" + wallet
		}

		res := limiter.Check(identifier, action)
		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			c.Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded for " + action,
				"kind":  "rate_limited",
			})
		}
		return c.Next()
	}
}
