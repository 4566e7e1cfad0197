package middleware

import (
	"github.com/gofiber/fiber/v2"

	"osint-market/auth"
)

// WalletContext extracts the caller's wallet from X-Wallet-Address and
// stores it in Locals. Routes that mutate state additionally verify a
// signed challenge in their handlers; this header alone only identifies.
func WalletContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		wallet := c.Get("X-Wallet-Address")
		if wallet != "" && !auth.ValidWalletAddress(wallet) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid X-Wallet-Address header",
				"kind":  "validation_error",
			})
		}
		c.Locals("wallet", wallet)
		return c.Next()
	}
}

// RequireWallet rejects requests without a wallet identity.
func RequireWallet() fiber.Handler {
	return func(c *fiber.Ctx) error {
		wallet, _ := c.Locals("wallet").(string)
		if wallet == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "X-Wallet-Address header is required",
				"kind":  "authentication_error",
			})
		}
		return c.Next()
	}
}

// Wallet returns the caller identity set by WalletContext.
func Wallet(c *fiber.Ctx) string {
	wallet, _ := c.Locals("wallet").(string)
	return wallet
}
