package handlers

import (
	"github.com/gofiber/fiber/v2"

	"osint-market/apperr"
	"osint-market/auth"
)

type AuthHandler struct {
	authenticator *auth.Authenticator
}

func NewAuthHandler(authenticator *auth.Authenticator) *AuthHandler {
	return &AuthHandler{authenticator: authenticator}
}

func SetupAuthRoutes(api fiber.Router, h *AuthHandler) {
	api.Get("/auth/challenge", h.Challenge)
	api.Post("/auth/verify", h.Verify)
}

// Challenge issues a signable message for the wallet. Stateless: the
// timestamp inside the message bounds its validity.
func (h *AuthHandler) Challenge(c *fiber.Ctx) error {
	wallet := c.Query("wallet")
	if !auth.ValidWalletAddress(wallet) {
		return fail(c, apperr.Validation("invalid wallet address"))
	}
	return c.JSON(h.authenticator.IssueChallenge(wallet))
}

type verifyRequest struct {
	Wallet    string `json:"wallet" validate:"required"`
	Message   string `json:"message" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// Verify is a dry-run check clients use before submitting signed
// operations.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	ok, reason := h.authenticator.Verify(req.Wallet, req.Message, req.Signature)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"valid": false,
			"error": reason,
			"kind":  "authentication_error",
		})
	}
	return c.JSON(fiber.Map{"valid": true, "wallet": req.Wallet})
}
