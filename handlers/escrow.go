package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"osint-market/services"
)

type EscrowHandler struct {
	escrow *services.EscrowService
}

func NewEscrowHandler(escrow *services.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrow: escrow}
}

func SetupEscrowRoutes(api fiber.Router, h *EscrowHandler, bounties *services.BountyService) {
	api.Get("/escrow/info", h.Info)
	api.Get("/escrow/deposit", h.DepositInstructions(bounties))
	api.Get("/transactions", h.Recent)
	api.Get("/bounties/:id/transactions", h.ForBounty)
}

// DepositInstructions tells a poster exactly what to transfer to fund
// a specific bounty.
func (h *EscrowHandler) DepositInstructions(bounties *services.BountyService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bountyID := c.Query("bounty_id")
		if bountyID == "" {
			stats, err := h.escrow.Stats(c.Context())
			if err != nil {
				return fail(c, err)
			}
			return c.JSON(fiber.Map{
				"escrow_wallet":        stats.EscrowWallet,
				"creation_fee_percent": stats.CreationFeePercent,
				"payout_fee_percent":   stats.PayoutFeePercent,
			})
		}
		bounty, err := bounties.Get(c.Context(), bountyID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(h.escrow.QuoteDeposit(bounty))
	}
}

func (h *EscrowHandler) Info(c *fiber.Ctx) error {
	stats, err := h.escrow.Stats(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}

func (h *EscrowHandler) Recent(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	txs, err := h.escrow.ListTransactions(c.Context(), services.TransactionQuery{
		BountyID: c.Query("bounty_id"),
		Wallet:   c.Query("wallet"),
		Type:     c.Query("type"),
		Status:   c.Query("status"),
		Limit:    limit,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"transactions": txs})
}

func (h *EscrowHandler) ForBounty(c *fiber.Ctx) error {
	txs, err := h.escrow.Transactions(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"transactions": txs})
}
