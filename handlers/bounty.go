package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"osint-market/middleware"
	"osint-market/ratelimit"
	"osint-market/services"
)

type BountyHandler struct {
	bounties *services.BountyService
	disputes *services.DisputeService
}

func NewBountyHandler(bounties *services.BountyService, disputes *services.DisputeService) *BountyHandler {
	return &BountyHandler{bounties: bounties, disputes: disputes}
}

func SetupBountyRoutes(api fiber.Router, h *BountyHandler, limiter *ratelimit.Limiter) {
	api.Get("/bounties", h.List)
	api.Get("/bounties/:id", h.Get)
	api.Get("/bounties/:id/submission", h.GetSubmission)
	api.Get("/bounties/:id/resolution", h.GetResolution)
	api.Get("/bounties/:id/dispute", h.GetDispute)

	wallet := api.Group("/bounties", middleware.RequireWallet())
	wallet.Post("/", middleware.RateLimit(limiter, "bounty-create"), h.Create)
	wallet.Post("/:id/deposit", h.Fund)
	wallet.Post("/:id/claim", middleware.RateLimit(limiter, "bounty-claim"), h.Claim)
	wallet.Post("/:id/forfeit", h.Forfeit)
	wallet.Post("/:id/submit", middleware.RateLimit(limiter, "bounty-submit"), h.Submit)
	wallet.Post("/:id/dispute", middleware.RateLimit(limiter, "bounty-dispute"), h.Dispute)
	wallet.Delete("/:id", h.Delete)
}

func (h *BountyHandler) Create(c *fiber.Ctx) error {
	var req services.CreateBountyRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	bounty, quote, err := h.bounties.Create(c.Context(), middleware.Wallet(c), &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"bounty":  bounty,
		"deposit": quote,
	})
}

type fundRequest struct {
	TxSignature string `json:"tx_signature" validate:"required"`
}

func (h *BountyHandler) Fund(c *fiber.Ctx) error {
	var req fundRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	bounty, err := h.bounties.FundBounty(c.Context(), c.Params("id"), middleware.Wallet(c), req.TxSignature)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(bounty)
}

func (h *BountyHandler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	bounties, total, err := h.bounties.List(c.Context(), services.ListBountiesQuery{
		Status: c.Query("status"),
		Token:  c.Query("token"),
		Tag:    c.Query("tag"),
		Wallet: c.Query("wallet"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"bounties": bounties,
		"total":    total,
	})
}

func (h *BountyHandler) Get(c *fiber.Ctx) error {
	bounty, err := h.bounties.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(bounty)
}

type signedRequest struct {
	Message   string `json:"message" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

func (h *BountyHandler) Claim(c *fiber.Ctx) error {
	var req signedRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	bounty, err := h.bounties.Claim(c.Context(), c.Params("id"), middleware.Wallet(c), req.Message, req.Signature)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(bounty)
}

func (h *BountyHandler) Forfeit(c *fiber.Ctx) error {
	bounty, err := h.bounties.Forfeit(c.Context(), c.Params("id"), middleware.Wallet(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(bounty)
}

type submitRequest struct {
	signedRequest
	services.SubmitRequest
}

func (h *BountyHandler) Submit(c *fiber.Ctx) error {
	var req submitRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	submission, err := h.bounties.Submit(c.Context(), c.Params("id"), middleware.Wallet(c), req.Message, req.Signature, &req.SubmitRequest)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(submission)
}

func (h *BountyHandler) GetSubmission(c *fiber.Ctx) error {
	submission, err := h.bounties.GetSubmission(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(submission)
}

func (h *BountyHandler) GetResolution(c *fiber.Ctx) error {
	resolution, err := h.bounties.GetResolution(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resolution)
}

type disputeRequest struct {
	signedRequest
	services.OpenDisputeRequest
}

func (h *BountyHandler) Dispute(c *fiber.Ctx) error {
	var req disputeRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	dispute, err := h.disputes.Open(c.Context(), c.Params("id"), middleware.Wallet(c), req.Message, req.Signature, &req.OpenDisputeRequest)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dispute)
}

func (h *BountyHandler) GetDispute(c *fiber.Ctx) error {
	dispute, err := h.disputes.GetByBounty(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dispute)
}

func (h *BountyHandler) Delete(c *fiber.Ctx) error {
	if err := h.bounties.Delete(c.Context(), c.Params("id"), middleware.Wallet(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}
