package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"osint-market/apperr"
	"osint-market/models"
	"osint-market/services"
)

// AdminHandler is the operator surface: overrides for the cases the
// automated flow cannot settle (stuck payouts, bad verdicts, disputes).
type AdminHandler struct {
	db       *gorm.DB
	bounties *services.BountyService
	escrow   *services.EscrowService
	resolver *services.ResolverService
	disputes *services.DisputeService
}

func NewAdminHandler(db *gorm.DB, bounties *services.BountyService, escrow *services.EscrowService, resolver *services.ResolverService, disputes *services.DisputeService) *AdminHandler {
	return &AdminHandler{db: db, bounties: bounties, escrow: escrow, resolver: resolver, disputes: disputes}
}

func SetupAdminRoutes(admin fiber.Router, h *AdminHandler) {
	admin.Get("/disputes", h.ListDisputes)
	admin.Post("/disputes/:id/resolve", h.ResolveDispute)
	admin.Post("/bounties/:id/force-resolve", h.ForceResolve)
	admin.Post("/bounties/:id/manual-payout", h.ManualPayout)
	admin.Post("/bounties/:id/manual-refund", h.ManualRefund)
	admin.Delete("/bounties/:id", h.DeleteBounty)
	admin.Post("/maintenance", h.RunMaintenance)
}

func (h *AdminHandler) ListDisputes(c *fiber.Ctx) error {
	disputes, err := h.disputes.ListPending(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"disputes": disputes})
}

func (h *AdminHandler) ResolveDispute(c *fiber.Ctx) error {
	var req services.ResolveDisputeRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	dispute, err := h.disputes.Resolve(c.Context(), c.Params("id"), adminID(c), &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dispute)
}

// ForceResolve pushes a stuck submitted bounty through the resolver
// immediately, bypassing the queue.
func (h *AdminHandler) ForceResolve(c *fiber.Ctx) error {
	if err := h.resolver.Resolve(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	bounty, err := h.bounties.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(bounty)
}

type manualSettleRequest struct {
	Destination string `json:"destination" validate:"required"`
	Reasoning   string `json:"reasoning" validate:"required,min=10"`
}

// ManualPayout settles a submitted bounty by operator decision. Same
// ordering as the resolver: transfer first, then the record.
func (h *AdminHandler) ManualPayout(c *fiber.Ctx) error {
	var req manualSettleRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	bounty, err := h.bounties.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if bounty.Status != models.BountyStatusSubmitted {
		return fail(c, apperr.Conflict("bounty is not awaiting settlement"))
	}
	submission, err := h.bounties.GetSubmission(c.Context(), bounty.ID)
	if err != nil {
		return fail(c, err)
	}

	release, err := h.escrow.Payout(c.Context(), bounty, req.Destination)
	if err != nil {
		return fail(c, err)
	}
	resolution := &models.Resolution{
		ID:           uuid.NewString(),
		BountyID:     bounty.ID,
		SubmissionID: submission.ID,
		Status:       models.ResolutionApproved,
		Reasoning:    req.Reasoning,
		ResolverID:   adminID(c),
		PaymentTx:    release.TxSignature,
	}
	if err := h.db.WithContext(c.Context()).Create(resolution).Error; err != nil {
		zap.S().Errorf("🚨 Manual payout %s sent but resolution write failed: %v", release.TxSignature, err)
		return fail(c, apperr.Internal(err, "payout sent, resolution record failed"))
	}
	if err := h.db.WithContext(c.Context()).Model(&models.Bounty{}).
		Where("id = ?", bounty.ID).
		Update("status", models.BountyStatusResolved).Error; err != nil {
		return fail(c, apperr.Internal(err, "failed to mark bounty resolved"))
	}

	zap.S().Infof("🛠️ Manual payout for bounty %s by %s", bounty.ID, adminID(c))
	return c.JSON(resolution)
}

type manualRefundRequest struct {
	Reasoning string `json:"reasoning" validate:"required,min=10"`
}

// ManualRefund returns escrow to the poster and expires the bounty.
func (h *AdminHandler) ManualRefund(c *fiber.Ctx) error {
	var req manualRefundRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	bounty, err := h.bounties.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if bounty.Status == models.BountyStatusResolved {
		return fail(c, apperr.Conflict("resolved bounties cannot be refunded"))
	}

	refund, err := h.escrow.Refund(c.Context(), bounty)
	if err != nil {
		return fail(c, err)
	}
	if err := h.db.WithContext(c.Context()).Model(&models.Bounty{}).
		Where("id = ?", bounty.ID).
		Update("status", models.BountyStatusExpired).Error; err != nil {
		return fail(c, apperr.Internal(err, "refund sent, status update failed"))
	}

	zap.S().Infof("🛠️ Manual refund for bounty %s by %s: %s", bounty.ID, adminID(c), req.Reasoning)
	return c.JSON(refund)
}

// DeleteBounty removes a bounty outright. Guards against deleting
// anything holding escrow.
func (h *AdminHandler) DeleteBounty(c *fiber.Ctx) error {
	bounty, err := h.bounties.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	funded, err := h.escrow.Deposited(c.Context(), bounty.ID)
	if err != nil {
		return fail(c, err)
	}
	if funded && bounty.Status != models.BountyStatusResolved && bounty.Status != models.BountyStatusExpired {
		return fail(c, apperr.Conflict("bounty still holds escrow, refund it first"))
	}
	if err := h.db.WithContext(c.Context()).Delete(&models.Bounty{}, "id = ?", bounty.ID).Error; err != nil {
		return fail(c, apperr.Internal(err, "failed to delete bounty"))
	}
	zap.S().Infof("🛠️ Bounty %s deleted by %s", bounty.ID, adminID(c))
	return c.JSON(fiber.Map{"deleted": true})
}

// RunMaintenance triggers the periodic sweeps on demand.
func (h *AdminHandler) RunMaintenance(c *fiber.Ctx) error {
	released, err := h.bounties.ReleaseStaleClaims(c.Context())
	if err != nil {
		return fail(c, err)
	}
	expired, err := h.bounties.ExpireOverdue(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"released_claims":  released,
		"expired_bounties": expired,
	})
}

func adminID(c *fiber.Ctx) string {
	if id := c.Get("X-Admin-ID"); id != "" {
		return "admin-" + id
	}
	return "admin"
}
