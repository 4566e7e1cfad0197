package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"osint-market/apperr"
	"osint-market/auth"
	"osint-market/models"
	"osint-market/sanitize"
)

const minDisputeReasonLen = 20

type DisputeService struct {
	db            *gorm.DB
	escrow        *EscrowService
	authenticator *auth.Authenticator
	alerts        Notifier
}

func NewDisputeService(db *gorm.DB, escrow *EscrowService, authenticator *auth.Authenticator, alerts Notifier) *DisputeService {
	return &DisputeService{db: db, escrow: escrow, authenticator: authenticator, alerts: alerts}
}

type OpenDisputeRequest struct {
	Reason   string   `json:"reason" validate:"required,min=20,max=5000"`
	Evidence []string `json:"evidence" validate:"max=10"`
}

// Open files a dispute against a resolved bounty. Only the original
// submitter may dispute, and only one dispute can be pending at a time.
func (s *DisputeService) Open(ctx context.Context, bountyID, wallet, message, signature string, req *OpenDisputeRequest) (*models.Dispute, error) {
	ok, reason := s.authenticator.Verify(wallet, message, signature)
	if !ok {
		return nil, apperr.Authentication("signature verification failed: %s", reason)
	}

	cleaned := sanitize.Input(req.Reason)
	if len(cleaned) < minDisputeReasonLen {
		return nil, apperr.Validation("dispute reason must be at least %d characters", minDisputeReasonLen)
	}

	var bounty models.Bounty
	if err := s.db.WithContext(ctx).Where("id = ?", bountyID).First(&bounty).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("bounty not found")
		}
		return nil, apperr.Internal(err, "failed to load bounty")
	}
	if bounty.Status != models.BountyStatusResolved {
		return nil, apperr.Conflict("only resolved bounties can be disputed")
	}

	var submission models.Submission
	if err := s.db.WithContext(ctx).Where("bounty_id = ?", bounty.ID).First(&submission).Error; err != nil {
		return nil, apperr.Internal(err, "failed to load submission")
	}
	if submission.AgentWallet != wallet {
		return nil, apperr.Authentication("only the submitter can dispute the resolution")
	}

	var pending int64
	if err := s.db.WithContext(ctx).Model(&models.Dispute{}).
		Where("bounty_id = ? AND status = ?", bounty.ID, models.DisputeStatusPending).
		Count(&pending).Error; err != nil {
		return nil, apperr.Internal(err, "failed to check open disputes")
	}
	if pending > 0 {
		return nil, apperr.Conflict("bounty already has a pending dispute")
	}

	evidence := make([]string, 0, len(req.Evidence))
	for _, raw := range req.Evidence {
		if u := sanitize.URL(raw); u != "" {
			evidence = append(evidence, u)
		}
	}

	dispute := &models.Dispute{
		ID:          uuid.NewString(),
		BountyID:    bounty.ID,
		AgentWallet: wallet,
		Reason:      cleaned,
		Evidence:    evidence,
		Status:      models.DisputeStatusPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dispute).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Bounty{}).
			Where("id = ? AND status = ?", bounty.ID, models.BountyStatusResolved).
			Update("status", models.BountyStatusDisputed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("bounty state changed while filing the dispute")
		}
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, err
		}
		return nil, apperr.Internal(err, "failed to file dispute")
	}

	alertDisputeOpened(s.alerts, bounty.ID, wallet, cleaned)
	zap.S().Infof("⚔️ Dispute opened on bounty %s by %s", bounty.ID, wallet)
	return dispute, nil
}

func (s *DisputeService) Get(ctx context.Context, disputeID string) (*models.Dispute, error) {
	var dispute models.Dispute
	err := s.db.WithContext(ctx).Where("id = ?", disputeID).First(&dispute).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("dispute not found")
		}
		return nil, apperr.Internal(err, "failed to load dispute")
	}
	return &dispute, nil
}

// GetByBounty returns the most recent dispute filed against a bounty.
func (s *DisputeService) GetByBounty(ctx context.Context, bountyID string) (*models.Dispute, error) {
	var dispute models.Dispute
	err := s.db.WithContext(ctx).
		Where("bounty_id = ?", bountyID).
		Order("created_at DESC").
		First(&dispute).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("no dispute for this bounty")
		}
		return nil, apperr.Internal(err, "failed to load dispute")
	}
	return &dispute, nil
}

func (s *DisputeService) ListPending(ctx context.Context) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := s.db.WithContext(ctx).
		Where("status = ?", models.DisputeStatusPending).
		Order("created_at ASC").
		Find(&disputes).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to list disputes")
	}
	return disputes, nil
}

// ResolveDisputeRequest is the admin's ruling. upheld pays the hunter
// after all (the original rejection was wrong), overturned claws the
// outcome back to the poster, dismissed restores the resolution as is.
type ResolveDisputeRequest struct {
	Outcome    string `json:"outcome" validate:"required,oneof=upheld overturned dismissed"`
	AdminNotes string `json:"admin_notes" validate:"max=5000"`
}

// Resolve applies an admin ruling to a pending dispute.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, adminID string, req *ResolveDisputeRequest) (*models.Dispute, error) {
	dispute, err := s.Get(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !dispute.Active() {
		return nil, apperr.Conflict("dispute is already %s", dispute.Status)
	}

	var bounty models.Bounty
	if err := s.db.WithContext(ctx).Where("id = ?", dispute.BountyID).First(&bounty).Error; err != nil {
		return nil, apperr.Internal(err, "failed to load disputed bounty")
	}

	// upheld means the hunter was right and the automated rejection
	// withheld a payout they earned. Pay before recording the ruling,
	// same ordering as the resolver.
	if req.Outcome == models.DisputeStatusUpheld {
		refunded, err := s.alreadyRefunded(ctx, bounty.ID)
		if err != nil {
			return nil, err
		}
		if !refunded {
			if _, err := s.escrow.Payout(ctx, &bounty, dispute.AgentWallet); err != nil {
				alertPaymentFailed(s.alerts, bounty.ID, dispute.AgentWallet, err.Error(), bounty.RewardAmount, bounty.RewardToken)
				return nil, err
			}
		} else {
			zap.S().Warnf("⚠️ Dispute %s upheld but escrow already refunded, manual top-up needed", dispute.ID)
		}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      req.Outcome,
		"admin_notes": sanitize.Input(req.AdminNotes),
		"resolved_by": adminID,
		"resolved_at": now,
	}
	res := s.db.WithContext(ctx).Model(&models.Dispute{}).
		Where("id = ? AND status = ?", dispute.ID, models.DisputeStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, apperr.Internal(res.Error, "failed to record dispute ruling")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict("dispute was ruled on concurrently")
	}

	// The bounty returns to resolved regardless of outcome; the dispute
	// record carries the ruling.
	if err := s.db.WithContext(ctx).Model(&models.Bounty{}).
		Where("id = ? AND status = ?", bounty.ID, models.BountyStatusDisputed).
		Update("status", models.BountyStatusResolved).Error; err != nil {
		return nil, apperr.Internal(err, "failed to restore bounty status")
	}

	dispute.Status = req.Outcome
	dispute.AdminNotes = updates["admin_notes"].(string)
	dispute.ResolvedBy = adminID
	dispute.ResolvedAt = &now

	zap.S().Infof("⚖️ Dispute %s on bounty %s ruled %s by %s", dispute.ID, bounty.ID, req.Outcome, adminID)
	return dispute, nil
}

func (s *DisputeService) alreadyRefunded(ctx context.Context, bountyID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("bounty_id = ? AND type = ? AND status = ?",
			bountyID, models.TxEscrowRefund, models.TxStatusConfirmed).
		Count(&count).Error
	if err != nil {
		return false, apperr.Internal(err, "failed to check refund history")
	}
	return count > 0, nil
}
