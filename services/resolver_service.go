package services

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"osint-market/apperr"
	"osint-market/config"
	"osint-market/models"
	"osint-market/oracle"
	"osint-market/resolver"
)

// ResolverID identifies verdicts produced by the automated judge, as
// opposed to admin overrides.
const ResolverID = "resolver-claude-v1"

// ReputationRecorder receives resolution outcomes. Implementations run
// off the settlement path; failures must not affect the resolution.
type ReputationRecorder interface {
	RecordOutcome(ctx context.Context, bounty *models.Bounty, submission *models.Submission, approved bool)
}

type ResolverService struct {
	db         *gorm.DB
	escrow     *EscrowService
	oracle     oracle.Client
	reputation ReputationRecorder
	alerts     Notifier
	cfg        config.ResolverConfig
}

func NewResolverService(db *gorm.DB, escrow *EscrowService, client oracle.Client, reputation ReputationRecorder, alerts Notifier, cfg config.ResolverConfig) *ResolverService {
	return &ResolverService{
		db:         db,
		escrow:     escrow,
		oracle:     client,
		reputation: reputation,
		alerts:     alerts,
		cfg:        cfg,
	}
}

// Resolve judges a submitted bounty end to end: oracle verdict, then
// settlement, then the resolution record. Idempotent — a bounty that is
// no longer submitted, or already has a resolution, is skipped.
//
// Ordering is deliberate: on approval the payout is sent BEFORE the
// resolution row is written. A crash between the two leaves a paid
// hunter and a still-submitted bounty, which the sweep retries; the
// reverse order could mark a bounty resolved without paying anyone.
func (s *ResolverService) Resolve(ctx context.Context, bountyID string) error {
	var bounty models.Bounty
	if err := s.db.WithContext(ctx).Where("id = ?", bountyID).First(&bounty).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperr.NotFound("bounty not found")
		}
		return apperr.Internal(err, "failed to load bounty")
	}
	if bounty.Status != models.BountyStatusSubmitted {
		zap.S().Debugf("Resolver skipping bounty %s in status %s", bounty.ID, bounty.Status)
		return nil
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Resolution{}).
		Where("bounty_id = ?", bounty.ID).Count(&existing).Error; err != nil {
		return apperr.Internal(err, "failed to check existing resolution")
	}
	if existing > 0 {
		// Payout-first crash recovery: the verdict exists, only the
		// status flip is missing.
		return s.markResolved(ctx, bounty.ID)
	}

	var submission models.Submission
	if err := s.db.WithContext(ctx).Where("bounty_id = ?", bounty.ID).First(&submission).Error; err != nil {
		return apperr.Internal(err, "failed to load submission")
	}

	verdict, err := s.judge(ctx, &bounty, &submission)
	if err != nil {
		alertResolverFailed(s.alerts, bounty.ID, err.Error())
		return err
	}

	if verdict.Approved {
		return s.settleApproved(ctx, &bounty, &submission, verdict)
	}
	return s.settleRejected(ctx, &bounty, &submission, verdict)
}

// judge queries the oracle with retries, with one corrective follow-up
// when the response is not a parseable verdict.
func (s *ResolverService) judge(ctx context.Context, bounty *models.Bounty, submission *models.Submission) (*resolver.Verdict, error) {
	prompt := resolver.BuildPrompt(bounty, submission)

	var verdict *resolver.Verdict
	operation := func() error {
		raw, err := s.oracle.Evaluate(ctx, resolver.SystemPrompt, prompt)
		if err != nil {
			return err
		}
		verdict = resolver.ParseVerdict(raw)
		if verdict == nil {
			raw, err = s.oracle.Evaluate(ctx, resolver.SystemPrompt, prompt+"\n\n"+resolver.CorrectivePrompt)
			if err != nil {
				return err
			}
			verdict = resolver.ParseVerdict(raw)
		}
		if verdict == nil {
			return apperr.External(nil, "oracle returned an unparseable verdict")
		}
		return nil
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(operation, backoff.WithMaxRetries(policy, s.cfg.MaxRetries)); err != nil {
		return nil, apperr.External(err, "oracle evaluation failed after retries")
	}
	return verdict, nil
}

func (s *ResolverService) settleApproved(ctx context.Context, bounty *models.Bounty, submission *models.Submission, verdict *resolver.Verdict) error {
	// A confirmed release with no resolution row means a previous run
	// paid and then crashed. Reuse it rather than paying twice.
	release, err := s.escrow.ConfirmedRelease(ctx, bounty.ID)
	if err != nil {
		return err
	}
	if release != nil {
		zap.S().Warnf("♻️ Bounty %s already has payout %s recorded, skipping transfer", bounty.ID, release.TxSignature)
	} else {
		release, err = s.escrow.Payout(ctx, bounty, submission.AgentWallet)
		if err != nil {
			zap.S().Errorf("🚨 Payout failed for bounty %s: %v", bounty.ID, err)
			alertPaymentFailed(s.alerts, bounty.ID, submission.AgentWallet, err.Error(), bounty.RewardAmount, bounty.RewardToken)
			// No resolution row: the bounty stays submitted so the sweep
			// retries once the rail recovers.
			return err
		}
	}

	resolution := &models.Resolution{
		ID:           uuid.NewString(),
		BountyID:     bounty.ID,
		SubmissionID: submission.ID,
		Status:       models.ResolutionApproved,
		Reasoning:    verdict.Reasoning,
		ResolverID:   ResolverID,
		PaymentTx:    release.TxSignature,
	}
	if err := s.db.WithContext(ctx).Create(resolution).Error; err != nil {
		zap.S().Errorf("🚨 Hunter paid (tx %s) but resolution write failed for bounty %s: %v", release.TxSignature, bounty.ID, err)
		return apperr.Internal(err, "failed to record resolution")
	}
	if err := s.markResolved(ctx, bounty.ID); err != nil {
		return err
	}

	if s.reputation != nil {
		go s.reputation.RecordOutcome(context.WithoutCancel(ctx), bounty, submission, true)
	}
	s.alerts.Notify(AlertInfo, "Bounty Resolved", "Submission approved and paid out.",
		map[string]string{"bounty_id": bounty.ID, "hunter": submission.AgentWallet, "tx": release.TxSignature})
	zap.S().Infof("⚖️ Bounty %s approved, hunter %s paid", bounty.ID, submission.AgentWallet)
	return nil
}

func (s *ResolverService) settleRejected(ctx context.Context, bounty *models.Bounty, submission *models.Submission, verdict *resolver.Verdict) error {
	resolution := &models.Resolution{
		ID:           uuid.NewString(),
		BountyID:     bounty.ID,
		SubmissionID: submission.ID,
		Status:       models.ResolutionRejected,
		Reasoning:    verdict.Reasoning,
		ResolverID:   ResolverID,
	}
	if err := s.db.WithContext(ctx).Create(resolution).Error; err != nil {
		return apperr.Internal(err, "failed to record resolution")
	}
	if err := s.markResolved(ctx, bounty.ID); err != nil {
		return err
	}

	// Refund is best effort here: the verdict stands either way and the
	// sweep cannot retry a resolved bounty, so failures page an operator.
	if _, err := s.escrow.Refund(ctx, bounty); err != nil {
		zap.S().Errorf("🚨 Refund failed for rejected bounty %s: %v", bounty.ID, err)
		alertRefundFailed(s.alerts, bounty.ID, bounty.PosterWallet, err.Error(), bounty.RewardAmount, bounty.RewardToken)
	}

	if s.reputation != nil {
		go s.reputation.RecordOutcome(context.WithoutCancel(ctx), bounty, submission, false)
	}
	zap.S().Infof("⚖️ Bounty %s rejected: %s", bounty.ID, verdict.Reasoning)
	return nil
}

func (s *ResolverService) markResolved(ctx context.Context, bountyID string) error {
	res := s.db.WithContext(ctx).Model(&models.Bounty{}).
		Where("id = ? AND status = ?", bountyID, models.BountyStatusSubmitted).
		Update("status", models.BountyStatusResolved)
	if res.Error != nil {
		return apperr.Internal(res.Error, "failed to mark bounty resolved")
	}
	return nil
}

// SweepSubmitted re-queues bounties stuck in submitted, covering queue
// overflow and crashes between payout and resolution.
func (s *ResolverService) SweepSubmitted(ctx context.Context, queue ResolutionQueue) (int, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Bounty{}).
		Where("status = ?", models.BountyStatusSubmitted).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, apperr.Internal(err, "failed to sweep submitted bounties")
	}
	queued := 0
	for _, id := range ids {
		if queue.Enqueue(id) {
			queued++
		}
	}
	if queued > 0 {
		zap.S().Infof("🧹 Sweep re-queued %d submitted bounties", queued)
	}
	return queued, nil
}
