package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"osint-market/apperr"
	"osint-market/auth"
	"osint-market/models"
	"osint-market/sanitize"
)

const (
	claimDuration   = 48 * time.Hour
	defaultDeadline = 7 * 24 * time.Hour
	largeBountySOL  = 100
)

// ResolutionQueue accepts bounty ids for asynchronous judgment.
// Enqueue must never block; a false return means the queue is full.
type ResolutionQueue interface {
	Enqueue(bountyID string) bool
}

// EvidenceArchiver stores durable copies of submission evidence.
// Implementations must not fail the submission; best effort only.
type EvidenceArchiver interface {
	Archive(ctx context.Context, bountyID string, evidence []models.Evidence) []models.Evidence
}

type CreateBountyRequest struct {
	Question     string     `json:"question" validate:"required,min=10,max=500"`
	Description  string     `json:"description" validate:"max=5000"`
	RewardAmount float64    `json:"reward_amount" validate:"required,gt=0"`
	RewardToken  string     `json:"reward_token" validate:"required"`
	Difficulty   string     `json:"difficulty" validate:"omitempty,oneof=easy medium hard expert"`
	Tags         []string   `json:"tags" validate:"max=10"`
	Deadline     *time.Time `json:"deadline"`
}

type SubmitRequest struct {
	Answer      string            `json:"answer" validate:"required,min=10,max=10000"`
	Evidence    []models.Evidence `json:"evidence" validate:"required,min=1,max=20"`
	Methodology string            `json:"methodology" validate:"required,min=20,max=5000"`
	Confidence  int               `json:"confidence" validate:"min=0,max=100"`
}

type ListBountiesQuery struct {
	Status string
	Token  string
	Tag    string
	Wallet string
	Limit  int
	Offset int
}

type BountyService struct {
	db            *gorm.DB
	escrow        *EscrowService
	authenticator *auth.Authenticator
	queue         ResolutionQueue
	archiver      EvidenceArchiver
	alerts        Notifier
	now           func() time.Time
}

func NewBountyService(db *gorm.DB, escrow *EscrowService, authenticator *auth.Authenticator, queue ResolutionQueue, archiver EvidenceArchiver, alerts Notifier) *BountyService {
	return &BountyService{
		db:            db,
		escrow:        escrow,
		authenticator: authenticator,
		queue:         queue,
		archiver:      archiver,
		alerts:        alerts,
		now:           time.Now,
	}
}

// Create validates and persists a new open bounty, returning it with a
// deposit quote the poster must fund.
func (s *BountyService) Create(ctx context.Context, posterWallet string, req *CreateBountyRequest) (*models.Bounty, *DepositQuote, error) {
	if !auth.ValidWalletAddress(posterWallet) {
		return nil, nil, apperr.Validation("invalid poster wallet address")
	}
	if !s.escrow.SupportedToken(req.RewardToken) {
		return nil, nil, apperr.Validation("unsupported reward token: %s", req.RewardToken)
	}
	if min := s.escrow.MinimumDeposit(req.RewardToken); min > 0 && req.RewardAmount < min {
		return nil, nil, apperr.Validation("reward below minimum of %g %s", min, req.RewardToken)
	}

	question := sanitize.Input(req.Question)
	if len(question) < 10 {
		return nil, nil, apperr.Validation("question must be at least 10 characters")
	}

	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyMedium
	}
	deadline := s.now().Add(defaultDeadline)
	if req.Deadline != nil {
		if req.Deadline.Before(s.now().Add(time.Hour)) {
			return nil, nil, apperr.Validation("deadline must be at least one hour in the future")
		}
		deadline = *req.Deadline
	}

	tags := make([]string, 0, len(req.Tags))
	for _, raw := range req.Tags {
		if t := sanitize.Tag(raw); t != "" {
			tags = append(tags, t)
		}
	}

	bounty := &models.Bounty{
		ID:           uuid.NewString(),
		Question:     question,
		Description:  sanitize.Input(req.Description),
		RewardAmount: req.RewardAmount,
		RewardToken:  req.RewardToken,
		PosterWallet: posterWallet,
		Status:       models.BountyStatusOpen,
		Difficulty:   difficulty,
		Tags:         tags,
		Deadline:     deadline,
	}
	bounty.Slug = fmt.Sprintf("%s-%s", slug.Make(truncate(question, 60)), bounty.ID[:8])

	if err := s.db.WithContext(ctx).Create(bounty).Error; err != nil {
		return nil, nil, apperr.Internal(err, "failed to create bounty")
	}

	if bounty.RewardToken == "SOL" && bounty.RewardAmount >= largeBountySOL {
		alertLargeBounty(s.alerts, bounty.ID, posterWallet, bounty.RewardAmount, bounty.RewardToken)
	}

	zap.S().Infof("📌 Bounty created: %s (%g %s) by %s", bounty.ID, bounty.RewardAmount, bounty.RewardToken, posterWallet)
	return bounty, s.escrow.QuoteDeposit(bounty), nil
}

// FundBounty confirms the poster's escrow deposit and stores the
// funding signature on the bounty.
func (s *BountyService) FundBounty(ctx context.Context, bountyID, wallet, signature string) (*models.Bounty, error) {
	bounty, err := s.Get(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if bounty.PosterWallet != wallet {
		return nil, apperr.Authentication("only the poster can fund a bounty")
	}
	if bounty.EscrowTx != "" {
		return nil, apperr.Conflict("bounty is already funded")
	}

	if _, err := s.escrow.ConfirmDeposit(ctx, bounty, signature); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(bounty).Update("escrow_tx", signature).Error; err != nil {
		return nil, apperr.Internal(err, "failed to record escrow signature")
	}
	bounty.EscrowTx = signature
	return bounty, nil
}

// Get looks a bounty up by id or slug.
func (s *BountyService) Get(ctx context.Context, id string) (*models.Bounty, error) {
	column := "slug"
	if _, err := uuid.Parse(id); err == nil {
		column = "id"
	}
	var bounty models.Bounty
	err := s.db.WithContext(ctx).Where(column+" = ?", id).First(&bounty).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("bounty not found")
		}
		return nil, apperr.Internal(err, "failed to load bounty")
	}
	return &bounty, nil
}

func (s *BountyService) List(ctx context.Context, q ListBountiesQuery) ([]models.Bounty, int64, error) {
	tx := s.db.WithContext(ctx).Model(&models.Bounty{})
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.Token != "" {
		tx = tx.Where("reward_token = ?", q.Token)
	}
	if q.Wallet != "" {
		tx = tx.Where("poster_wallet = ? OR claimed_by = ?", q.Wallet, q.Wallet)
	}
	if q.Tag != "" {
		tx = tx.Where("tags LIKE ?", "%\""+sanitize.Tag(q.Tag)+"\"%")
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal(err, "failed to count bounties")
	}

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var bounties []models.Bounty
	err := tx.Order("created_at DESC").Limit(limit).Offset(q.Offset).Find(&bounties).Error
	if err != nil {
		return nil, 0, apperr.Internal(err, "failed to list bounties")
	}
	return bounties, total, nil
}

// Claim grants a hunter exclusive submission rights for 48 hours. The
// transition is a conditional update so concurrent claimers race on the
// row, not in Go.
func (s *BountyService) Claim(ctx context.Context, bountyID, wallet, message, signature string) (*models.Bounty, error) {
	ok, reason := s.authenticator.Verify(wallet, message, signature)
	if !ok {
		return nil, apperr.Authentication("signature verification failed: %s", reason)
	}

	bounty, err := s.Get(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if bounty.PosterWallet == wallet {
		return nil, apperr.Validation("posters cannot claim their own bounty")
	}
	if bounty.Terminal() {
		return nil, apperr.Conflict("bounty is %s and cannot be claimed", bounty.Status)
	}
	if s.now().After(bounty.Deadline) {
		return nil, apperr.Conflict("bounty deadline has passed")
	}
	funded, err := s.escrow.Deposited(ctx, bounty.ID)
	if err != nil {
		return nil, err
	}
	if !funded {
		return nil, apperr.Conflict("bounty escrow is not funded yet")
	}

	// One live claim per hunter across the whole board.
	var live int64
	err = s.db.WithContext(ctx).Model(&models.Bounty{}).
		Where("claimed_by = ? AND status = ?", wallet, models.BountyStatusClaimed).
		Count(&live).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to check existing claims")
	}
	if live > 0 {
		return nil, apperr.Conflict("wallet already has an active claim")
	}

	now := s.now()
	expires := now.Add(claimDuration)
	res := s.db.WithContext(ctx).Model(&models.Bounty{}).
		Where("id = ? AND status = ?", bounty.ID, models.BountyStatusOpen).
		Updates(map[string]interface{}{
			"status":           models.BountyStatusClaimed,
			"claimed_by":       wallet,
			"claimed_at":       now,
			"claim_expires_at": expires,
		})
	if res.Error != nil {
		return nil, apperr.Internal(res.Error, "failed to claim bounty")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict("bounty is not open")
	}

	zap.S().Infof("🎯 Bounty %s claimed by %s until %s", bounty.ID, wallet, expires.Format(time.RFC3339))
	return s.Get(ctx, bounty.ID)
}

// Forfeit voluntarily releases a claim, reopening the bounty.
func (s *BountyService) Forfeit(ctx context.Context, bountyID, wallet string) (*models.Bounty, error) {
	res := s.db.WithContext(ctx).Model(&models.Bounty{}).
		Where("id = ? AND status = ? AND claimed_by = ?", bountyID, models.BountyStatusClaimed, wallet).
		Updates(map[string]interface{}{
			"status":           models.BountyStatusOpen,
			"claimed_by":       nil,
			"claimed_at":       nil,
			"claim_expires_at": nil,
		})
	if res.Error != nil {
		return nil, apperr.Internal(res.Error, "failed to forfeit claim")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict("no active claim by this wallet")
	}
	zap.S().Infof("🏳️ Claim on bounty %s forfeited by %s", bountyID, wallet)
	return s.Get(ctx, bountyID)
}

// Submit records the claimer's answer and queues the bounty for
// judgment. Only the current claimer may submit, and only once.
func (s *BountyService) Submit(ctx context.Context, bountyID, wallet, message, signature string, req *SubmitRequest) (*models.Submission, error) {
	ok, reason := s.authenticator.Verify(wallet, message, signature)
	if !ok {
		return nil, apperr.Authentication("signature verification failed: %s", reason)
	}

	bounty, err := s.Get(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	if bounty.Status != models.BountyStatusClaimed {
		return nil, apperr.Conflict("bounty is not awaiting a submission")
	}
	if bounty.ClaimedBy == nil || *bounty.ClaimedBy != wallet {
		return nil, apperr.Authentication("only the claimer can submit")
	}
	if bounty.ClaimExpiresAt != nil && s.now().After(*bounty.ClaimExpiresAt) {
		return nil, apperr.Conflict("claim has expired")
	}

	// Recheck lengths after sanitization; stripping can shrink text
	// below the minimums the request tags enforce.
	answer := sanitize.Input(req.Answer)
	if len(answer) < 10 {
		return nil, apperr.Validation("answer must be at least 10 characters")
	}
	methodology := sanitize.Input(req.Methodology)
	if len(methodology) < 20 {
		return nil, apperr.Validation("methodology must be at least 20 characters")
	}

	evidence, err := cleanEvidence(req.Evidence)
	if err != nil {
		return nil, err
	}
	if s.archiver != nil {
		evidence = s.archiver.Archive(ctx, bounty.ID, evidence)
	}

	submission := &models.Submission{
		ID:          uuid.NewString(),
		BountyID:    bounty.ID,
		AgentWallet: wallet,
		Answer:      answer,
		Evidence:    evidence,
		Methodology: methodology,
		Confidence:  req.Confidence,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(submission).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Bounty{}).
			Where("id = ? AND status = ? AND claimed_by = ?", bounty.ID, models.BountyStatusClaimed, wallet).
			Update("status", models.BountyStatusSubmitted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("bounty state changed during submission")
		}
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, err
		}
		return nil, apperr.Internal(err, "failed to record submission")
	}

	if s.queue != nil && !s.queue.Enqueue(bounty.ID) {
		zap.S().Warnf("⚠️ Resolution queue full, bounty %s will await the sweep", bounty.ID)
	}

	zap.S().Infof("📨 Submission received for bounty %s from %s (confidence %d)", bounty.ID, wallet, req.Confidence)
	return submission, nil
}

func (s *BountyService) GetSubmission(ctx context.Context, bountyID string) (*models.Submission, error) {
	var sub models.Submission
	err := s.db.WithContext(ctx).Where("bounty_id = ?", bountyID).First(&sub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("no submission for this bounty")
		}
		return nil, apperr.Internal(err, "failed to load submission")
	}
	return &sub, nil
}

func (s *BountyService) GetResolution(ctx context.Context, bountyID string) (*models.Resolution, error) {
	var res models.Resolution
	err := s.db.WithContext(ctx).Where("bounty_id = ?", bountyID).First(&res).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("bounty is not resolved")
		}
		return nil, apperr.Internal(err, "failed to load resolution")
	}
	return &res, nil
}

// Delete removes an unfunded, unclaimed bounty. Funded bounties go
// through the refund path instead.
func (s *BountyService) Delete(ctx context.Context, bountyID, wallet string) error {
	bounty, err := s.Get(ctx, bountyID)
	if err != nil {
		return err
	}
	if bounty.PosterWallet != wallet {
		return apperr.Authentication("only the poster can delete a bounty")
	}
	if bounty.Status != models.BountyStatusOpen {
		return apperr.Conflict("only open bounties can be deleted")
	}
	funded, err := s.escrow.Deposited(ctx, bounty.ID)
	if err != nil {
		return err
	}
	if funded {
		return apperr.Conflict("funded bounties cannot be deleted, contact support for a refund")
	}
	if err := s.db.WithContext(ctx).Delete(&models.Bounty{}, "id = ?", bounty.ID).Error; err != nil {
		return apperr.Internal(err, "failed to delete bounty")
	}
	return nil
}

// ReleaseStaleClaims reopens bounties whose 48h claim window lapsed
// without a submission. Run by the scheduler.
func (s *BountyService) ReleaseStaleClaims(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).Model(&models.Bounty{}).
		Where("status = ? AND claim_expires_at < ?", models.BountyStatusClaimed, s.now()).
		Updates(map[string]interface{}{
			"status":           models.BountyStatusOpen,
			"claimed_by":       nil,
			"claimed_at":       nil,
			"claim_expires_at": nil,
		})
	if res.Error != nil {
		return 0, apperr.Internal(res.Error, "failed to release stale claims")
	}
	if res.RowsAffected > 0 {
		zap.S().Infof("♻️ Released %d stale claims", res.RowsAffected)
	}
	return int(res.RowsAffected), nil
}

// ExpireOverdue marks past-deadline bounties expired and refunds any
// escrowed funds to the poster. Covers both open and claimed bounties;
// a claim does not outlive the bounty's own deadline. Refund failures
// leave the bounty expired and alert the operators.
func (s *BountyService) ExpireOverdue(ctx context.Context) (int, error) {
	sweepable := []models.BountyStatus{models.BountyStatusOpen, models.BountyStatusClaimed}
	var overdue []models.Bounty
	err := s.db.WithContext(ctx).
		Where("status IN ? AND deadline < ?", sweepable, s.now()).
		Find(&overdue).Error
	if err != nil {
		return 0, apperr.Internal(err, "failed to find overdue bounties")
	}

	expired := 0
	for i := range overdue {
		bounty := &overdue[i]
		res := s.db.WithContext(ctx).Model(&models.Bounty{}).
			Where("id = ? AND status IN ?", bounty.ID, sweepable).
			Updates(map[string]interface{}{
				"status":           models.BountyStatusExpired,
				"claimed_by":       nil,
				"claimed_at":       nil,
				"claim_expires_at": nil,
			})
		if res.Error != nil || res.RowsAffected == 0 {
			continue
		}
		expired++

		funded, err := s.escrow.Deposited(ctx, bounty.ID)
		if err != nil || !funded {
			continue
		}
		if _, err := s.escrow.Refund(ctx, bounty); err != nil {
			zap.S().Errorf("🚨 Refund failed for expired bounty %s: %v", bounty.ID, err)
			alertRefundFailed(s.alerts, bounty.ID, bounty.PosterWallet, err.Error(), bounty.RewardAmount, bounty.RewardToken)
		}
	}
	if expired > 0 {
		zap.S().Infof("⏰ Expired %d overdue bounties", expired)
	}
	return expired, nil
}

func cleanEvidence(items []models.Evidence) ([]models.Evidence, error) {
	out := make([]models.Evidence, 0, len(items))
	for _, ev := range items {
		switch ev.Type {
		case models.EvidenceURL:
			u := sanitize.URL(ev.Content)
			if u == "" {
				return nil, apperr.Validation("evidence URL must be http or https")
			}
			ev.Content = u
		case models.EvidenceText:
			ev.Content = sanitize.Input(ev.Content)
		case models.EvidenceImage, models.EvidenceArchive:
			// data URIs and blobs pass through, the archiver handles them
		default:
			return nil, apperr.Validation("unknown evidence type: %s", ev.Type)
		}
		ev.Note = sanitize.Input(ev.Note)
		out = append(out, ev)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := sanitize.Truncate(s, n)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut
}
