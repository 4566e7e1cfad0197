package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"osint-market/apperr"
	"osint-market/models"
)

// Rank thresholds, checked top down.
var rankLadder = []struct {
	rank        string
	minBounties int
	minRate     float64
}{
	{models.RankLegend, 50, 0.9},
	{models.RankElite, 25, 0.8},
	{models.RankExpert, 10, 0.7},
	{models.RankHunter, 3, 0.5},
}

// RankFor maps an aggregate to its display rank.
func RankFor(r *models.HunterReputation) string {
	for _, tier := range rankLadder {
		if r.TotalBounties >= tier.minBounties && r.SuccessRate() >= tier.minRate {
			return tier.rank
		}
	}
	return models.RankNovice
}

type ReputationService struct {
	db *gorm.DB
}

func NewReputationService(db *gorm.DB) *ReputationService {
	return &ReputationService{db: db}
}

// RecordOutcome folds one resolution into the hunter's aggregate and
// awards any badges it unlocked. Runs off the settlement path; errors
// are logged, never surfaced.
func (s *ReputationService) RecordOutcome(ctx context.Context, bounty *models.Bounty, submission *models.Submission, approved bool) {
	rep := &models.HunterReputation{Wallet: submission.AgentWallet}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rep).Error
	if err != nil {
		zap.S().Errorf("Reputation upsert failed for %s: %v", submission.AgentWallet, err)
		return
	}
	if err := s.db.WithContext(ctx).Where("wallet = ?", submission.AgentWallet).First(rep).Error; err != nil {
		zap.S().Errorf("Reputation load failed for %s: %v", submission.AgentWallet, err)
		return
	}

	rep.TotalBounties++
	if approved {
		rep.SuccessfulBounties++
		rep.CurrentStreak++
		if rep.CurrentStreak > rep.BestStreak {
			rep.BestStreak = rep.CurrentStreak
		}
		rep.TotalEarnings += bounty.RewardAmount
	} else {
		rep.FailedBounties++
		rep.CurrentStreak = 0
	}

	if err := s.db.WithContext(ctx).Save(rep).Error; err != nil {
		zap.S().Errorf("Reputation save failed for %s: %v", submission.AgentWallet, err)
		return
	}

	if approved {
		s.awardBadges(ctx, rep, bounty, submission)
	}
}

func (s *ReputationService) awardBadges(ctx context.Context, rep *models.HunterReputation, bounty *models.Bounty, submission *models.Submission) {
	var earned []string
	if rep.SuccessfulBounties == 1 {
		earned = append(earned, models.BadgeFirstBlood)
	}
	if bounty.ClaimedAt != nil && submission.CreatedAt.Sub(*bounty.ClaimedAt) < time.Hour {
		earned = append(earned, models.BadgeSpeedDemon)
	}
	if bounty.RewardToken == "SOL" && bounty.RewardAmount >= 10 {
		earned = append(earned, models.BadgeWhaleHunter)
	}
	if rep.CurrentStreak == 5 {
		earned = append(earned, models.BadgeStreak5)
	}
	if rep.CurrentStreak == 10 {
		earned = append(earned, models.BadgeStreak10)
	}

	for _, badgeType := range earned {
		var exists int64
		if err := s.db.WithContext(ctx).Model(&models.Badge{}).
			Where("wallet = ? AND badge_type = ?", rep.Wallet, badgeType).
			Count(&exists).Error; err != nil || exists > 0 {
			continue
		}
		badge := &models.Badge{
			ID:        uuid.NewString(),
			Wallet:    rep.Wallet,
			BadgeType: badgeType,
			BountyID:  bounty.ID,
		}
		if err := s.db.WithContext(ctx).Create(badge).Error; err != nil {
			zap.S().Errorf("Badge award failed for %s/%s: %v", rep.Wallet, badgeType, err)
			continue
		}
		zap.S().Infof("🏅 %s earned %s on bounty %s", rep.Wallet, badgeType, bounty.ID)
	}
}

// HunterProfile is the public reputation view.
type HunterProfile struct {
	models.HunterReputation
	Rank        string         `json:"rank"`
	SuccessRate float64        `json:"success_rate"`
	Badges      []models.Badge `json:"badges"`
}

func (s *ReputationService) Profile(ctx context.Context, wallet string) (*HunterProfile, error) {
	var rep models.HunterReputation
	err := s.db.WithContext(ctx).Where("wallet = ?", wallet).First(&rep).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("no reputation for this wallet")
		}
		return nil, apperr.Internal(err, "failed to load reputation")
	}

	var badges []models.Badge
	if err := s.db.WithContext(ctx).Where("wallet = ?", wallet).Order("earned_at ASC").Find(&badges).Error; err != nil {
		return nil, apperr.Internal(err, "failed to load badges")
	}

	return &HunterProfile{
		HunterReputation: rep,
		Rank:             RankFor(&rep),
		SuccessRate:      rep.SuccessRate(),
		Badges:           badges,
	}, nil
}

// Leaderboard returns top hunters by earnings.
func (s *ReputationService) Leaderboard(ctx context.Context, limit int) ([]HunterProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	var reps []models.HunterReputation
	err := s.db.WithContext(ctx).
		Where("total_bounties > 0").
		Order("successful_bounties DESC, total_earnings DESC").
		Limit(limit).
		Find(&reps).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to load leaderboard")
	}

	profiles := make([]HunterProfile, 0, len(reps))
	for i := range reps {
		profiles = append(profiles, HunterProfile{
			HunterReputation: reps[i],
			Rank:             RankFor(&reps[i]),
			SuccessRate:      reps[i].SuccessRate(),
		})
	}
	return profiles, nil
}
