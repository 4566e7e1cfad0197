package services

import (
	"context"

	"gorm.io/gorm"

	"osint-market/apperr"
	"osint-market/models"
)

// MarketStats is the public /api/stats shape.
type MarketStats struct {
	TotalBounties    int64   `json:"total_bounties"`
	OpenBounties     int64   `json:"open_bounties"`
	ClaimedBounties  int64   `json:"claimed_bounties"`
	ResolvedBounties int64   `json:"resolved_bounties"`
	TotalPaidOut     float64 `json:"total_paid_out"`
	TotalFees        float64 `json:"total_fees_collected"`
	ActiveHunters    int64   `json:"active_hunters"`
	PendingDisputes  int64   `json:"pending_disputes"`
}

type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

func (s *StatsService) Market(ctx context.Context) (*MarketStats, error) {
	stats := &MarketStats{}
	db := s.db.WithContext(ctx)

	counts := []struct {
		status models.BountyStatus
		dest   *int64
	}{
		{models.BountyStatusOpen, &stats.OpenBounties},
		{models.BountyStatusClaimed, &stats.ClaimedBounties},
		{models.BountyStatusResolved, &stats.ResolvedBounties},
	}
	if err := db.Model(&models.Bounty{}).Count(&stats.TotalBounties).Error; err != nil {
		return nil, apperr.Internal(err, "failed to compute market stats")
	}
	for _, q := range counts {
		if err := db.Model(&models.Bounty{}).Where("status = ?", q.status).Count(q.dest).Error; err != nil {
			return nil, apperr.Internal(err, "failed to compute market stats")
		}
	}

	if err := db.Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TxEscrowRelease, models.TxStatusConfirmed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.TotalPaidOut).Error; err != nil {
		return nil, apperr.Internal(err, "failed to compute market stats")
	}
	var depositFees, collectedFees float64
	if err := db.Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TxEscrowDeposit, models.TxStatusConfirmed).
		Select("COALESCE(SUM(fee_amount), 0)").
		Scan(&depositFees).Error; err != nil {
		return nil, apperr.Internal(err, "failed to compute market stats")
	}
	if err := db.Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TxFeeCollection, models.TxStatusConfirmed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&collectedFees).Error; err != nil {
		return nil, apperr.Internal(err, "failed to compute market stats")
	}
	stats.TotalFees = depositFees + collectedFees

	if err := db.Model(&models.HunterReputation{}).
		Where("total_bounties > 0").
		Count(&stats.ActiveHunters).Error; err != nil {
		return nil, apperr.Internal(err, "failed to compute market stats")
	}
	if err := db.Model(&models.Dispute{}).
		Where("status = ?", models.DisputeStatusPending).
		Count(&stats.PendingDisputes).Error; err != nil {
		return nil, apperr.Internal(err, "failed to compute market stats")
	}
	return stats, nil
}
