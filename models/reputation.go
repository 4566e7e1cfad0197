package models

import "time"

// Hunter ranks, derived from volume and success rate. Informational
// only — never consulted for payment decisions.
const (
	RankNovice = "novice"
	RankHunter = "hunter"
	RankExpert = "expert"
	RankElite  = "elite"
	RankLegend = "legend"
)

// HunterReputation aggregates resolution outcomes per wallet.
// Eventually consistent; updated asynchronously after resolutions.
type HunterReputation struct {
	Wallet             string    `gorm:"primaryKey;type:varchar(64)" json:"wallet"`
	TotalBounties      int       `gorm:"not null;default:0" json:"total_bounties"`
	SuccessfulBounties int       `gorm:"not null;default:0" json:"successful_bounties"`
	FailedBounties     int       `gorm:"not null;default:0" json:"failed_bounties"`
	TotalEarnings      float64   `gorm:"not null;default:0" json:"total_earnings"`
	CurrentStreak      int       `gorm:"not null;default:0" json:"current_streak"`
	BestStreak         int       `gorm:"not null;default:0" json:"best_streak"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SuccessRate is successful/total, 0 for fresh profiles.
func (r *HunterReputation) SuccessRate() float64 {
	if r.TotalBounties == 0 {
		return 0
	}
	return float64(r.SuccessfulBounties) / float64(r.TotalBounties)
}

// Badge is one earned achievement for a wallet.
type Badge struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Wallet    string    `gorm:"type:varchar(64);not null;index" json:"wallet"`
	BadgeType string    `gorm:"type:varchar(32);not null" json:"badge_type"`
	BountyID  string    `json:"bounty_id,omitempty"`
	EarnedAt  time.Time `gorm:"autoCreateTime" json:"earned_at"`
}

// Badge catalogue.
const (
	BadgeFirstBlood  = "first_blood"  // first successful bounty
	BadgeSpeedDemon  = "speed_demon"  // completed in under 1 hour
	BadgeWhaleHunter = "whale_hunter" // single payout worth 10+ SOL
	BadgeStreak5     = "streak_5"     // 5 successes in a row
	BadgeStreak10    = "streak_10"    // 10 successes in a row
)

// BadgeInfo is the display metadata for a badge type.
type BadgeInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var BadgeCatalogue = map[string]BadgeInfo{
	BadgeFirstBlood:  {Name: "First Blood", Description: "Completed first bounty"},
	BadgeSpeedDemon:  {Name: "Speed Demon", Description: "Completed bounty in under 1 hour"},
	BadgeWhaleHunter: {Name: "Whale Hunter", Description: "Completed a bounty worth 10+ SOL"},
	BadgeStreak5:     {Name: "Hot Streak", Description: "5 successful bounties in a row"},
	BadgeStreak10:    {Name: "Unstoppable", Description: "10 successful bounties in a row"},
}
