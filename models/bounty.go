package models

import "time"

// BountyStatus is the lifecycle state of a bounty.
type BountyStatus string

const (
	BountyStatusOpen      BountyStatus = "open"
	BountyStatusClaimed   BountyStatus = "claimed"
	BountyStatusSubmitted BountyStatus = "submitted"
	BountyStatusResolved  BountyStatus = "resolved"
	BountyStatusExpired   BountyStatus = "expired"
	BountyStatusDisputed  BountyStatus = "disputed"
)

// Difficulty levels accepted on creation.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
	DifficultyExpert = "expert"
)

// Bounty is a staked research question awaiting an answer.
// Invariant: ClaimedBy is set iff status is claimed or submitted.
type Bounty struct {
	ID             string       `gorm:"primaryKey;type:uuid" json:"id"`
	Slug           string       `gorm:"index" json:"slug"`
	Question       string       `gorm:"type:text;not null" json:"question"`
	Description    string       `gorm:"type:text" json:"description,omitempty"`
	RewardAmount   float64      `gorm:"not null" json:"reward_amount"`
	RewardToken    string       `gorm:"type:varchar(16);not null" json:"reward_token"`
	RewardUSDValue *float64     `json:"reward_usd_value,omitempty"`
	PosterWallet   string       `gorm:"type:varchar(64);not null;index" json:"poster_wallet"`
	Status         BountyStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Difficulty     string       `gorm:"type:varchar(16);not null" json:"difficulty"`
	Tags           []string     `gorm:"serializer:json" json:"tags"`
	EscrowTx       string       `gorm:"type:varchar(128)" json:"escrow_tx,omitempty"`
	Deadline       time.Time    `gorm:"not null;index" json:"deadline"`
	ClaimedBy      *string      `gorm:"type:varchar(64);index" json:"claimed_by,omitempty"`
	ClaimedAt      *time.Time   `json:"claimed_at,omitempty"`
	ClaimExpiresAt *time.Time   `json:"claim_expires_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Terminal reports whether no further hunter-driven transition is possible.
func (b *Bounty) Terminal() bool {
	return b.Status == BountyStatusExpired || b.Status == BountyStatusDisputed
}
