package models

import "time"

// Resolution outcomes.
const (
	ResolutionApproved = "approved"
	ResolutionRejected = "rejected"
)

// Resolution records the verdict for a submitted bounty. Created exactly
// once, by the resolver or an admin override. An approved resolution is
// only ever written after its escrow_release transaction exists.
type Resolution struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	BountyID     string    `gorm:"not null;uniqueIndex" json:"bounty_id"`
	SubmissionID string    `gorm:"not null" json:"submission_id"`
	Status       string    `gorm:"type:varchar(16);not null" json:"status"`
	Reasoning    string    `gorm:"type:text;not null" json:"reasoning"`
	ResolverID   string    `gorm:"type:varchar(64);not null" json:"resolver_id"`
	PaymentTx    string    `gorm:"type:varchar(128)" json:"payment_tx,omitempty"`
	CreatedAt    time.Time `json:"resolved_at"`
}
