package models

import "time"

// Dispute statuses. pending is the only active (non-terminal) state;
// a bounty may have at most one active dispute.
const (
	DisputeStatusPending    = "pending"
	DisputeStatusUpheld     = "upheld"
	DisputeStatusOverturned = "overturned"
	DisputeStatusDismissed  = "dismissed"
)

// Dispute is a hunter's contest of a resolution. Created by the
// submitter, mutated only by an administrator.
type Dispute struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	BountyID    string     `gorm:"not null;index" json:"bounty_id"`
	AgentWallet string     `gorm:"type:varchar(64);not null" json:"agent_wallet"`
	Reason      string     `gorm:"type:text;not null" json:"reason"`
	Evidence    []string   `gorm:"serializer:json" json:"evidence"`
	Status      string     `gorm:"type:varchar(16);not null;index" json:"status"`
	AdminNotes  string     `gorm:"type:text" json:"admin_notes,omitempty"`
	ResolvedBy  string     `gorm:"type:varchar(64)" json:"resolved_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Active reports whether the dispute still blocks a new filing.
func (d *Dispute) Active() bool {
	return d.Status == DisputeStatusPending
}
