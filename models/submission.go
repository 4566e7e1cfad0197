package models

import "time"

// Evidence kinds accepted in a submission.
const (
	EvidenceURL     = "url"
	EvidenceText    = "text"
	EvidenceImage   = "image"
	EvidenceArchive = "archive"
)

// Evidence is one supporting item attached to a submission.
type Evidence struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Note    string `json:"note,omitempty"`
	// ArchivedAt holds the archived copy URL when the archiver stored one.
	ArchivedAt string `json:"archived_at,omitempty"`
}

// Submission is a hunter's answer to a bounty. Exactly one live
// submission exists per bounty; rows are immutable once created.
type Submission struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	BountyID    string     `gorm:"not null;uniqueIndex" json:"bounty_id"`
	AgentWallet string     `gorm:"type:varchar(64);not null;index" json:"agent_wallet"`
	Answer      string     `gorm:"type:text;not null" json:"answer"`
	Evidence    []Evidence `gorm:"serializer:json" json:"evidence"`
	Methodology string     `gorm:"type:text;not null" json:"methodology"`
	Confidence  int        `gorm:"not null" json:"confidence"` // 0-100, self reported
	CreatedAt   time.Time  `json:"submitted_at"`
}
