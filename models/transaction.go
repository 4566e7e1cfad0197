package models

import "time"

// TransactionType classifies a settlement ledger entry.
type TransactionType string

const (
	TxEscrowDeposit TransactionType = "escrow_deposit"
	TxEscrowRelease TransactionType = "escrow_release"
	TxEscrowRefund  TransactionType = "escrow_refund"
	TxFeeCollection TransactionType = "fee_collection"
)

// Transaction statuses. Rows are append-only; only Status may change
// (pending -> confirmed/failed).
const (
	TxStatusPending   = "pending"
	TxStatusConfirmed = "confirmed"
	TxStatusFailed    = "failed"
)

// Transaction is one entry in the settlement ledger. BountyID is empty
// for platform-level entries.
type Transaction struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	Type        TransactionType `gorm:"type:varchar(24);not null;index" json:"type"`
	BountyID    string          `gorm:"index" json:"bounty_id,omitempty"`
	Amount      float64         `gorm:"not null" json:"amount"`
	Token       string          `gorm:"type:varchar(16);not null" json:"token"`
	FromWallet  string          `gorm:"type:varchar(64)" json:"from_wallet,omitempty"`
	ToWallet    string          `gorm:"type:varchar(64);index" json:"to_wallet,omitempty"`
	FeeAmount   float64         `json:"fee_amount,omitempty"`
	TxSignature string          `gorm:"type:varchar(128);index" json:"tx_signature,omitempty"`
	Status      string          `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}
