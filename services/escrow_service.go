package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"osint-market/apperr"
	"osint-market/config"
	"osint-market/models"
)

// PaymentRail is the on-chain settlement dependency. The escrow service
// never signs anything itself; verification and transfers are delegated.
type PaymentRail interface {
	VerifyIncomingTransfer(ctx context.Context, signature, recipient string, amount float64, token string) error
	SendTransfer(ctx context.Context, destination string, amount float64, token string) (string, error)
}

// DepositQuote tells a poster what to send and where.
type DepositQuote struct {
	EscrowWallet string  `json:"escrow_wallet"`
	Amount       float64 `json:"amount"`
	Token        string  `json:"token"`
	FeeAmount    float64 `json:"fee_amount"`
	Total        float64 `json:"total"`
	Memo         string  `json:"memo"`
}

type EscrowService struct {
	db   *gorm.DB
	cfg  config.EscrowConfig
	rail PaymentRail
}

func NewEscrowService(db *gorm.DB, cfg config.EscrowConfig, rail PaymentRail) *EscrowService {
	return &EscrowService{db: db, cfg: cfg, rail: rail}
}

// feeOn returns bps-style percentage of amount, rounded to 9 decimal
// places (lamport precision).
func feeOn(amount, percent float64) float64 {
	fee := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100))
	f, _ := fee.Round(9).Float64()
	return f
}

func (s *EscrowService) SupportedToken(token string) bool {
	for _, t := range s.cfg.SupportedTokens {
		if t == token {
			return true
		}
	}
	return false
}

func (s *EscrowService) MinimumDeposit(token string) float64 {
	return s.cfg.MinimumDeposit[token]
}

// QuoteDeposit computes what the poster must transfer to fund a bounty:
// the reward plus the creation fee.
func (s *EscrowService) QuoteDeposit(bounty *models.Bounty) *DepositQuote {
	fee := feeOn(bounty.RewardAmount, s.cfg.CreationFeePercent)
	total, _ := decimal.NewFromFloat(bounty.RewardAmount).
		Add(decimal.NewFromFloat(fee)).Round(9).Float64()
	return &DepositQuote{
		EscrowWallet: s.cfg.TreasuryWallet,
		Amount:       bounty.RewardAmount,
		Token:        bounty.RewardToken,
		FeeAmount:    fee,
		Total:        total,
		Memo:         "bounty:" + bounty.ID,
	}
}

// ConfirmDeposit verifies the poster's funding transfer on-chain and
// records it. A signature can fund exactly one bounty; reuse is a
// conflict. Rail failure records nothing, so the call can be retried.
func (s *EscrowService) ConfirmDeposit(ctx context.Context, bounty *models.Bounty, signature string) (*models.Transaction, error) {
	if signature == "" {
		return nil, apperr.Validation("transaction signature is required")
	}

	var reused int64
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("tx_signature = ? AND type = ? AND status = ?",
			signature, models.TxEscrowDeposit, models.TxStatusConfirmed).
		Count(&reused).Error; err != nil {
		return nil, apperr.Internal(err, "failed to check deposit signature")
	}
	if reused > 0 {
		return nil, apperr.Conflict("transaction signature already used to fund a bounty")
	}

	quote := s.QuoteDeposit(bounty)
	if err := s.rail.VerifyIncomingTransfer(ctx, signature, s.cfg.TreasuryWallet, quote.Total, bounty.RewardToken); err != nil {
		return nil, apperr.External(err, "deposit verification failed")
	}

	tx := &models.Transaction{
		ID:          uuid.NewString(),
		Type:        models.TxEscrowDeposit,
		BountyID:    bounty.ID,
		Amount:      bounty.RewardAmount,
		Token:       bounty.RewardToken,
		FromWallet:  bounty.PosterWallet,
		ToWallet:    s.cfg.TreasuryWallet,
		FeeAmount:   quote.FeeAmount,
		TxSignature: signature,
		Status:      models.TxStatusConfirmed,
	}
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return nil, apperr.Internal(err, "failed to record escrow deposit")
	}

	zap.S().Infof("💰 Escrow funded for bounty %s: %g %s (fee %g)", bounty.ID, bounty.RewardAmount, bounty.RewardToken, quote.FeeAmount)
	return tx, nil
}

// Deposited reports whether the bounty has a confirmed escrow deposit.
func (s *EscrowService) Deposited(ctx context.Context, bountyID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("bounty_id = ? AND type = ? AND status = ?",
			bountyID, models.TxEscrowDeposit, models.TxStatusConfirmed).
		Count(&count).Error
	if err != nil {
		return false, apperr.Internal(err, "failed to check escrow deposit")
	}
	return count > 0, nil
}

// ConfirmedRelease returns the confirmed payout for a bounty, or nil
// when none was sent. Callers use it to avoid paying twice when a
// transfer succeeded but the records after it did not.
func (s *EscrowService) ConfirmedRelease(ctx context.Context, bountyID string) (*models.Transaction, error) {
	var release models.Transaction
	err := s.db.WithContext(ctx).
		Where("bounty_id = ? AND type = ? AND status = ?",
			bountyID, models.TxEscrowRelease, models.TxStatusConfirmed).
		First(&release).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, apperr.Internal(err, "failed to check payout history")
	}
	return &release, nil
}

// Payout sends the winner their reward net of the payout fee.
//
// Transfer first, records second: if the transfer fails nothing is
// written and the caller may retry; if the records fail after a
// successful transfer we log loudly but the hunter already has the
// funds, which is the failure mode we prefer.
func (s *EscrowService) Payout(ctx context.Context, bounty *models.Bounty, destination string) (*models.Transaction, error) {
	fee := feeOn(bounty.RewardAmount, s.cfg.PayoutFeePercent)
	net, _ := decimal.NewFromFloat(bounty.RewardAmount).
		Sub(decimal.NewFromFloat(fee)).Round(9).Float64()

	signature, err := s.rail.SendTransfer(ctx, destination, net, bounty.RewardToken)
	if err != nil {
		return nil, apperr.External(err, "payout transfer failed")
	}

	release := &models.Transaction{
		ID:          uuid.NewString(),
		Type:        models.TxEscrowRelease,
		BountyID:    bounty.ID,
		Amount:      net,
		Token:       bounty.RewardToken,
		FromWallet:  s.cfg.TreasuryWallet,
		ToWallet:    destination,
		FeeAmount:   fee,
		TxSignature: signature,
		Status:      models.TxStatusConfirmed,
	}
	feeTx := &models.Transaction{
		ID:       uuid.NewString(),
		Type:     models.TxFeeCollection,
		BountyID: bounty.ID,
		Amount:   fee,
		Token:    bounty.RewardToken,
		ToWallet: s.cfg.TreasuryWallet,
		Status:   models.TxStatusConfirmed,
	}
	if err := s.db.WithContext(ctx).Create(release).Error; err != nil {
		zap.S().Errorf("🚨 Payout %s sent but ledger write failed for bounty %s: %v", signature, bounty.ID, err)
		return nil, apperr.SettlementInvariant("payout %s sent but not recorded", signature)
	}
	if err := s.db.WithContext(ctx).Create(feeTx).Error; err != nil {
		zap.S().Errorf("🚨 Fee record failed for bounty %s: %v", bounty.ID, err)
	}

	zap.S().Infof("✅ Paid out %g %s to %s for bounty %s (tx %s)", net, bounty.RewardToken, destination, bounty.ID, signature)
	return release, nil
}

// Refund returns the full reward to the poster. The creation fee is
// not returned.
func (s *EscrowService) Refund(ctx context.Context, bounty *models.Bounty) (*models.Transaction, error) {
	signature, err := s.rail.SendTransfer(ctx, bounty.PosterWallet, bounty.RewardAmount, bounty.RewardToken)
	if err != nil {
		return nil, apperr.External(err, "refund transfer failed")
	}

	refund := &models.Transaction{
		ID:          uuid.NewString(),
		Type:        models.TxEscrowRefund,
		BountyID:    bounty.ID,
		Amount:      bounty.RewardAmount,
		Token:       bounty.RewardToken,
		FromWallet:  s.cfg.TreasuryWallet,
		ToWallet:    bounty.PosterWallet,
		TxSignature: signature,
		Status:      models.TxStatusConfirmed,
	}
	if err := s.db.WithContext(ctx).Create(refund).Error; err != nil {
		zap.S().Errorf("🚨 Refund %s sent but ledger write failed for bounty %s: %v", signature, bounty.ID, err)
		return nil, apperr.SettlementInvariant("refund %s sent but not recorded", signature)
	}

	zap.S().Infof("↩️ Refunded %g %s to %s for bounty %s (tx %s)", bounty.RewardAmount, bounty.RewardToken, bounty.PosterWallet, bounty.ID, signature)
	return refund, nil
}

// Transactions returns the ledger entries for one bounty, newest first.
func (s *EscrowService) Transactions(ctx context.Context, bountyID string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("bounty_id = ?", bountyID).
		Order("created_at DESC").
		Find(&txs).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to list transactions")
	}
	return txs, nil
}

// TransactionQuery filters the public ledger listing.
type TransactionQuery struct {
	BountyID string
	Wallet   string
	Type     string
	Status   string
	Limit    int
}

// ListTransactions returns ledger entries matching the filters, newest
// first.
func (s *EscrowService) ListTransactions(ctx context.Context, q TransactionQuery) ([]models.Transaction, error) {
	tx := s.db.WithContext(ctx).Model(&models.Transaction{})
	if q.BountyID != "" {
		tx = tx.Where("bounty_id = ?", q.BountyID)
	}
	if q.Wallet != "" {
		tx = tx.Where("from_wallet = ? OR to_wallet = ?", q.Wallet, q.Wallet)
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var txs []models.Transaction
	err := tx.Order("created_at DESC").Limit(limit).Find(&txs).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to list transactions")
	}
	return txs, nil
}

// EscrowStats is the public /api/escrow/info shape.
type EscrowStats struct {
	EscrowWallet       string  `json:"escrow_wallet"`
	CreationFeePercent float64 `json:"creation_fee_percent"`
	PayoutFeePercent   float64 `json:"payout_fee_percent"`
	TotalDeposited     float64 `json:"total_deposited"`
	TotalReleased      float64 `json:"total_released"`
	TotalRefunded      float64 `json:"total_refunded"`
	TotalFeesCollected float64 `json:"total_fees_collected"`
}

func (s *EscrowService) Stats(ctx context.Context) (*EscrowStats, error) {
	stats := &EscrowStats{
		EscrowWallet:       s.cfg.TreasuryWallet,
		CreationFeePercent: s.cfg.CreationFeePercent,
		PayoutFeePercent:   s.cfg.PayoutFeePercent,
	}
	sums := []struct {
		txType models.TransactionType
		dest   *float64
	}{
		{models.TxEscrowDeposit, &stats.TotalDeposited},
		{models.TxEscrowRelease, &stats.TotalReleased},
		{models.TxEscrowRefund, &stats.TotalRefunded},
	}
	for _, q := range sums {
		err := s.db.WithContext(ctx).Model(&models.Transaction{}).
			Where("type = ? AND status = ?", q.txType, models.TxStatusConfirmed).
			Select("COALESCE(SUM(amount), 0)").
			Scan(q.dest).Error
		if err != nil {
			return nil, apperr.Internal(err, "failed to compute escrow stats")
		}
	}
	// Fees come from both the deposit fee column and fee_collection rows.
	var depositFees, collectedFees float64
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TxEscrowDeposit, models.TxStatusConfirmed).
		Select("COALESCE(SUM(fee_amount), 0)").
		Scan(&depositFees).Error; err != nil {
		return nil, apperr.Internal(err, "failed to compute escrow stats")
	}
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TxFeeCollection, models.TxStatusConfirmed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&collectedFees).Error; err != nil {
		return nil, apperr.Internal(err, "failed to compute escrow stats")
	}
	stats.TotalFeesCollected = depositFees + collectedFees
	return stats, nil
}
