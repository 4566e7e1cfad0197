package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osint-market/apperr"
	"osint-market/config"
	"osint-market/models"
)

// fakeOracle replays scripted responses in order, repeating the last.
type fakeOracle struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeOracle) Evaluate(_ context.Context, _, _ string) (string, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	return f.responses[i], nil
}

const approvedVerdict = `{"approved": true, "criteria": {"directly_answers": true, "evidence_quality": true, "methodology_sound": true, "timely": true}, "reasoning": "Evidence directly answers the question."}`
const rejectedVerdict = `{"approved": false, "criteria": {"directly_answers": false, "evidence_quality": false, "methodology_sound": true, "timely": true}, "reasoning": "Evidence does not support the answer."}`

func resolverConfig() config.ResolverConfig {
	return config.ResolverConfig{Model: "claude-sonnet-4-20250514", MaxRetries: 2}
}

// submittedBounty drives a bounty through claim and submit so the
// resolver has something to judge.
func submittedBounty(t *testing.T, svc *BountyService) (*models.Bounty, *signer) {
	t.Helper()
	poster := newSigner(t)
	hunter := newSigner(t)
	bounty := createFunded(t, svc, poster)
	claimBounty(t, svc, svc.authenticator, bounty.ID, hunter)

	ch := svc.authenticator.IssueChallenge(hunter.wallet)
	_, err := svc.Submit(context.Background(), bounty.ID, hunter.wallet, ch.Message, hunter.sign(ch.Message), &SubmitRequest{
		Answer:      "The operator is a known actor tracked as GhostVendor.",
		Evidence:    []models.Evidence{{Type: models.EvidenceURL, Content: "https://archive.example/capture/9"}},
		Methodology: "Correlated wallet activity with forum handles.",
		Confidence:  90,
	})
	require.NoError(t, err)
	return bounty, hunter
}

func TestResolveApprovedPaysThenRecords(t *testing.T) {
	bsvc, escrow, rail, _, _ := bountyFixture(t)
	bounty, hunter := submittedBounty(t, bsvc)

	oracle := &fakeOracle{responses: []string{approvedVerdict}}
	rsvc := NewResolverService(bsvc.db, escrow, oracle, nil, nopNotifier{}, resolverConfig())

	require.NoError(t, rsvc.Resolve(context.Background(), bounty.ID))

	resolution, err := bsvc.GetResolution(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionApproved, resolution.Status)
	assert.Equal(t, ResolverID, resolution.ResolverID)
	assert.Equal(t, rail.sentSig, resolution.PaymentTx)
	assert.Equal(t, hunter.wallet, rail.lastDest)
	assert.Equal(t, 4.875, rail.lastAmount) // 5 SOL minus 2.5% payout fee

	updated, err := bsvc.Get(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusResolved, updated.Status)
}

func TestResolveRejectedRefundsPoster(t *testing.T) {
	bsvc, escrow, rail, _, _ := bountyFixture(t)
	bounty, _ := submittedBounty(t, bsvc)

	oracle := &fakeOracle{responses: []string{rejectedVerdict}}
	rsvc := NewResolverService(bsvc.db, escrow, oracle, nil, nopNotifier{}, resolverConfig())

	require.NoError(t, rsvc.Resolve(context.Background(), bounty.ID))

	resolution, err := bsvc.GetResolution(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionRejected, resolution.Status)
	assert.Empty(t, resolution.PaymentTx)
	assert.Equal(t, bounty.PosterWallet, rail.lastDest)
	assert.Equal(t, 5.0, rail.lastAmount)
}

func TestResolvePayoutFailureLeavesBountySubmitted(t *testing.T) {
	bsvc, escrow, rail, _, _ := bountyFixture(t)
	bounty, _ := submittedBounty(t, bsvc)
	rail.sendErr = errors.New("signer unavailable")

	oracle := &fakeOracle{responses: []string{approvedVerdict}}
	rsvc := NewResolverService(bsvc.db, escrow, oracle, nil, nopNotifier{}, resolverConfig())

	err := rsvc.Resolve(context.Background(), bounty.ID)
	require.Error(t, err)
	assert.True(t, apperr.Retryable(err))

	_, err = bsvc.GetResolution(context.Background(), bounty.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	updated, err := bsvc.Get(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusSubmitted, updated.Status)

	// Rail recovers, sweep retries, payout lands.
	rail.sendErr = nil
	require.NoError(t, rsvc.Resolve(context.Background(), bounty.ID))
	updated, err = bsvc.Get(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusResolved, updated.Status)
}

func TestResolveDoesNotPayTwiceAfterRecordedPayout(t *testing.T) {
	bsvc, escrow, rail, _, _ := bountyFixture(t)
	bounty, hunter := submittedBounty(t, bsvc)

	// A previous run sent the payout and crashed before the resolution
	// row landed: confirmed release in the ledger, bounty still
	// submitted. The retried resolution must reuse the recorded
	// transfer, not send another.
	require.NoError(t, bsvc.db.Create(&models.Transaction{
		ID:          "release-before-crash",
		Type:        models.TxEscrowRelease,
		BountyID:    bounty.ID,
		Amount:      4.875,
		Token:       "SOL",
		ToWallet:    hunter.wallet,
		TxSignature: "tx-sent-before-crash",
		Status:      models.TxStatusConfirmed,
	}).Error)

	oracle := &fakeOracle{responses: []string{approvedVerdict}}
	rsvc := NewResolverService(bsvc.db, escrow, oracle, nil, nopNotifier{}, resolverConfig())
	require.NoError(t, rsvc.Resolve(context.Background(), bounty.ID))

	assert.Zero(t, rail.sendCalls, "hunter must not be paid twice for one bounty")

	resolution, err := bsvc.GetResolution(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, "tx-sent-before-crash", resolution.PaymentTx)

	updated, err := bsvc.Get(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusResolved, updated.Status)
}

type captureNotifier struct {
	mu     sync.Mutex
	levels []string
	titles []string
}

func (n *captureNotifier) Notify(level, title, _ string, _ map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levels = append(n.levels, level)
	n.titles = append(n.titles, title)
}

func TestResolveMalformedOracleExhaustsRetries(t *testing.T) {
	bsvc, escrow, rail, _, _ := bountyFixture(t)
	bounty, _ := submittedBounty(t, bsvc)

	alerts := &captureNotifier{}
	oracle := &fakeOracle{responses: []string{"I cannot produce a verdict for this one, sorry."}}
	rsvc := NewResolverService(bsvc.db, escrow, oracle, nil, alerts, config.ResolverConfig{Model: "claude-sonnet-4-20250514", MaxRetries: 1})

	err := rsvc.Resolve(context.Background(), bounty.ID)
	require.Error(t, err)
	assert.True(t, apperr.Retryable(err))
	assert.GreaterOrEqual(t, oracle.calls, 3, "initial, corrective, and at least one retry")
	assert.Zero(t, rail.sendCalls)

	_, err = bsvc.GetResolution(context.Background(), bounty.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	updated, err := bsvc.Get(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusSubmitted, updated.Status)

	require.NotEmpty(t, alerts.levels)
	assert.Equal(t, AlertCritical, alerts.levels[0])
	assert.Equal(t, "Resolver Unavailable", alerts.titles[0])
}

func TestResolveRetriesUnparseableWithCorrectivePrompt(t *testing.T) {
	bsvc, escrow, _, _, _ := bountyFixture(t)
	bounty, _ := submittedBounty(t, bsvc)

	oracle := &fakeOracle{responses: []string{"I think this looks pretty good overall!", approvedVerdict}}
	rsvc := NewResolverService(bsvc.db, escrow, oracle, nil, nopNotifier{}, resolverConfig())

	require.NoError(t, rsvc.Resolve(context.Background(), bounty.ID))
	assert.Equal(t, 2, oracle.calls)

	resolution, err := bsvc.GetResolution(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionApproved, resolution.Status)
}

func TestResolveSkipsNonSubmitted(t *testing.T) {
	bsvc, escrow, _, _, _ := bountyFixture(t)
	poster := newSigner(t)
	bounty := createFunded(t, bsvc, poster)

	oracle := &fakeOracle{responses: []string{approvedVerdict}}
	rsvc := NewResolverService(bsvc.db, escrow, oracle, nil, nopNotifier{}, resolverConfig())

	require.NoError(t, rsvc.Resolve(context.Background(), bounty.ID))
	assert.Zero(t, oracle.calls)

	updated, err := bsvc.Get(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusOpen, updated.Status)
}

func TestResolveRecoversFromCrashAfterResolutionWrite(t *testing.T) {
	bsvc, escrow, _, _, _ := bountyFixture(t)
	bounty, _ := submittedBounty(t, bsvc)

	// Simulate a crash after the resolution row landed but before the
	// status flip: the row exists, the bounty is still submitted.
	require.NoError(t, bsvc.db.Create(&models.Resolution{
		ID:           "pre-existing",
		BountyID:     bounty.ID,
		SubmissionID: "sub",
		Status:       models.ResolutionApproved,
		Reasoning:    "recorded before crash",
		ResolverID:   ResolverID,
		PaymentTx:    "tx-before-crash",
	}).Error)

	oracle := &fakeOracle{responses: []string{rejectedVerdict}}
	rsvc := NewResolverService(bsvc.db, escrow, oracle, nil, nopNotifier{}, resolverConfig())

	require.NoError(t, rsvc.Resolve(context.Background(), bounty.ID))
	assert.Zero(t, oracle.calls, "must not re-judge a bounty with a verdict")

	updated, err := bsvc.Get(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusResolved, updated.Status)
}

func TestResolveReportsReputation(t *testing.T) {
	bsvc, escrow, _, _, _ := bountyFixture(t)
	bounty, hunter := submittedBounty(t, bsvc)

	outcomes := make(chan bool, 1)
	recorder := reputationFunc(func(_ context.Context, b *models.Bounty, s *models.Submission, approved bool) {
		if b.ID == bounty.ID && s.AgentWallet == hunter.wallet {
			outcomes <- approved
		}
	})

	oracle := &fakeOracle{responses: []string{approvedVerdict}}
	rsvc := NewResolverService(bsvc.db, escrow, oracle, recorder, nopNotifier{}, resolverConfig())
	require.NoError(t, rsvc.Resolve(context.Background(), bounty.ID))

	select {
	case approved := <-outcomes:
		assert.True(t, approved)
	case <-time.After(2 * time.Second):
		t.Fatal("reputation outcome never recorded")
	}
}

type reputationFunc func(ctx context.Context, bounty *models.Bounty, submission *models.Submission, approved bool)

func (f reputationFunc) RecordOutcome(ctx context.Context, b *models.Bounty, s *models.Submission, approved bool) {
	f(ctx, b, s, approved)
}

func TestSweepSubmitted(t *testing.T) {
	bsvc, escrow, _, queue, _ := bountyFixture(t)
	bounty, _ := submittedBounty(t, bsvc)

	rsvc := NewResolverService(bsvc.db, escrow, &fakeOracle{responses: []string{approvedVerdict}}, nil, nopNotifier{}, resolverConfig())
	queued, err := rsvc.SweepSubmitted(context.Background(), queue)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)
	assert.Contains(t, queue.ids, bounty.ID)
}
