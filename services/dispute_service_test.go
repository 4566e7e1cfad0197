package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osint-market/apperr"
	"osint-market/models"
)

// resolvedRejected drives a bounty to a rejected resolution so the
// hunter has something to dispute.
func resolvedRejected(t *testing.T, bsvc *BountyService, escrow *EscrowService) (*models.Bounty, *signer) {
	t.Helper()
	bounty, hunter := submittedBounty(t, bsvc)

	oracle := &fakeOracle{responses: []string{rejectedVerdict}}
	rsvc := NewResolverService(bsvc.db, escrow, oracle, nil, nopNotifier{}, resolverConfig())
	require.NoError(t, rsvc.Resolve(context.Background(), bounty.ID))
	return bounty, hunter
}

func openDispute(t *testing.T, dsvc *DisputeService, bountyID string, hunter *signer) *models.Dispute {
	t.Helper()
	ch := dsvc.authenticator.IssueChallenge(hunter.wallet)
	dispute, err := dsvc.Open(context.Background(), bountyID, hunter.wallet, ch.Message, hunter.sign(ch.Message), &OpenDisputeRequest{
		Reason:   "The verdict ignored the archived capture proving the attribution.",
		Evidence: []string{"https://archive.example/capture/9"},
	})
	require.NoError(t, err)
	return dispute
}

func TestOpenDispute(t *testing.T) {
	bsvc, escrow, _, _, authenticator := bountyFixture(t)
	bounty, hunter := resolvedRejected(t, bsvc, escrow)
	dsvc := NewDisputeService(bsvc.db, escrow, authenticator, nopNotifier{})

	dispute := openDispute(t, dsvc, bounty.ID, hunter)
	assert.Equal(t, models.DisputeStatusPending, dispute.Status)
	assert.True(t, dispute.Active())

	updated, err := bsvc.Get(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusDisputed, updated.Status)
}

func TestOpenDisputeValidation(t *testing.T) {
	bsvc, escrow, _, _, authenticator := bountyFixture(t)
	bounty, hunter := resolvedRejected(t, bsvc, escrow)
	dsvc := NewDisputeService(bsvc.db, escrow, authenticator, nopNotifier{})

	ch := authenticator.IssueChallenge(hunter.wallet)
	sig := hunter.sign(ch.Message)

	// Reason too short.
	_, err := dsvc.Open(context.Background(), bounty.ID, hunter.wallet, ch.Message, sig, &OpenDisputeRequest{Reason: "unfair"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// Only the submitter may dispute.
	stranger := newSigner(t)
	chS := authenticator.IssueChallenge(stranger.wallet)
	_, err = dsvc.Open(context.Background(), bounty.ID, stranger.wallet, chS.Message, stranger.sign(chS.Message), &OpenDisputeRequest{
		Reason: strings.Repeat("this ruling is wrong ", 3),
	})
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))

	// One pending dispute at a time.
	openDispute(t, dsvc, bounty.ID, hunter)
	ch2 := authenticator.IssueChallenge(hunter.wallet)
	_, err = dsvc.Open(context.Background(), bounty.ID, hunter.wallet, ch2.Message, hunter.sign(ch2.Message), &OpenDisputeRequest{
		Reason: strings.Repeat("this ruling is wrong ", 3),
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestOpenDisputeOnlyResolvedBounties(t *testing.T) {
	bsvc, escrow, _, _, authenticator := bountyFixture(t)
	bounty, hunter := submittedBounty(t, bsvc)
	dsvc := NewDisputeService(bsvc.db, escrow, authenticator, nopNotifier{})

	ch := authenticator.IssueChallenge(hunter.wallet)
	_, err := dsvc.Open(context.Background(), bounty.ID, hunter.wallet, ch.Message, hunter.sign(ch.Message), &OpenDisputeRequest{
		Reason: strings.Repeat("this ruling is wrong ", 3),
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestResolveDisputeUpheldPaysHunter(t *testing.T) {
	bsvc, escrow, rail, _, authenticator := bountyFixture(t)
	bounty, hunter := resolvedRejected(t, bsvc, escrow)
	dsvc := NewDisputeService(bsvc.db, escrow, authenticator, nopNotifier{})
	dispute := openDispute(t, dsvc, bounty.ID, hunter)

	// The rejection refunded the poster; upholding detects that and
	// skips the double payout.
	ruled, err := dsvc.Resolve(context.Background(), dispute.ID, "admin-1", &ResolveDisputeRequest{
		Outcome:    models.DisputeStatusUpheld,
		AdminNotes: "Capture evidence is conclusive.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusUpheld, ruled.Status)
	assert.Equal(t, "admin-1", ruled.ResolvedBy)
	assert.NotNil(t, ruled.ResolvedAt)
	// Last transfer remains the original refund, no payout was sent.
	assert.Equal(t, bounty.PosterWallet, rail.lastDest)

	updated, err := bsvc.Get(context.Background(), bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusResolved, updated.Status)
}

func TestResolveDisputeDismissed(t *testing.T) {
	bsvc, escrow, _, _, authenticator := bountyFixture(t)
	bounty, hunter := resolvedRejected(t, bsvc, escrow)
	dsvc := NewDisputeService(bsvc.db, escrow, authenticator, nopNotifier{})
	dispute := openDispute(t, dsvc, bounty.ID, hunter)

	ruled, err := dsvc.Resolve(context.Background(), dispute.ID, "admin-1", &ResolveDisputeRequest{
		Outcome: models.DisputeStatusDismissed,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusDismissed, ruled.Status)

	// A ruled dispute cannot be ruled again.
	_, err = dsvc.Resolve(context.Background(), dispute.ID, "admin-2", &ResolveDisputeRequest{
		Outcome: models.DisputeStatusUpheld,
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}
