package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osint-market/models"
)

func repFixture(t *testing.T) *ReputationService {
	t.Helper()
	return NewReputationService(testDB(t))
}

func outcome(svc *ReputationService, wallet string, reward float64, approved bool) {
	claimed := time.Now().Add(-2 * time.Hour)
	svc.RecordOutcome(context.Background(), &models.Bounty{
		ID:           uuid.NewString(),
		RewardAmount: reward,
		RewardToken:  "SOL",
		ClaimedAt:    &claimed,
	}, &models.Submission{
		ID:          uuid.NewString(),
		AgentWallet: wallet,
		CreatedAt:   time.Now(),
	}, approved)
}

func TestRecordOutcomeAggregates(t *testing.T) {
	svc := repFixture(t)
	wallet := "HunterWallet1111111111111111111111111111111"

	outcome(svc, wallet, 5, true)
	outcome(svc, wallet, 3, true)
	outcome(svc, wallet, 2, false)

	profile, err := svc.Profile(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, 3, profile.TotalBounties)
	assert.Equal(t, 2, profile.SuccessfulBounties)
	assert.Equal(t, 1, profile.FailedBounties)
	assert.Equal(t, 8.0, profile.TotalEarnings)
	assert.Equal(t, 0, profile.CurrentStreak)
	assert.Equal(t, 2, profile.BestStreak)
	assert.InDelta(t, 2.0/3.0, profile.SuccessRate, 1e-9)
}

func TestRankLadder(t *testing.T) {
	cases := []struct {
		total, successful int
		want              string
	}{
		{0, 0, models.RankNovice},
		{2, 2, models.RankNovice},
		{4, 3, models.RankHunter},
		{12, 10, models.RankExpert},
		{30, 27, models.RankElite},
		{60, 58, models.RankLegend},
	}
	for _, tc := range cases {
		rep := &models.HunterReputation{TotalBounties: tc.total, SuccessfulBounties: tc.successful}
		assert.Equal(t, tc.want, RankFor(rep), "total=%d successful=%d", tc.total, tc.successful)
	}
}

func TestBadges(t *testing.T) {
	svc := repFixture(t)
	wallet := "HunterWallet1111111111111111111111111111111"

	// First success on a 10 SOL bounty, finished inside an hour.
	claimed := time.Now().Add(-30 * time.Minute)
	svc.RecordOutcome(context.Background(), &models.Bounty{
		ID:           uuid.NewString(),
		RewardAmount: 10,
		RewardToken:  "SOL",
		ClaimedAt:    &claimed,
	}, &models.Submission{
		ID:          uuid.NewString(),
		AgentWallet: wallet,
		CreatedAt:   time.Now(),
	}, true)

	profile, err := svc.Profile(context.Background(), wallet)
	require.NoError(t, err)

	types := make([]string, 0, len(profile.Badges))
	for _, b := range profile.Badges {
		types = append(types, b.BadgeType)
	}
	assert.ElementsMatch(t, []string{models.BadgeFirstBlood, models.BadgeSpeedDemon, models.BadgeWhaleHunter}, types)
}

func TestStreakBadgesAwardedOnce(t *testing.T) {
	svc := repFixture(t)
	wallet := "HunterWallet1111111111111111111111111111111"

	for i := 0; i < 6; i++ {
		outcome(svc, wallet, 1, true)
	}

	profile, err := svc.Profile(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, 6, profile.CurrentStreak)

	streak5 := 0
	for _, b := range profile.Badges {
		if b.BadgeType == models.BadgeStreak5 {
			streak5++
		}
	}
	assert.Equal(t, 1, streak5)
}

func TestLeaderboardOrdersByEarnings(t *testing.T) {
	svc := repFixture(t)

	outcome(svc, "WalletAAA111111111111111111111111111111111A", 5, true)
	outcome(svc, "WalletBBB111111111111111111111111111111111B", 20, true)
	outcome(svc, "WalletCCC111111111111111111111111111111111C", 1, false)

	board, err := svc.Leaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, "WalletBBB111111111111111111111111111111111B", board[0].Wallet)
	assert.Equal(t, 20.0, board[0].TotalEarnings)
}
