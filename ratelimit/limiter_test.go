package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"osint-market/config"
)

func testConfigs() map[string]config.RateLimit {
	return map[string]config.RateLimit{
		"bounty-create": {Window: time.Minute, MaxRequests: 5},
		"api-general":   {Window: time.Minute, MaxRequests: 100},
	}
}

func TestCheckCapsWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiterWithClock(testConfigs(), func() time.Time { return now })

	for i := 1; i <= 5; i++ {
		res := l.Check("wallet:abc", "bounty-create")
		assert.True(t, res.Allowed, "request %d should pass", i)
		assert.Equal(t, 5-i, res.Remaining)
	}

	// 6th request in the same window is rejected with a positive retry-after.
	res := l.Check("wallet:abc", "bounty-create")
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// Next window: allowed again.
	now = now.Add(61 * time.Second)
	res = l.Check("wallet:abc", "bounty-create")
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestIdentifiersAndActionsAreIndependent(t *testing.T) {
	now := time.Now()
	l := NewLimiterWithClock(testConfigs(), func() time.Time { return now })

	for i := 0; i < 5; i++ {
		l.Check("wallet:abc", "bounty-create")
	}
	assert.False(t, l.Check("wallet:abc", "bounty-create").Allowed)
	assert.True(t, l.Check("wallet:other", "bounty-create").Allowed)
	assert.True(t, l.Check("wallet:abc", "api-general").Allowed)
}

func TestUnknownActionUsesGeneralLimit(t *testing.T) {
	now := time.Now()
	l := NewLimiterWithClock(testConfigs(), func() time.Time { return now })

	res := l.Check("ip:1.2.3.4", "never-configured")
	assert.True(t, res.Allowed)
	assert.Equal(t, 99, res.Remaining)
}

func TestEvictDropsExpiredEntries(t *testing.T) {
	now := time.Now()
	l := NewLimiterWithClock(testConfigs(), func() time.Time { return now })

	l.Check("wallet:a", "bounty-create")
	l.Check("wallet:b", "bounty-create")
	assert.Equal(t, 2, l.Len())

	assert.Zero(t, l.Evict(), "live entries must survive")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, l.Evict())
	assert.Zero(t, l.Len())
}
