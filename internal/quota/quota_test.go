package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jitterskin/logger/internal/domain"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestLimit(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		user domain.User
		want int
	}{
		{"free without expiry", domain.User{SubscriptionType: domain.TierFree}, BaseLimit},
		{"free with future expiry", domain.User{SubscriptionType: domain.TierFree, SubscriptionExpires: timePtr(now.Add(time.Hour))}, BaseLimit},
		{"month active", domain.User{SubscriptionType: domain.TierMonth, SubscriptionExpires: timePtr(now.Add(time.Hour))}, PremiumLimit},
		{"month expired", domain.User{SubscriptionType: domain.TierMonth, SubscriptionExpires: timePtr(now.Add(-time.Hour))}, BaseLimit},
		{"expiry equal to now", domain.User{SubscriptionType: domain.TierWeek, SubscriptionExpires: timePtr(now)}, BaseLimit},
		{"paid tier without expiry", domain.User{SubscriptionType: domain.TierForever}, BaseLimit},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Limit(tt.user, now))
		})
	}
}

func TestLimitNonIncreasingAfterExpiry(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	user := domain.User{SubscriptionType: domain.TierWeek, SubscriptionExpires: timePtr(start.Add(7 * day))}

	prev := Limit(user, start)
	for h := 1; h <= 24*30; h++ {
		cur := Limit(user, start.Add(time.Duration(h)*time.Hour))
		require.LessOrEqual(t, cur, prev, "limit increased at hour %d", h)
		prev = cur
	}
	assert.Equal(t, BaseLimit, prev)
}

func TestMonthGrantWindow(t *testing.T) {
	grantedAt := time.Date(2025, 5, 10, 8, 30, 0, 0, time.UTC)
	expiry, err := Expiry(domain.TierMonth, grantedAt)
	require.NoError(t, err)

	user := domain.User{SubscriptionType: domain.TierMonth, SubscriptionExpires: &expiry}

	assert.Equal(t, PremiumLimit, Limit(user, grantedAt.Add(15*day)))
	assert.Equal(t, BaseLimit, Limit(user, grantedAt.Add(31*day)))
}

func TestDuration(t *testing.T) {
	week, err := Duration(domain.TierWeek)
	require.NoError(t, err)
	assert.Equal(t, 7*day, week)

	forever, err := Duration(domain.TierForever)
	require.NoError(t, err)
	assert.Equal(t, 36500*day, forever)

	_, err = Duration(domain.TierFree)
	assert.Error(t, err)
	_, err = Duration("lifetime")
	assert.Error(t, err)
}
