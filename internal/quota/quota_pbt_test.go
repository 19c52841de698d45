package quota

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/jitterskin/logger/internal/domain"
)

func TestLimitMonotonicAfterExpiry(t *testing.T) {
	properties := gopter.NewProperties(nil)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tiers := []string{domain.TierFree, domain.TierWeek, domain.TierMonth, domain.TierForever}

	properties.Property("limit never grows as time passes", prop.ForAll(
		func(tierIdx int, expiryHours, earlier, gap int64) bool {
			expiry := start.Add(time.Duration(expiryHours) * time.Hour)
			user := domain.User{SubscriptionType: tiers[tierIdx], SubscriptionExpires: &expiry}
			t1 := start.Add(time.Duration(earlier) * time.Hour)
			t2 := t1.Add(time.Duration(gap) * time.Hour)
			return Limit(user, t2) <= Limit(user, t1)
		},
		gen.IntRange(0, len(tiers)-1),
		gen.Int64Range(-1000, 10000),
		gen.Int64Range(0, 10000),
		gen.Int64Range(0, 10000),
	))

	properties.Property("limit is base or premium", prop.ForAll(
		func(tierIdx int, expiryHours int64) bool {
			expiry := start.Add(time.Duration(expiryHours) * time.Hour)
			got := Limit(domain.User{SubscriptionType: tiers[tierIdx], SubscriptionExpires: &expiry}, start)
			return got == BaseLimit || got == PremiumLimit
		},
		gen.IntRange(0, len(tiers)-1),
		gen.Int64Range(-1000, 1000),
	))

	properties.TestingRun(t)
}
