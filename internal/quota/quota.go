// Package quota computes subscription state and the active-logger limit of a user.
package quota

import (
	"fmt"
	"time"

	"github.com/jitterskin/logger/internal/domain"
)

const (
	// BaseLimit applies to free users and to paid users whose subscription expired.
	BaseLimit = 3
	// PremiumLimit applies while a paid subscription is active.
	PremiumLimit = 10
)

const day = 24 * time.Hour

var durations = map[string]time.Duration{
	domain.TierWeek:    7 * day,
	domain.TierMonth:   30 * day,
	domain.TierForever: 36500 * day,
}

// Active reports whether the user's subscription expiry lies after now.
// The tier label is not consulted.
func Active(user domain.User, now time.Time) bool {
	return user.SubscriptionExpires != nil && user.SubscriptionExpires.After(now)
}

// Limit returns the maximum number of simultaneously active loggers for user at now.
func Limit(user domain.User, now time.Time) int {
	if Active(user, now) && user.SubscriptionType != domain.TierFree {
		return PremiumLimit
	}
	return BaseLimit
}

// Duration returns the subscription window granted for tier.
func Duration(tier string) (time.Duration, error) {
	d, ok := durations[tier]
	if !ok {
		return 0, fmt.Errorf("unknown subscription tier %q", tier)
	}
	return d, nil
}

// Expiry returns the expiry of a tier granted at now. Remaining time of a
// previous subscription is not carried over.
func Expiry(tier string, now time.Time) (time.Time, error) {
	d, err := Duration(tier)
	if err != nil {
		return time.Time{}, err
	}
	return now.UTC().Add(d), nil
}
