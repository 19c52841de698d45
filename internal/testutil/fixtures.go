package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/store"
)

var tokenSeq atomic.Int64

// UserOption customizes a fixture user.
type UserOption func(*domain.User)

// WithSubscription sets tier and expiry.
func WithSubscription(tier string, expires time.Time) UserOption {
	return func(u *domain.User) {
		u.SubscriptionType = tier
		u.SubscriptionExpires = &expires
	}
}

// WithUsername sets the username.
func WithUsername(username string) UserOption {
	return func(u *domain.User) {
		u.Username = username
	}
}

// TestUser inserts a free user with the given id.
func TestUser(t *testing.T, m *store.Manager, userID int64, opts ...UserOption) domain.User {
	t.Helper()

	user := domain.User{UserID: userID, Username: fmt.Sprintf("user%d", userID), FirstName: "Test"}
	for _, opt := range opts {
		opt(&user)
	}

	ctx := context.Background()
	if _, err := m.Users().Ensure(ctx, user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	if user.SubscriptionType != "" && user.SubscriptionType != domain.TierFree {
		if err := m.Users().SetSubscription(ctx, userID, user.SubscriptionType, user.SubscriptionExpires); err != nil {
			t.Fatalf("failed to set test subscription: %v", err)
		}
	}

	stored, err := m.Users().Get(ctx, userID)
	if err != nil {
		t.Fatalf("failed to reload test user: %v", err)
	}
	return stored
}

// TestLogger inserts an active logger for ownerID with a unique token.
func TestLogger(t *testing.T, m *store.Manager, ownerID int64, name string) domain.Logger {
	t.Helper()

	token := fmt.Sprintf("tk%06d", tokenSeq.Add(1))
	l, err := m.Loggers().CreateWithinQuota(context.Background(), ownerID, token, name, 1<<20)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return l
}
