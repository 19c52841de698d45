// Package user provides helpers for user registration on first contact.
package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/logging"
)

type userStore interface {
	Ensure(ctx context.Context, user domain.User) (bool, error)
}

// Registrar ensures users are present in the database and keeps their
// display names current on every /start.
type Registrar struct {
	users  userStore
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided users repository.
func NewRegistrar(users userStore, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		users:  users,
		logger: logger,
	}
}

// EnsureUser upserts the user as a free user if missing. It reports whether
// the user was created by this call.
func (r *Registrar) EnsureUser(ctx context.Context, userID int64, username, firstName string) (bool, error) {
	if r == nil || r.users == nil {
		return false, errors.New("user registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if userID == 0 {
		return false, errors.New("user id is required")
	}

	created, err := r.users.Ensure(ctx, domain.User{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
	})
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}

	if created {
		r.logger.WithFields(logging.Fields{
			"event":   "user_registered",
			"user_id": userID,
		}).Info("registered new user")
		return true, nil
	}

	r.logger.WithFields(logging.Fields{
		"event":   "user_seen",
		"user_id": userID,
	}).Debug("refreshed existing user")

	return false, nil
}
