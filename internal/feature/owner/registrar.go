// Package owner provides startup helpers for ensuring the configured bot owner
// exists in the database with admin membership.
package owner

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

type adminStore interface {
	Add(ctx context.Context, userID int64) (bool, error)
}

// Registrar bootstraps the configured bot owner record.
type Registrar struct {
	users  userStore
	admins adminStore
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided repositories.
func NewRegistrar(users userStore, admins adminStore, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		users:  users,
		admins: admins,
		logger: logger,
	}
}

// EnsureOwner upserts the configured owner user_id and grants it admin
// membership. Both steps are idempotent.
func (r *Registrar) EnsureOwner(ctx context.Context, ownerID int64) error {
	if r == nil || r.users == nil || r.admins == nil {
		return errors.New("owner registrar is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if ownerID == 0 {
		return errors.New("owner id is required")
	}

	createdUser, err := r.users.Ensure(ctx, domain.User{UserID: ownerID})
	if err != nil {
		return fmt.Errorf("ensure owner user: %w", err)
	}

	grantedAdmin, err := r.admins.Add(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("ensure owner admin: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":         "owner_bootstrap",
		"owner_id":      ownerID,
		"created_user":  createdUser,
		"granted_admin": grantedAdmin,
	}).Info("ensured bot owner")

	return nil
}
