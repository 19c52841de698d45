// Package tracker manages tracking links (loggers): creation under quota,
// listing, soft deletion and visit statistics.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/logging"
	"github.com/jitterskin/logger/internal/quota"
	"github.com/jitterskin/logger/internal/store"
)

const (
	// RecentVisitLimit is the number of visits returned by Stats.
	RecentVisitLimit = 10

	tokenLength      = 8
	maxTokenAttempts = 5
)

// ErrInvalidName is returned for empty or overlong logger names.
var ErrInvalidName = fmt.Errorf("logger name must be 1-%d characters", domain.MaxLoggerNameLength)

type userReader interface {
	Get(ctx context.Context, userID int64) (domain.User, error)
}

type loggerStore interface {
	CreateWithinQuota(ctx context.Context, userID int64, token, name string, limit int) (domain.Logger, error)
	ListByOwner(ctx context.Context, userID int64) ([]domain.Logger, error)
	CountActive(ctx context.Context, userID int64) (int64, error)
	GetByID(ctx context.Context, id int64) (domain.Logger, error)
	GetActiveByToken(ctx context.Context, token string) (domain.Logger, error)
	Deactivate(ctx context.Context, id int64) (bool, error)
}

type visitStats interface {
	Stats(ctx context.Context, loggerID int64, limit int) (domain.LoggerStats, error)
}

type adminChecker interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// QuotaSummary describes how many loggers a user has and may have.
type QuotaSummary struct {
	Tier   string
	Active bool
	Used   int64
	Limit  int
}

// Registry is the entry point for logger CRUD scoped to an owning user.
type Registry struct {
	users    userReader
	loggers  loggerStore
	visits   visitStats
	admins   adminChecker
	logger   *logrus.Entry
	now      func() time.Time
	newToken func() string
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for quota decisions.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithTokenGenerator overrides public token generation.
func WithTokenGenerator(gen func() string) Option {
	return func(r *Registry) {
		if gen != nil {
			r.newToken = gen
		}
	}
}

// NewRegistry constructs a Registry.
func NewRegistry(users userReader, loggers loggerStore, visits visitStats, admins adminChecker, logger *logrus.Entry, opts ...Option) *Registry {
	if logger == nil {
		logger = logging.Logger()
	}

	r := &Registry{
		users:    users,
		loggers:  loggers,
		visits:   visits,
		admins:   admins,
		logger:   logger,
		now:      time.Now,
		newToken: NewToken,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewToken returns an 8-character hex slice of a random UUID.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:tokenLength]
}

// Create inserts a new active logger for owner unless the owner's quota is
// exhausted. The quota check and the insert run as one statement.
func (r *Registry) Create(ctx context.Context, owner int64, name string) (domain.Logger, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > domain.MaxLoggerNameLength {
		return domain.Logger{}, ErrInvalidName
	}

	user, err := r.users.Get(ctx, owner)
	if err != nil {
		return domain.Logger{}, err
	}
	limit := quota.Limit(user, r.now())

	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		created, err := r.loggers.CreateWithinQuota(ctx, owner, r.newToken(), name, limit)
		switch {
		case err == nil:
			r.logger.WithFields(logging.Fields{
				"event":     "logger_created",
				"user_id":   owner,
				"logger_id": created.ID,
				"limit":     limit,
			}).Info("created logger")
			return created, nil
		case errors.Is(err, store.ErrDuplicateToken):
			r.logger.WithFields(logging.Fields{
				"event":   "logger_token_collision",
				"user_id": owner,
				"attempt": attempt,
			}).Warn("logger token collision, retrying")
			continue
		case errors.Is(err, domain.ErrQuotaExceeded):
			r.logger.WithFields(logging.Fields{
				"event":   "logger_quota_exceeded",
				"user_id": owner,
				"limit":   limit,
			}).Info("logger quota exceeded")
			return domain.Logger{}, err
		default:
			return domain.Logger{}, fmt.Errorf("create logger: %w", err)
		}
	}

	return domain.Logger{}, fmt.Errorf("create logger: no unique token after %d attempts", maxTokenAttempts)
}

// List returns every logger of owner, newest first, including inactive ones.
func (r *Registry) List(ctx context.Context, owner int64) ([]domain.Logger, error) {
	return r.loggers.ListByOwner(ctx, owner)
}

// ListActive returns the active loggers of owner, newest first.
func (r *Registry) ListActive(ctx context.Context, owner int64) ([]domain.Logger, error) {
	all, err := r.List(ctx, owner)
	if err != nil {
		return nil, err
	}

	active := make([]domain.Logger, 0, len(all))
	for _, l := range all {
		if l.IsActive {
			active = append(active, l)
		}
	}
	return active, nil
}

// Quota reports the owner's tier, subscription state and logger usage.
func (r *Registry) Quota(ctx context.Context, owner int64) (QuotaSummary, error) {
	user, err := r.users.Get(ctx, owner)
	if err != nil {
		return QuotaSummary{}, err
	}

	used, err := r.loggers.CountActive(ctx, owner)
	if err != nil {
		return QuotaSummary{}, err
	}

	now := r.now()
	return QuotaSummary{
		Tier:   user.SubscriptionType,
		Active: quota.Active(user, now),
		Used:   used,
		Limit:  quota.Limit(user, now),
	}, nil
}

// Owner fetches a logger by internal id, active or not, so callers can check
// who owns it.
func (r *Registry) Owner(ctx context.Context, id int64) (domain.Logger, error) {
	return r.loggers.GetByID(ctx, id)
}

// Lookup fetches an active logger by public token.
func (r *Registry) Lookup(ctx context.Context, token string) (domain.Logger, error) {
	return r.loggers.GetActiveByToken(ctx, token)
}

// CanManage reports whether requester owns the logger or is an admin.
func (r *Registry) CanManage(ctx context.Context, l domain.Logger, requester int64) bool {
	if l.UserID == requester {
		return true
	}

	isAdmin, err := r.admins.IsAdmin(ctx, requester)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "admin_check_error",
			"user_id": requester,
		}).WithError(err).Warn("admin check failed")
		return false
	}
	return isAdmin
}

// Deactivate soft-deletes the logger when requester owns it or is an admin.
// It returns false for missing loggers, foreign loggers, loggers that are
// already inactive and store failures.
func (r *Registry) Deactivate(ctx context.Context, id, requester int64) bool {
	fields := logging.Fields{
		"event":     "logger_deactivate",
		"logger_id": id,
		"user_id":   requester,
	}

	l, err := r.loggers.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.WithFields(fields).WithError(err).Error("load logger failed")
		}
		return false
	}

	if !r.CanManage(ctx, l, requester) {
		r.logger.WithFields(fields).Warn("deactivate denied")
		return false
	}

	changed, err := r.loggers.Deactivate(ctx, id)
	if err != nil {
		r.logger.WithFields(fields).WithError(err).Error("deactivate logger failed")
		return false
	}
	if changed {
		r.logger.WithFields(fields).Info("deactivated logger")
	}
	return changed
}

// Stats returns the total visit count and the most recent visits of a logger.
func (r *Registry) Stats(ctx context.Context, id int64) (domain.LoggerStats, error) {
	return r.visits.Stats(ctx, id, RecentVisitLimit)
}
