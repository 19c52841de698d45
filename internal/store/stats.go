package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jitterskin/logger/internal/domain"
)

// Totals holds table row counts for the admin panel.
type Totals struct {
	Users   int64
	Loggers int64
	Visits  int64
}

// StatsProvider exposes row counts without leaking gorm to callers.
type StatsProvider struct {
	db *gorm.DB
}

// NewStatsProvider constructs a StatsProvider.
func NewStatsProvider(db *gorm.DB) *StatsProvider {
	return &StatsProvider{db: db}
}

// Totals counts users, loggers and ip_logs rows.
func (p *StatsProvider) Totals(ctx context.Context) (Totals, error) {
	if p == nil || p.db == nil {
		return Totals{}, errors.New("stats provider is not initialized")
	}

	var totals Totals
	counts := []struct {
		name  string
		model interface{}
		dst   *int64
	}{
		{"users", &domain.User{}, &totals.Users},
		{"loggers", &domain.Logger{}, &totals.Loggers},
		{"ip_logs", &domain.IPLog{}, &totals.Visits},
	}

	for _, c := range counts {
		if err := p.db.WithContext(ctx).Model(c.model).Count(c.dst).Error; err != nil {
			return Totals{}, fmt.Errorf("count %s: %w", c.name, err)
		}
	}

	return totals, nil
}

// RecentUsers returns up to limit users, newest first.
func (p *StatsProvider) RecentUsers(ctx context.Context, limit int) ([]domain.User, error) {
	return NewUserRepository(p.db).ListRecent(ctx, limit)
}

// RecentLoggers returns up to limit loggers of any owner, newest first.
func (p *StatsProvider) RecentLoggers(ctx context.Context, limit int) ([]domain.Logger, error) {
	return NewLoggerRepository(p.db).ListRecent(ctx, limit)
}

// RecentVisits returns up to limit visits of any logger, newest first.
func (p *StatsProvider) RecentVisits(ctx context.Context, limit int) ([]domain.IPLog, error) {
	return NewVisitRepository(p.db).ListRecent(ctx, limit)
}
