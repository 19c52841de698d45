package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jitterskin/logger/internal/domain"
)

// ErrDuplicateToken reports a unique_id collision on insert.
var ErrDuplicateToken = errors.New("duplicate logger token")

// insertWithinQuota inserts only while the owner has fewer than limit active
// loggers, so the count check and the insert cannot interleave.
const insertWithinQuota = `
INSERT INTO loggers (user_id, unique_id, name, created_at, is_active)
SELECT ?, ?, ?, ?, 1
WHERE (SELECT COUNT(*) FROM loggers WHERE user_id = ? AND is_active = 1) < ?`

// LoggerRepository persists tracking links.
type LoggerRepository struct {
	db *gorm.DB
}

// NewLoggerRepository constructs a LoggerRepository.
func NewLoggerRepository(db *gorm.DB) *LoggerRepository {
	return &LoggerRepository{db: db}
}

// CreateWithinQuota inserts an active logger for userID unless the owner
// already has limit active loggers, in which case domain.ErrQuotaExceeded is
// returned. A token collision yields ErrDuplicateToken.
func (r *LoggerRepository) CreateWithinQuota(ctx context.Context, userID int64, token, name string, limit int) (domain.Logger, error) {
	now := time.Now().UTC()

	result := r.db.WithContext(ctx).Exec(insertWithinQuota, userID, token, name, now, userID, limit)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return domain.Logger{}, ErrDuplicateToken
		}
		return domain.Logger{}, fmt.Errorf("insert logger: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.Logger{}, domain.ErrQuotaExceeded
	}

	var created domain.Logger
	if err := r.db.WithContext(ctx).Where("unique_id = ?", token).First(&created).Error; err != nil {
		return domain.Logger{}, fmt.Errorf("reload logger: %w", notFound(err))
	}

	return created, nil
}

// ListByOwner returns every logger of userID, newest first, active or not.
func (r *LoggerRepository) ListByOwner(ctx context.Context, userID int64) ([]domain.Logger, error) {
	var loggers []domain.Logger
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&loggers).Error
	if err != nil {
		return nil, fmt.Errorf("list loggers: %w", err)
	}
	return loggers, nil
}

// CountActive returns the number of active loggers owned by userID.
func (r *LoggerRepository) CountActive(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Logger{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count loggers: %w", err)
	}
	return count, nil
}

// GetByID fetches a logger by internal id regardless of its active flag.
func (r *LoggerRepository) GetByID(ctx context.Context, id int64) (domain.Logger, error) {
	var l domain.Logger
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return domain.Logger{}, fmt.Errorf("find logger %d: %w", id, notFound(err))
	}
	return l, nil
}

// GetActiveByToken fetches an active logger by its public token.
func (r *LoggerRepository) GetActiveByToken(ctx context.Context, token string) (domain.Logger, error) {
	var l domain.Logger
	err := r.db.WithContext(ctx).Where("unique_id = ? AND is_active = ?", token, true).First(&l).Error
	if err != nil {
		return domain.Logger{}, fmt.Errorf("find logger by token: %w", notFound(err))
	}
	return l, nil
}

// Deactivate clears the active flag and reports whether it was set before.
func (r *LoggerRepository) Deactivate(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Logger{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		return false, fmt.Errorf("deactivate logger: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListRecent returns up to limit loggers across all owners, newest first.
func (r *LoggerRepository) ListRecent(ctx context.Context, limit int) ([]domain.Logger, error) {
	var loggers []domain.Logger
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&loggers).Error
	if err != nil {
		return nil, fmt.Errorf("list loggers: %w", err)
	}
	return loggers, nil
}
