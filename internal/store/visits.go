package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jitterskin/logger/internal/domain"
)

// insertForActiveLogger writes the visit only while the logger is still active.
const insertForActiveLogger = `
INSERT INTO ip_logs (logger_id, ip_address, user_agent, telegram_user_id, telegram_username, created_at)
SELECT id, ?, ?, ?, ?, ? FROM loggers WHERE id = ? AND is_active = 1`

// VisitRepository persists ip_logs rows.
type VisitRepository struct {
	db *gorm.DB
}

// NewVisitRepository constructs a VisitRepository.
func NewVisitRepository(db *gorm.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// Append records visit against loggerID. It reports false without writing
// when the logger is missing or inactive.
func (r *VisitRepository) Append(ctx context.Context, loggerID int64, visit domain.IPLog) (bool, error) {
	capturedAt := visit.CreatedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	result := r.db.WithContext(ctx).Exec(insertForActiveLogger,
		visit.IPAddress,
		visit.UserAgent,
		visit.TelegramUserID,
		visit.TelegramUsername,
		capturedAt,
		loggerID,
	)
	if result.Error != nil {
		return false, fmt.Errorf("insert visit: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Stats returns the total visit count of loggerID and the limit most recent
// visits, newest first.
func (r *VisitRepository) Stats(ctx context.Context, loggerID int64, limit int) (domain.LoggerStats, error) {
	var stats domain.LoggerStats

	if err := r.db.WithContext(ctx).Model(&domain.IPLog{}).Where("logger_id = ?", loggerID).Count(&stats.TotalCount).Error; err != nil {
		return domain.LoggerStats{}, fmt.Errorf("count visits: %w", err)
	}

	err := r.db.WithContext(ctx).
		Where("logger_id = ?", loggerID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&stats.Recent).Error
	if err != nil {
		return domain.LoggerStats{}, fmt.Errorf("recent visits: %w", err)
	}

	return stats, nil
}

// ListRecent returns up to limit visits across all loggers, newest first.
func (r *VisitRepository) ListRecent(ctx context.Context, limit int) ([]domain.IPLog, error) {
	var visits []domain.IPLog
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&visits).Error
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	return visits, nil
}
