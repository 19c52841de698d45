package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jitterskin/logger/internal/domain"
)

// AdminRepository manages the admin membership set.
type AdminRepository struct {
	db *gorm.DB
}

// NewAdminRepository constructs an AdminRepository.
func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// Add grants admin membership. A duplicate grant is a no-op and reports false.
func (r *AdminRepository) Add(ctx context.Context, userID int64) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.Admin{UserID: userID})
	if result.Error != nil {
		return false, fmt.Errorf("add admin: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Remove revokes admin membership and reports whether a row was removed.
func (r *AdminRepository) Remove(ctx context.Context, userID int64) (bool, error) {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Admin{})
	if result.Error != nil {
		return false, fmt.Errorf("remove admin: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// IsAdmin reports membership.
func (r *AdminRepository) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Admin{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return count > 0, nil
}

// List returns all admin user ids.
func (r *AdminRepository) List(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).Model(&domain.Admin{}).Order("user_id").Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return ids, nil
}
