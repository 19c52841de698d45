package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jitterskin/logger/internal/domain"
)

// UserRepository persists and retrieves users.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Ensure inserts the user when absent and otherwise refreshes the display
// fields. Subscription state and created_at are never touched. It reports
// whether a new row was created.
func (r *UserRepository) Ensure(ctx context.Context, user domain.User) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("user repository is not initialized")
	}
	if user.UserID == 0 {
		return false, errors.New("user_id is required")
	}

	record := domain.User{
		UserID:           user.UserID,
		Username:         user.Username,
		FirstName:        user.FirstName,
		SubscriptionType: domain.TierFree,
		CreatedAt:        time.Now().UTC(),
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		return false, fmt.Errorf("insert user: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("user_id = ?", user.UserID).
		Updates(map[string]interface{}{
			"username":   user.Username,
			"first_name": user.FirstName,
		}).Error
	if err != nil {
		return false, fmt.Errorf("refresh user: %w", err)
	}

	return false, nil
}

// Get fetches a user by Telegram user_id.
func (r *UserRepository) Get(ctx context.Context, userID int64) (domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if err != nil {
		return domain.User{}, fmt.Errorf("find user %d: %w", userID, notFound(err))
	}
	return user, nil
}

// SetSubscription overwrites the tier and expiry of an existing user.
func (r *UserRepository) SetSubscription(ctx context.Context, userID int64, tier string, expires *time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"subscription_type":    tier,
			"subscription_expires": expires,
		})
	if result.Error != nil {
		return fmt.Errorf("update subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update subscription for %d: %w", userID, domain.ErrNotFound)
	}
	return nil
}

// ListRecent returns up to limit users, newest first.
func (r *UserRepository) ListRecent(ctx context.Context, limit int) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("user_id DESC").Limit(limit).Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
