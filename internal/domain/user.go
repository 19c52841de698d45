// Package domain defines the shared record types and error values.
package domain

import "time"

// Subscription tiers.
const (
	TierFree    = "free"
	TierWeek    = "week"
	TierMonth   = "month"
	TierForever = "forever"
)

// User represents a Telegram user registered with the bot.
type User struct {
	UserID              int64      `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	Username            string     `gorm:"column:username" json:"username"`
	FirstName           string     `gorm:"column:first_name" json:"first_name"`
	SubscriptionType    string     `gorm:"column:subscription_type;size:16;not null;default:free" json:"subscription_type"`
	SubscriptionExpires *time.Time `gorm:"column:subscription_expires" json:"subscription_expires,omitempty"`
	CreatedAt           time.Time  `gorm:"column:created_at" json:"created_at"`
}

// TableName pins the table name used by the store.
func (User) TableName() string {
	return "users"
}

// ValidPaidTier reports whether tier can be granted or purchased.
func ValidPaidTier(tier string) bool {
	switch tier {
	case TierWeek, TierMonth, TierForever:
		return true
	default:
		return false
	}
}

// Admin marks a Telegram user as a bot administrator.
type Admin struct {
	UserID int64 `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
}

// TableName pins the table name used by the store.
func (Admin) TableName() string {
	return "admins"
}
