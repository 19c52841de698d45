package domain

import "time"

// MaxLoggerNameLength bounds the display name of a tracking link, in runes.
const MaxLoggerNameLength = 50

// Logger is a shareable tracking link owned by a user. UniqueID is the public
// token embedded in links; ID is internal.
type Logger struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"column:user_id;index;not null" json:"user_id"`
	UniqueID  string    `gorm:"column:unique_id;uniqueIndex;size:32;not null" json:"unique_id"`
	Name      string    `gorm:"column:name;size:200" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

// TableName pins the table name used by the store.
func (Logger) TableName() string {
	return "loggers"
}

// IPLog is a single recorded visit to a logger. Rows are never updated.
type IPLog struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	LoggerID         int64     `gorm:"column:logger_id;index;not null" json:"logger_id"`
	IPAddress        string    `gorm:"column:ip_address" json:"ip_address"`
	UserAgent        string    `gorm:"column:user_agent" json:"user_agent"`
	TelegramUserID   *int64    `gorm:"column:telegram_user_id" json:"telegram_user_id,omitempty"`
	TelegramUsername *string   `gorm:"column:telegram_username" json:"telegram_username,omitempty"`
	CreatedAt        time.Time `gorm:"column:created_at;index" json:"created_at"`
}

// TableName pins the table name used by the store.
func (IPLog) TableName() string {
	return "ip_logs"
}

// LoggerStats summarizes the visit history of one logger.
type LoggerStats struct {
	TotalCount int64
	Recent     []IPLog
}
