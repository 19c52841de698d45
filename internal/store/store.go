// Package store encapsulates the SQLite database handle and the table repositories.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jitterskin/logger/internal/domain"
)

// MemoryPath opens a private in-memory database; used by tests.
const MemoryPath = ":memory:"

const busyTimeoutMillis = 5000

// Manager owns the gorm handle for the SQLite file.
type Manager struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path, caps the pool at one
// connection and creates the schema when absent.
func Open(ctx context.Context, path string, logger *logrus.Entry) (*Manager, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger:         newGormLogger(logger),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// SQLite serializes writers; one connection also keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)

	m := &Manager{db: db}
	if err := m.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return m, nil
}

// Migrate creates the users, loggers, ip_logs and admins tables idempotently.
func (m *Manager) Migrate(ctx context.Context) error {
	if m == nil || m.db == nil {
		return errors.New("store manager is not initialized")
	}

	if err := m.db.WithContext(ctx).AutoMigrate(
		&domain.User{},
		&domain.Logger{},
		&domain.IPLog{},
		&domain.Admin{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	return nil
}

// Ping verifies the database connection.
func (m *Manager) Ping(ctx context.Context) error {
	if m == nil || m.db == nil {
		return errors.New("store manager is not initialized")
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite handle: %w", err)
	}

	return sqlDB.PingContext(ctx)
}

// DB returns the underlying gorm handle.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Users returns the users repository.
func (m *Manager) Users() *UserRepository {
	return &UserRepository{db: m.db}
}

// Loggers returns the loggers repository.
func (m *Manager) Loggers() *LoggerRepository {
	return &LoggerRepository{db: m.db}
}

// Visits returns the ip_logs repository.
func (m *Manager) Visits() *VisitRepository {
	return &VisitRepository{db: m.db}
}

// Admins returns the admins repository.
func (m *Manager) Admins() *AdminRepository {
	return &AdminRepository{db: m.db}
}

// Stats returns the row-count provider used by the admin panel.
func (m *Manager) Stats() *StatsProvider {
	return &StatsProvider{db: m.db}
}

// Close releases the database handle.
func (m *Manager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite handle: %w", err)
	}

	return sqlDB.Close()
}

func dsn(path string) string {
	if path == MemoryPath {
		return path
	}
	return fmt.Sprintf("%s?_busy_timeout=%d", path, busyTimeoutMillis)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
