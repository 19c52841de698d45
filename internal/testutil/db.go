// Package testutil provides in-memory SQLite fixtures for package tests.
package testutil

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/jitterskin/logger/internal/store"
)

// SetupTestDB opens a migrated in-memory database that is closed when the test ends.
func SetupTestDB(t *testing.T) *store.Manager {
	t.Helper()

	m, err := store.Open(context.Background(), store.MemoryPath, QuietLogger())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		if err := m.Close(); err != nil {
			t.Logf("warning: failed to close test database: %v", err)
		}
	})

	return m
}

// QuietLogger returns a logrus entry that discards output.
func QuietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
