package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv(KeyTelegramToken, "token")
	t.Setenv(KeyBotOwner, "12345")
	t.Setenv(KeyWebAppURL, "https://links.example.com/")
}

func TestLoadDefaultsAndRequired(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	unsetEnv(t, KeyHTTPPort)
	unsetEnv(t, KeyLogLevel)
	unsetEnv(t, KeyDatabasePath)
	unsetEnv(t, KeyCryptoPayToken)
	unsetEnv(t, KeyCryptoPayURL)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if cfg.AppEnv != DefaultAppEnv {
		t.Fatalf("expected app env %s, got %s", DefaultAppEnv, cfg.AppEnv)
	}
	if cfg.BotOwnerID != 12345 {
		t.Fatalf("expected bot owner id to be parsed, got %d", cfg.BotOwnerID)
	}
	if cfg.WebAppURL != "https://links.example.com" {
		t.Fatalf("expected trailing slash to be trimmed, got %s", cfg.WebAppURL)
	}
	if cfg.DatabasePath != DefaultDatabasePath {
		t.Fatalf("expected default database path %s, got %s", DefaultDatabasePath, cfg.DatabasePath)
	}
	if cfg.CryptoPayURL != DefaultCryptoPayURL {
		t.Fatalf("expected default crypto pay url %s, got %s", DefaultCryptoPayURL, cfg.CryptoPayURL)
	}
	if cfg.PaymentsEnabled() {
		t.Fatalf("expected payments to be disabled without a token")
	}
	if cfg.HTTPPort != DefaultHTTPPort {
		t.Fatalf("expected default http port %d, got %d", DefaultHTTPPort, cfg.HTTPPort)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %s, got %s", DefaultLogLevel, cfg.LogLevel)
	}
}

func TestLoadFailsOnMissingRequired(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	unsetEnv(t, KeyTelegramToken)
	unsetEnv(t, KeyWebAppURL)
	t.Setenv(KeyBotOwner, "999")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected missing required env to error")
	}

	for _, key := range []string{KeyTelegramToken, KeyWebAppURL} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected error to mention missing %s, got %v", key, err)
		}
	}
}

func TestLoadValidatesOwnerID(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	setRequired(t)
	t.Setenv(KeyBotOwner, "abc")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid %s", KeyBotOwner)
	}
	if !strings.Contains(err.Error(), KeyBotOwner) {
		t.Fatalf("expected error to mention %s, got %v", KeyBotOwner, err)
	}
}

func TestLoadValidatesHTTPPort(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	setRequired(t)
	t.Setenv(KeyHTTPPort, "-1")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid %s", KeyHTTPPort)
	}
	if !strings.Contains(err.Error(), KeyHTTPPort) {
		t.Fatalf("expected error to mention %s, got %v", KeyHTTPPort, err)
	}
}

func TestLoadValidatesWebAppURL(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	setRequired(t)
	t.Setenv(KeyWebAppURL, "ftp://links.example.com")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected invalid webapp url to error")
	}
	if !strings.Contains(err.Error(), KeyWebAppURL) {
		t.Fatalf("expected error to mention %s, got %v", KeyWebAppURL, err)
	}
}

func TestLoadUsesDotEnvInDevelopment(t *testing.T) {
	tmpDir := t.TempDir()
	dotenvContent := []byte(`
APP_ENV=development
TELEGRAM_TOKEN=dotenv-token
BOT_OWNER=77
WEBAPP_URL=http://localhost:9091
DATABASE_PATH=dev.db
CRYPTO_PAY_TOKEN=pay-token
HTTP_PORT=9091
LOG_LEVEL=debug
`)

	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), dotenvContent, 0o644); err != nil {
		t.Fatalf("failed to write dotenv: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})

	for _, key := range []string{KeyAppEnv, KeyTelegramToken, KeyBotOwner, KeyWebAppURL, KeyDatabasePath, KeyCryptoPayToken, KeyCryptoPayURL, KeyHTTPPort, KeyLogLevel} {
		unsetEnv(t, key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected dotenv-backed config to load, got error: %v", err)
	}

	if cfg.AppEnv != EnvDevelopment {
		t.Fatalf("expected development env from dotenv, got %s", cfg.AppEnv)
	}
	if cfg.TelegramToken != "dotenv-token" {
		t.Fatalf("expected token from dotenv, got %s", cfg.TelegramToken)
	}
	if cfg.BotOwnerID != 77 {
		t.Fatalf("expected owner id 77 from dotenv, got %d", cfg.BotOwnerID)
	}
	if cfg.DatabasePath != "dev.db" {
		t.Fatalf("expected database path from dotenv, got %s", cfg.DatabasePath)
	}
	if !cfg.PaymentsEnabled() {
		t.Fatalf("expected payments enabled from dotenv token")
	}
	if cfg.HTTPPort != 9091 {
		t.Fatalf("expected http port from dotenv, got %d", cfg.HTTPPort)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level from dotenv, got %s", cfg.LogLevel)
	}
}

func TestFormatRedactedMasksSecrets(t *testing.T) {
	cfg := Config{
		TelegramToken:  "abcd1234secret",
		BotOwnerID:     42,
		WebAppURL:      "https://links.example.com",
		DatabasePath:   "database.db",
		CryptoPayToken: "pay9876secret",
		CryptoPayURL:   DefaultCryptoPayURL,
		AppEnv:         EnvDevelopment,
		LogLevel:       "debug",
		HTTPPort:       9000,
	}

	summary := FormatRedacted(cfg)

	if strings.Contains(summary, "1234secret") || strings.Contains(summary, "9876secret") {
		t.Fatalf("expected secrets to be redacted, got %s", summary)
	}
	if !strings.Contains(summary, "telegram_token: abcd...redacted") {
		t.Fatalf("expected telegram token to show masked prefix, got %s", summary)
	}
	if !strings.Contains(summary, "webapp_url: https://links.example.com") {
		t.Fatalf("expected webapp url to remain visible, got %s", summary)
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}
