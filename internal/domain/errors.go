package domain

import "errors"

var (
	// ErrNotFound is returned for unknown users, loggers and tokens.
	ErrNotFound = errors.New("not found")
	// ErrQuotaExceeded is returned when a user already owns the maximum number of active loggers.
	ErrQuotaExceeded = errors.New("logger quota exceeded")
	// ErrUnauthorized is returned when the requester may not act on a record.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrExternalService wraps failures of the payment gateway or Telegram API.
	ErrExternalService = errors.New("external service failure")
)
