package redis

import "errors"

var (
	ErrFailedToParseURL  = errors.New("failed to parse redis connection string")
	ErrNotReady          = errors.New("redis did not become ready within the given time period")
	ErrEmptyURL          = errors.New("empty redis connection URL")
	ErrHealthcheckFailed = errors.New("redis healthcheck failed")

	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)
