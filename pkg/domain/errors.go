package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrMalformedRecord is returned when a merge input is not a usable mapping.
var ErrMalformedRecord = errors.New("malformed session record")

// ErrBackendUnavailable is returned when the key-value backend cannot be reached.
var ErrBackendUnavailable = errors.New("session backend unavailable")
