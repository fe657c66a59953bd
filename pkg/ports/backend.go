package ports

import (
	"context"
	"time"

	"github.com/aretw0/sessionstore/pkg/domain"
)

// Backend defines the key-value persistence used by the session coordinator.
// Implementations apply their namespace to every id they receive.
type Backend interface {
	// Get retrieves the record stored under id.
	// It returns (nil, nil) when the key is absent or the stored value is not
	// a valid record. An error means the backend could not be reached.
	Get(ctx context.Context, id string) (domain.Record, error)

	// Set stores rec under id without expiry.
	Set(ctx context.Context, id string, rec domain.Record) error

	// SetWithTTL stores rec under id and expires it after ttl.
	SetWithTTL(ctx context.Context, id string, rec domain.Record, ttl time.Duration) error

	// Delete removes id. Deleting a missing key is not an error.
	Delete(ctx context.Context, id string) error

	// Exists reports whether id is currently stored.
	Exists(ctx context.Context, id string) (bool, error)

	// Keys lists the ids stored under the backend's namespace.
	Keys(ctx context.Context) ([]string, error)
}
