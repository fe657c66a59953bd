package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes access to one session id across every process
// sharing a Backend.
type DistributedLocker interface {
	// Lock blocks until key is held or ctx is done. The lease lapses after
	// ttl if the holder never calls the returned UnlockFunc, so a crashed
	// process cannot wedge the session.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
