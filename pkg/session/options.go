package session

import (
	"log/slog"
	"time"

	"github.com/aretw0/sessionstore/pkg/observability"
	"github.com/aretw0/sessionstore/pkg/ports"
)

// LockScope selects how store calls are serialized when the host runs
// requests concurrently.
type LockScope int

const (
	// LockPerSession serializes calls that share a session id.
	LockPerSession LockScope = iota
	// LockGlobal serializes every call behind a single mutex.
	LockGlobal
)

// ParseLockScope maps "session" and "global" to a LockScope.
func ParseLockScope(s string) (LockScope, bool) {
	switch s {
	case "", "session":
		return LockPerSession, true
	case "global":
		return LockGlobal, true
	default:
		return LockPerSession, false
	}
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(c *Coordinator) {
		c.locker = locker
	}
}

// WithLockTTL sets the lease of distributed locks (default 30s).
func WithLockTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.lockTTL = ttl
		}
	}
}

// WithLockScope sets the local lock granularity.
func WithLockScope(scope LockScope) Option {
	return func(c *Coordinator) {
		c.scope = scope
	}
}

// WithLogger configures a logger for the Coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics records lifecycle events into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithIDGenerator replaces the random id source.
func WithIDGenerator(gen IDGenerator) Option {
	return func(c *Coordinator) {
		c.generate = gen
	}
}

// WithExpireAfter sets the default record lifetime. Zero disables expiry.
func WithExpireAfter(d time.Duration) Option {
	return func(c *Coordinator) {
		c.expireAfter = d
	}
}

// WithDropDefault makes requests drop their session unless they opt out.
func WithDropDefault(drop bool) Option {
	return func(c *Coordinator) {
		c.dropDefault = drop
	}
}
