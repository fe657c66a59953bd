package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sessionstore/internal/logging"
	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/aretw0/sessionstore/pkg/observability"
	"github.com/aretw0/sessionstore/pkg/ports"
)

const globalLockKey = "_global"

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Coordinator orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Coordinator struct {
	backend ports.Backend

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks
	scope LockScope

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration

	generate    IDGenerator
	expireAfter time.Duration
	dropDefault bool

	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCoordinator creates a new Coordinator over the given backend.
func NewCoordinator(backend ports.Backend, opts ...Option) *Coordinator {
	c := &Coordinator{
		backend:  backend,
		locks:    make(map[string]*lockEntry),
		lockTTL:  30 * time.Second,
		generate: RandomID,
		logger:   logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultOptions returns the options a request starts from before the
// application changes them.
func (c *Coordinator) DefaultOptions() domain.Options {
	return domain.Options{
		Drop:        c.dropDefault,
		ExpireAfter: c.expireAfter,
	}
}

// Backend returns the underlying backend.
func (c *Coordinator) Backend() ports.Backend {
	return c.backend
}

// GetSession returns the session stored under sid, or a new empty session
// under a freshly generated id when sid is empty, unknown or unreadable.
// The returned session carries a snapshot of what was read.
//
// If the backend cannot be reached it returns an empty id and an empty
// session, which lives only for the current request.
func (c *Coordinator) GetSession(ctx context.Context, sid string, opts domain.Options) (string, *domain.Session) {
	var (
		id  string
		rec domain.Record
	)
	err := c.WithLock(ctx, sid, opts.Concurrent, func(ctx context.Context) error {
		if sid != "" {
			stored, err := c.backend.Get(ctx, sid)
			if err != nil {
				c.metrics.BackendError(observability.OpGet)
				return err
			}
			if stored != nil {
				id, rec = sid, stored
				return nil
			}
			c.logger.Debug("Session not found, initializing", "session_id", sid)
		}

		newID, err := c.GenerateID(ctx)
		if err != nil {
			return err
		}

		// Written eagerly so the id is taken before any sibling request sees it.
		rec = domain.Record{}
		if err := c.write(ctx, newID, rec, c.expireAfter); err != nil {
			return err
		}
		c.metrics.SessionCreated()
		id = newID
		return nil
	})
	if err != nil {
		c.logger.Warn("Session backend unavailable, serving ephemeral session",
			"session_id", sid,
			"err", err,
		)
		return "", domain.NewSession(nil)
	}

	return id, domain.NewSession(rec)
}

// SetSession persists sess for the request that read it under sid and
// returns the id the client should keep. ok is false when no cookie should
// be issued (the session was dropped, or no id could be obtained).
//
// With Drop the stored record is deleted. With Renew the record moves to a
// new id and the old one is deleted. Otherwise the request's changes are
// merged into the currently stored record, so concurrent requests touching
// different keys do not erase each other.
//
// Backend failures are logged and the session content of this request is
// lost; the computed id is still returned.
func (c *Coordinator) SetSession(ctx context.Context, sid string, sess *domain.Session, opts domain.Options) (string, bool) {
	id := sid
	err := c.WithLock(ctx, sid, opts.Concurrent, func(ctx context.Context) error {
		var current domain.Record
		if sid != "" {
			var err error
			current, err = c.backend.Get(ctx, sid)
			if err != nil {
				c.metrics.BackendError(observability.OpGet)
				return err
			}
		}

		if opts.Renew || opts.Drop {
			if err := c.delete(ctx, sid); err != nil {
				return err
			}
			if opts.Drop {
				c.metrics.SessionDropped()
				return nil
			}

			newID, err := c.GenerateID(ctx)
			if err != nil {
				return err
			}
			c.metrics.SessionRenewed()
			id = newID
		}

		if id == "" {
			newID, err := c.GenerateID(ctx)
			if err != nil {
				return err
			}
			c.metrics.SessionCreated()
			id = newID
		}

		merged, delta, err := domain.Merge(sess.Snapshot(), sess.Values(), current)
		if err != nil {
			c.logger.Warn("Bad old or new session provided, keeping stored record",
				"session_id", id,
				"err", err,
			)
		} else if !delta.IsEmpty() {
			c.logger.Debug("Merging session changes",
				"session_id", id,
				"dropping", delta.Deleted,
				"updating", delta.UpdatedKeys(),
			)
		}
		c.metrics.Merge(err == nil)

		return c.write(ctx, id, merged, c.ttl(opts))
	})

	if opts.Drop {
		if err != nil {
			c.logger.Error("Failed to drop session", "session_id", sid, "err", err)
		}
		return "", false
	}
	if err != nil {
		c.logger.Error("Session has been lost",
			"session_id", id,
			"keys", sess.Values().Keys(),
			"err", err,
		)
	}
	return id, id != ""
}

// DestroySession deletes the session stored under sid. It returns ok=false
// so no cookie is issued, unless opts.Renew asks for a fresh empty session
// under a new id in its place.
func (c *Coordinator) DestroySession(ctx context.Context, sid string, opts domain.Options) (string, bool) {
	if !opts.Renew {
		opts.Drop = true
		return c.SetSession(ctx, sid, domain.NewSession(nil), opts)
	}

	var id string
	err := c.WithLock(ctx, sid, opts.Concurrent, func(ctx context.Context) error {
		if err := c.delete(ctx, sid); err != nil {
			return err
		}
		c.metrics.SessionDropped()

		newID, err := c.GenerateID(ctx)
		if err != nil {
			return err
		}
		if err := c.write(ctx, newID, domain.Record{}, c.ttl(opts)); err != nil {
			return err
		}
		c.metrics.SessionCreated()
		id = newID
		return nil
	})
	if err != nil {
		c.logger.Error("Failed to destroy session", "session_id", sid, "err", err)
		return "", false
	}
	return id, true
}

// List returns the ids stored in the backend.
func (c *Coordinator) List(ctx context.Context) ([]string, error) {
	return c.backend.Keys(ctx)
}

// WithLock executes fn while holding the lock for key.
//
// The local lock is taken only when concurrent is true; with LockGlobal every
// key shares one mutex. A configured distributed lock is always taken, inside
// the local one. Locks are released on every exit path, including panics in fn.
func (c *Coordinator) WithLock(ctx context.Context, key string, concurrent bool, fn func(context.Context) error) error {
	if c.scope == LockGlobal {
		key = globalLockKey
	}

	if concurrent {
		start := time.Now()
		entry := c.acquire(key)
		entry.mu.Lock()
		c.metrics.ObserveLockWait(time.Since(start))
		defer func() {
			entry.mu.Unlock()
			c.release(key)
		}()
	}

	// Distributed Locking
	if c.locker != nil {
		unlock, err := c.locker.Lock(ctx, key, c.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The request context may already be done; release with a fresh one.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				c.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (c *Coordinator) acquire(key string) *lockEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.locks[key]
	if !exists {
		entry = &lockEntry{}
		c.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (c *Coordinator) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.locks[key]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(c.locks, key)
	}
}

func (c *Coordinator) ttl(opts domain.Options) time.Duration {
	if opts.ExpireAfter > 0 {
		return opts.ExpireAfter
	}
	return c.expireAfter
}

func (c *Coordinator) write(ctx context.Context, id string, rec domain.Record, ttl time.Duration) error {
	var err error
	if ttl > 0 {
		err = c.backend.SetWithTTL(ctx, id, rec, ttl)
	} else {
		err = c.backend.Set(ctx, id, rec)
	}
	if err != nil {
		c.metrics.BackendError(observability.OpSet)
	}
	return err
}

func (c *Coordinator) delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := c.backend.Delete(ctx, id); err != nil {
		c.metrics.BackendError(observability.OpDelete)
		return err
	}
	return nil
}
