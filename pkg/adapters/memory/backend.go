package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/sessionstore/pkg/codec"
	"github.com/aretw0/sessionstore/pkg/domain"
)

type entry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// Backend implements ports.Backend in memory.
// Records are kept encoded, so callers never share maps with the store.
// Safe for concurrent use.
type Backend struct {
	mu        sync.RWMutex
	data      map[string]entry
	namespace string
	codec     codec.Codec
	now       func() time.Time
}

// Option configures the Backend.
type Option func(*Backend)

// WithNamespace sets the key namespace.
func WithNamespace(namespace string) Option {
	return func(b *Backend) {
		b.namespace = namespace
	}
}

// WithCodec sets the record codec.
func WithCodec(c codec.Codec) Option {
	return func(b *Backend) {
		b.codec = c
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// New creates a new in-memory backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		data:  make(map[string]entry),
		codec: codec.JSON{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) key(id string) string {
	if b.namespace == "" {
		return id
	}
	return b.namespace + ":" + id
}

// live returns the entry for key, dropping it if it expired.
// Caller must hold the write lock.
func (b *Backend) live(key string) (entry, bool) {
	e, ok := b.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !b.now().Before(e.expiresAt) {
		delete(b.data, key)
		return entry{}, false
	}
	return e, true
}

// Get retrieves the record. Expired and undecodable values read as absent.
func (b *Backend) Get(ctx context.Context, id string) (domain.Record, error) {
	b.mu.Lock()
	e, ok := b.live(b.key(id))
	b.mu.Unlock()
	if !ok {
		return nil, nil
	}

	rec, err := b.codec.Decode(e.data)
	if err != nil {
		return nil, nil
	}
	return rec, nil
}

// Set stores the record without expiry.
func (b *Backend) Set(ctx context.Context, id string, rec domain.Record) error {
	return b.SetWithTTL(ctx, id, rec, 0)
}

// SetWithTTL stores the record and expires it after ttl. A non-positive ttl means no expiry.
func (b *Backend) SetWithTTL(ctx context.Context, id string, rec domain.Record, ttl time.Duration) error {
	data, err := b.codec.Encode(rec)
	if err != nil {
		return err
	}

	e := entry{data: data}
	if ttl > 0 {
		e.expiresAt = b.now().Add(ttl)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[b.key(id)] = e
	return nil
}

// SetRaw stores bytes as-is, bypassing the codec.
func (b *Backend) SetRaw(id string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[b.key(id)] = entry{data: data}
}

// Delete removes the record.
func (b *Backend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, b.key(id))
	return nil
}

// Exists reports whether a live record is stored under id.
func (b *Backend) Exists(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.live(b.key(id))
	return ok, nil
}

// Keys returns the ids of live records.
func (b *Backend) Keys(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prefix := ""
	if b.namespace != "" {
		prefix = b.namespace + ":"
	}

	ids := make([]string, 0, len(b.data))
	for key := range b.data {
		if _, ok := b.live(key); !ok {
			continue
		}
		if id, ok := strings.CutPrefix(key, prefix); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Len returns the number of live entries, like DBSIZE.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for key := range b.data {
		if _, ok := b.live(key); ok {
			n++
		}
	}
	return n
}
