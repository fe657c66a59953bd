package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/sessionstore/internal/logging"
	"github.com/aretw0/sessionstore/pkg/codec"
	"github.com/aretw0/sessionstore/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Backend implements ports.Backend using Redis.
type Backend struct {
	client    backend.UniversalClient
	namespace string
	codec     codec.Codec
	scanBatch int64
	logger    *slog.Logger
}

// Option configures the Backend.
type Option func(*Backend)

// WithNamespace sets the key namespace. Keys become "<namespace>:<id>".
// An empty namespace stores ids as-is.
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

// WithScanBatchSize sets the COUNT hint used when listing keys.
func WithScanBatchSize(n int64) Option {
	return func(b *Backend) {
		if n > 0 {
			b.scanBatch = n
		}
	}
}

// WithLogger configures a logger for decode failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// NewFromClient creates a new Redis backend from an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Backend {
	b := &Backend{
		client:    client,
		codec:     codec.JSON{},
		scanBatch: 1000,
		logger:    logging.NewNop(),
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

// Get retrieves the record from Redis.
func (b *Backend) Get(ctx context.Context, id string) (domain.Record, error) {
	raw, err := b.client.Get(ctx, b.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to get from redis: %w", domain.ErrBackendUnavailable, err)
	}

	rec, err := b.codec.Decode(raw)
	if err != nil {
		b.logger.Debug("Discarding undecodable session", "key", b.key(id), "err", err)
		return nil, nil
	}
	return rec, nil
}

// Set persists the record without expiry.
func (b *Backend) Set(ctx context.Context, id string, rec domain.Record) error {
	return b.SetWithTTL(ctx, id, rec, 0)
}

// SetWithTTL persists the record and lets Redis expire it after ttl.
// Use 0 for no expiration.
func (b *Backend) SetWithTTL(ctx context.Context, id string, rec domain.Record, ttl time.Duration) error {
	data, err := b.codec.Encode(rec)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}

	if err := b.client.Set(ctx, b.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: failed to save to redis: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Delete removes the record.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if err := b.client.Del(ctx, b.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: failed to delete from redis: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Exists reports whether the key is present.
func (b *Backend) Exists(ctx context.Context, id string) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: failed to check redis key: %w", domain.ErrBackendUnavailable, err)
	}
	return n > 0, nil
}

// Keys returns the stored ids using SCAN to avoid blocking Redis.
// Without a namespace, lock keys under DefaultLockPrefix are skipped.
// On a cluster client only the node serving the call is scanned.
func (b *Backend) Keys(ctx context.Context) ([]string, error) {
	prefix := ""
	if b.namespace != "" {
		prefix = b.namespace + ":"
	}
	pattern := escapeGlob(prefix) + "*"

	var (
		ids    []string
		cursor uint64
	)
	for {
		batch, next, err := b.client.Scan(ctx, cursor, pattern, b.scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan redis keys: %w", domain.ErrBackendUnavailable, err)
		}
		for _, key := range batch {
			if prefix == "" && strings.HasPrefix(key, DefaultLockPrefix) {
				continue
			}
			ids = append(ids, strings.TrimPrefix(key, prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}

// Client returns the underlying Redis client for advanced operations.
func (b *Backend) Client() backend.UniversalClient {
	return b.client
}

// Close closes the redis client.
func (b *Backend) Close() error {
	return b.client.Close()
}

func escapeGlob(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
