package sessionstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/sessionstore/internal/logging"
	httpAdapter "github.com/aretw0/sessionstore/pkg/adapters/http"
	"github.com/aretw0/sessionstore/pkg/adapters/redis"
	"github.com/aretw0/sessionstore/pkg/observability"
	"github.com/aretw0/sessionstore/pkg/ports"
	"github.com/aretw0/sessionstore/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
)

// Version is the release of this module.
//
//go:embed VERSION
var Version string

// Store is the high-level entry point for the sessionstore library.
// It bundles a backend, its Coordinator and the metrics they report.
type Store struct {
	*session.Coordinator

	Backend ports.Backend
	Metrics *observability.Metrics

	client      backend.UniversalClient
	redisConfig redis.Config
	namespace   string
	distributed bool
	coordOpts   []session.Option
	registerer  prometheus.Registerer
	logger      *slog.Logger
}

// Option defines a functional option for configuring the Store.
type Option func(*Store)

// WithBackend injects a custom Backend, bypassing the default Redis connection.
func WithBackend(b ports.Backend) Option {
	return func(s *Store) {
		s.Backend = b
	}
}

// WithRedisConfig sets the connection retry policy. Its URL is used when
// New is called with an empty url.
func WithRedisConfig(cfg redis.Config) Option {
	return func(s *Store) {
		s.redisConfig = cfg
	}
}

// WithNamespace prefixes every Redis key with namespace and a colon.
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		s.namespace = namespace
	}
}

// WithExpireAfter sets the default session lifetime.
func WithExpireAfter(d time.Duration) Option {
	return func(s *Store) {
		s.coordOpts = append(s.coordOpts, session.WithExpireAfter(d))
	}
}

// WithDropDefault drops sessions unless the request renews them.
func WithDropDefault(drop bool) Option {
	return func(s *Store) {
		s.coordOpts = append(s.coordOpts, session.WithDropDefault(drop))
	}
}

// WithLockScope sets the local lock granularity.
func WithLockScope(scope session.LockScope) Option {
	return func(s *Store) {
		s.coordOpts = append(s.coordOpts, session.WithLockScope(scope))
	}
}

// WithDistributedLock serializes store calls across processes through Redis.
// It has no effect with a custom backend.
func WithDistributedLock(ttl time.Duration) Option {
	return func(s *Store) {
		s.distributed = true
		s.coordOpts = append(s.coordOpts, session.WithLockTTL(ttl))
	}
}

// WithRegisterer registers the store metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Store) {
		s.registerer = reg
	}
}

// WithLogger sets a custom structured logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New initializes a Store.
// By default, it connects to the Redis server at url.
// If WithBackend option is provided, url can be empty and Redis is skipped.
func New(ctx context.Context, url string, opts ...Option) (*Store, error) {
	s := &Store{
		redisConfig: redis.DefaultConfig(),
		namespace:   "session",
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.Metrics = observability.NewMetrics(s.registerer)

	coordOpts := []session.Option{
		session.WithLogger(s.logger),
		session.WithMetrics(s.Metrics),
	}

	if s.Backend == nil {
		cfg := s.redisConfig
		if url != "" {
			cfg.ConnectionURL = url
		}

		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.client = client
		s.Backend = redis.NewFromClient(client,
			redis.WithNamespace(s.namespace),
			redis.WithLogger(s.logger),
		)

		if s.distributed {
			// Lock keys stay outside the "<namespace>:" range listed by Keys.
			// Without a namespace the locker falls back to DefaultLockPrefix,
			// which Keys skips.
			lockPrefix := ""
			if s.namespace != "" {
				lockPrefix = s.namespace + "_"
			}
			coordOpts = append(coordOpts, session.WithLocker(redis.NewLocker(client, lockPrefix)))
		}
	}

	// Caller options last so they win.
	coordOpts = append(coordOpts, s.coordOpts...)
	s.Coordinator = session.NewCoordinator(s.Backend, coordOpts...)

	return s, nil
}

// Middleware returns HTTP middleware that loads and commits sessions.
func (s *Store) Middleware(opts ...httpAdapter.MiddlewareOption) func(http.Handler) http.Handler {
	opts = append([]httpAdapter.MiddlewareOption{httpAdapter.WithMiddlewareLogger(s.logger)}, opts...)
	return httpAdapter.NewMiddleware(s.Coordinator, opts...)
}

// Healthcheck pings Redis. It always succeeds for custom backends.
func (s *Store) Healthcheck(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return redis.Healthcheck(s.client)(ctx)
}

// Close releases the Redis connection, if New opened one.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Close(); err != nil && !errors.Is(err, backend.ErrClosed) {
		return err
	}
	return nil
}
