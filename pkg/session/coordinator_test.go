package session_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/sessionstore/pkg/adapters/memory"
	"github.com/aretw0/sessionstore/pkg/adapters/redis"
	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/aretw0/sessionstore/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexID = regexp.MustCompile(`^[0-9a-f]{32}$`)

// downBackend fails every call, like an unreachable server.
type downBackend struct{}

var errDown = errors.New("dial tcp: connection refused")

func (downBackend) Get(context.Context, string) (domain.Record, error) { return nil, errDown }
func (downBackend) Set(context.Context, string, domain.Record) error   { return errDown }
func (downBackend) SetWithTTL(context.Context, string, domain.Record, time.Duration) error {
	return errDown
}
func (downBackend) Delete(context.Context, string) error         { return errDown }
func (downBackend) Exists(context.Context, string) (bool, error) { return false, errDown }
func (downBackend) Keys(context.Context) ([]string, error)       { return nil, errDown }

func newRedisCoordinator(t *testing.T, opts ...session.Option) (*session.Coordinator, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redis.NewFromClient(client, redis.WithNamespace("ns"))
	return session.NewCoordinator(store, opts...), mr
}

func TestCoordinator_GenerateID_RetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, "taken", domain.Record{}))

	candidates := []string{"taken", "taken", "free"}
	calls := 0
	coord := session.NewCoordinator(store, session.WithIDGenerator(func() (string, error) {
		id := candidates[calls]
		calls++
		return id, nil
	}))

	id, err := coord.GenerateID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "free", id)
	assert.Equal(t, 3, calls)
}

func TestCoordinator_GenerateID_Errors(t *testing.T) {
	coord := session.NewCoordinator(downBackend{})
	_, err := coord.GenerateID(context.Background())
	assert.ErrorIs(t, err, errDown)

	coord = session.NewCoordinator(memory.New(), session.WithIDGenerator(func() (string, error) {
		return "", errors.New("entropy exhausted")
	}))
	_, err = coord.GenerateID(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = session.NewCoordinator(memory.New()).GenerateID(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoordinator_IDsAreUniqueAndUnused(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	coord := session.NewCoordinator(store)

	seen := make(map[string]bool)
	for range 200 {
		id, err := coord.GenerateID(ctx)
		require.NoError(t, err)
		assert.Regexp(t, hexID, id)

		exists, err := store.Exists(ctx, id)
		require.NoError(t, err)
		assert.False(t, exists)
		assert.False(t, seen[id])
		seen[id] = true

		require.NoError(t, store.Set(ctx, id, domain.Record{}))
	}
}

func TestCoordinator_GetSession(t *testing.T) {
	ctx := context.Background()

	t.Run("creates session without id", func(t *testing.T) {
		store := memory.New()
		coord := session.NewCoordinator(store)

		id, sess := coord.GetSession(ctx, "", domain.Options{})
		assert.Regexp(t, hexID, id)
		assert.Equal(t, 0, sess.Len())
		assert.Equal(t, 1, store.Len(), "new session is written eagerly")
	})

	t.Run("unknown id gets a fresh one", func(t *testing.T) {
		coord := session.NewCoordinator(memory.New())

		id, sess := coord.GetSession(ctx, "blarghfasel", domain.Options{})
		assert.NotEqual(t, "blarghfasel", id)
		assert.Regexp(t, hexID, id)
		assert.Equal(t, 0, sess.Len())
	})

	t.Run("malformed record is a miss", func(t *testing.T) {
		store := memory.New()
		store.SetRaw("broken", []byte("0"))
		coord := session.NewCoordinator(store)

		id, _ := coord.GetSession(ctx, "broken", domain.Options{})
		assert.NotEqual(t, "broken", id)
	})

	t.Run("fetch is idempotent", func(t *testing.T) {
		store := memory.New()
		require.NoError(t, store.Set(ctx, "abc", domain.Record{"counter": 1}))
		coord := session.NewCoordinator(store)

		id1, sess1 := coord.GetSession(ctx, "abc", domain.Options{})
		id2, sess2 := coord.GetSession(ctx, "abc", domain.Options{})

		assert.Equal(t, "abc", id1)
		assert.Equal(t, id1, id2)
		assert.Equal(t, sess1.Values(), sess2.Values())
		assert.Equal(t, 1, store.Len())
	})

	t.Run("snapshot taken at read", func(t *testing.T) {
		store := memory.New()
		require.NoError(t, store.Set(ctx, "abc", domain.Record{"a": "x"}))
		coord := session.NewCoordinator(store)

		_, sess := coord.GetSession(ctx, "abc", domain.Options{})
		sess.Set("a", "y")
		assert.Equal(t, domain.Record{"a": "x"}, sess.Snapshot())
	})

	t.Run("backend down degrades to ephemeral session", func(t *testing.T) {
		coord := session.NewCoordinator(downBackend{})

		id, sess := coord.GetSession(ctx, "abc", domain.Options{Concurrent: true})
		assert.Empty(t, id)
		require.NotNil(t, sess)
		assert.Equal(t, 0, sess.Len())
	})
}

func TestCoordinator_SetSession_DisjointKeysSurvive(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, "abc", domain.Record{"a": 1}))
	coord := session.NewCoordinator(store)

	// Both requests read the same baseline before either writes.
	_, first := coord.GetSession(ctx, "abc", domain.Options{})
	_, second := coord.GetSession(ctx, "abc", domain.Options{})
	first.Set("b", 2)
	second.Set("c", 3)

	id, ok := coord.SetSession(ctx, "abc", first, domain.Options{})
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
	_, ok = coord.SetSession(ctx, "abc", second, domain.Options{})
	assert.True(t, ok)

	stored, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, domain.Record{"a": float64(1), "b": float64(2), "c": float64(3)}, stored)
}

func TestCoordinator_SetSession_UnchangedNumberKeepsSiblingWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, "abc", domain.Record{"role": 1}))
	coord := session.NewCoordinator(store)

	_, first := coord.GetSession(ctx, "abc", domain.Options{})
	_, second := coord.GetSession(ctx, "abc", domain.Options{})

	second.Set("role", 5)
	coord.SetSession(ctx, "abc", second, domain.Options{})

	// Reading the value back and writing it unchanged is not a change.
	role, _ := first.GetInt("role")
	first.Set("role", role)
	coord.SetSession(ctx, "abc", first, domain.Options{})

	stored, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, float64(5), stored["role"])
}

func TestCoordinator_SetSession_DeletionPropagates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, "abc", domain.Record{"a": 1, "b": 2}))
	coord := session.NewCoordinator(store)

	_, sess := coord.GetSession(ctx, "abc", domain.Options{})
	sess.Delete("b")
	coord.SetSession(ctx, "abc", sess, domain.Options{})

	stored, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.NotContains(t, stored, "b")
	assert.Contains(t, stored, "a")
}

func TestCoordinator_SetSession_Drop(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	coord := session.NewCoordinator(store)

	id, sess := coord.GetSession(ctx, "", domain.Options{})
	sess.Set("counter", 1)
	coord.SetSession(ctx, id, sess, domain.Options{})
	assert.Equal(t, 1, store.Len())

	_, sess = coord.GetSession(ctx, id, domain.Options{})
	newID, ok := coord.SetSession(ctx, id, sess, domain.Options{Drop: true})
	assert.False(t, ok)
	assert.Empty(t, newID)
	assert.Equal(t, 0, store.Len())

	// The old id now behaves as a miss.
	nextID, next := coord.GetSession(ctx, id, domain.Options{})
	assert.NotEqual(t, id, nextID)
	_, found := next.Get("counter")
	assert.False(t, found)
	assert.Equal(t, 1, store.Len())
}

func TestCoordinator_SetSession_Renew(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	coord := session.NewCoordinator(store)

	id, sess := coord.GetSession(ctx, "", domain.Options{})
	sess.Set("counter", 1)
	sess.Set("user", "alice")
	coord.SetSession(ctx, id, sess, domain.Options{})

	_, sess = coord.GetSession(ctx, id, domain.Options{})
	n, _ := sess.GetInt("counter")
	sess.Set("counter", n+1)
	newID, ok := coord.SetSession(ctx, id, sess, domain.Options{Renew: true})

	assert.True(t, ok)
	assert.NotEqual(t, id, newID)
	assert.Regexp(t, hexID, newID)

	exists, err := store.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists, "old id must be gone")

	stored, err := store.Get(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, float64(2), stored["counter"])
	assert.Equal(t, "alice", stored["user"], "unchanged keys move with the session")
	assert.Equal(t, 1, store.Len())
}

func TestCoordinator_SetSession_DropWinsOverRenew(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	coord := session.NewCoordinator(store)

	id, sess := coord.GetSession(ctx, "", domain.Options{})
	newID, ok := coord.SetSession(ctx, id, sess, domain.Options{Drop: true, Renew: true})
	assert.False(t, ok)
	assert.Empty(t, newID)
	assert.Equal(t, 0, store.Len())
}

func TestCoordinator_SetSession_DegradedRequestGetsNewID(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	coord := session.NewCoordinator(store)

	sess := domain.NewSession(nil)
	sess.Set("k", "v")
	id, ok := coord.SetSession(ctx, "", sess, domain.Options{})
	assert.True(t, ok)
	assert.Regexp(t, hexID, id)

	stored, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "v", stored["k"])
}

func TestCoordinator_SetSession_MalformedSessionKeepsStored(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, "abc", domain.Record{"keep": true}))
	coord := session.NewCoordinator(store)

	id, ok := coord.SetSession(ctx, "abc", nil, domain.Options{})
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	stored, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, domain.Record{"keep": true}, stored)
}

func TestCoordinator_SetSession_BackendDown(t *testing.T) {
	ctx := context.Background()
	coord := session.NewCoordinator(downBackend{})

	sess := domain.NewSession(domain.Record{"a": 1})
	id, ok := coord.SetSession(ctx, "abc", sess, domain.Options{Concurrent: true})
	assert.Equal(t, "abc", id, "the response keeps the id it already had")
	assert.True(t, ok)

	id, ok = coord.SetSession(ctx, "abc", sess, domain.Options{Drop: true})
	assert.Empty(t, id)
	assert.False(t, ok)

	id, ok = coord.SetSession(ctx, "", sess, domain.Options{})
	assert.Empty(t, id)
	assert.False(t, ok)
}

func TestCoordinator_DestroySession(t *testing.T) {
	ctx := context.Background()

	t.Run("drop", func(t *testing.T) {
		store := memory.New()
		require.NoError(t, store.Set(ctx, "abc", domain.Record{"a": 1}))
		coord := session.NewCoordinator(store)

		id, ok := coord.DestroySession(ctx, "abc", domain.Options{})
		assert.False(t, ok)
		assert.Empty(t, id)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("renew", func(t *testing.T) {
		store := memory.New()
		require.NoError(t, store.Set(ctx, "abc", domain.Record{"a": 1}))
		coord := session.NewCoordinator(store)

		id, ok := coord.DestroySession(ctx, "abc", domain.Options{Renew: true, Drop: true})
		assert.True(t, ok)
		assert.NotEqual(t, "abc", id)

		stored, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.Record{}, stored, "renewed session starts empty")
		assert.Equal(t, 1, store.Len())
	})

	t.Run("backend down", func(t *testing.T) {
		coord := session.NewCoordinator(downBackend{})
		id, ok := coord.DestroySession(ctx, "abc", domain.Options{Renew: true})
		assert.False(t, ok)
		assert.Empty(t, id)
	})
}

func TestCoordinator_Expiry(t *testing.T) {
	ctx := context.Background()
	coord, mr := newRedisCoordinator(t)

	id, sess := coord.GetSession(ctx, "", domain.Options{})
	sess.Set("counter", 1)
	_, ok := coord.SetSession(ctx, id, sess, domain.Options{ExpireAfter: 2 * time.Second})
	require.True(t, ok)

	mr.FastForward(1 * time.Second)
	sameID, sess := coord.GetSession(ctx, id, domain.Options{})
	assert.Equal(t, id, sameID)
	n, _ := sess.GetInt("counter")
	assert.Equal(t, 1, n)

	mr.FastForward(2 * time.Second)
	freshID, sess := coord.GetSession(ctx, id, domain.Options{})
	assert.NotEqual(t, id, freshID)
	assert.Equal(t, 0, sess.Len())
}

func TestCoordinator_DefaultExpiry(t *testing.T) {
	ctx := context.Background()
	coord, mr := newRedisCoordinator(t, session.WithExpireAfter(time.Minute))

	id, sess := coord.GetSession(ctx, "", domain.Options{})
	assert.Equal(t, time.Minute, mr.TTL("ns:"+id), "eager write carries the default expiry")

	coord.SetSession(ctx, id, sess, domain.Options{ExpireAfter: 10 * time.Second})
	assert.Equal(t, 10*time.Second, mr.TTL("ns:"+id), "request expiry overrides the default")

	coord.SetSession(ctx, id, sess, domain.Options{})
	assert.Equal(t, time.Minute, mr.TTL("ns:"+id))
}

func TestCoordinator_Namespacing(t *testing.T) {
	ctx := context.Background()
	coord, mr := newRedisCoordinator(t)

	id, sess := coord.GetSession(ctx, "", domain.Options{})
	sess.Set("a", 1)
	coord.SetSession(ctx, id, sess, domain.Options{})

	assert.True(t, mr.Exists("ns:"+id))
	assert.False(t, mr.Exists(id))
	assert.Equal(t, []string{"ns:" + id}, mr.Keys())

	ids, err := coord.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func TestCoordinator_ConcurrentRequestsMerge(t *testing.T) {
	for _, scope := range []session.LockScope{session.LockPerSession, session.LockGlobal} {
		t.Run(fmt.Sprintf("scope-%d", scope), func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			coord := session.NewCoordinator(store, session.WithLockScope(scope))
			opts := domain.Options{Concurrent: true}

			id, sess := coord.GetSession(ctx, "", opts)
			sess.Set("counter", 1)
			coord.SetSession(ctx, id, sess, opts)

			const workers = 12
			start := make(chan struct{})
			var read, wg sync.WaitGroup
			read.Add(workers)
			for i := range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					gotID, sess := coord.GetSession(ctx, id, opts)
					assert.Equal(t, id, gotID)
					read.Done()

					// Every worker holds the same baseline before anyone writes.
					<-start
					n, _ := sess.GetInt("counter")
					sess.Set("counter", n+1)
					sess.Set(fmt.Sprintf("worker-%d", i), true)
					gotID, ok := coord.SetSession(ctx, id, sess, opts)
					assert.True(t, ok)
					assert.Equal(t, id, gotID)
				}()
			}
			read.Wait()
			close(start)
			wg.Wait()

			stored, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Len(t, stored, workers+1)
			// Same-key writes are last-writer-wins, all from baseline 1.
			assert.Equal(t, float64(2), stored["counter"])
		})
	}
}
