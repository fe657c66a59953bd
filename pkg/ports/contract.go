package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBackendContract runs a suite of tests to verify that a Backend implementation
// adheres to the defined interface contract.
//
// advance moves the backend's clock forward. When nil, expiry checks are skipped.
func RunBackendContract(t *testing.T, backend Backend, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405")

	t.Run("Set and Get", func(t *testing.T) {
		id := prefix + "-get"
		rec := domain.Record{"foo": "bar", "count": 42}

		require.NoError(t, backend.Set(ctx, id, rec), "Set should not return error")

		loaded, err := backend.Get(ctx, id)
		require.NoError(t, err, "Get should not return error")
		require.NotNil(t, loaded)
		assert.Equal(t, "bar", loaded["foo"])
		// Serializing backends may widen numbers; only check presence.
		assert.NotNil(t, loaded["count"])
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		loaded, err := backend.Get(ctx, prefix+"-missing")
		assert.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("Get Returns Independent Copy", func(t *testing.T) {
		id := prefix + "-copy"
		require.NoError(t, backend.Set(ctx, id, domain.Record{"k": "v"}))

		first, err := backend.Get(ctx, id)
		require.NoError(t, err)
		first["k"] = "mutated"

		second, err := backend.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "v", second["k"])
	})

	t.Run("Exists", func(t *testing.T) {
		id := prefix + "-exists"
		ok, err := backend.Exists(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, backend.Set(ctx, id, domain.Record{}))
		ok, err = backend.Exists(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, "an empty record still exists")
	})

	t.Run("Delete", func(t *testing.T) {
		id := prefix + "-delete"
		require.NoError(t, backend.Set(ctx, id, domain.Record{"a": 1}))

		require.NoError(t, backend.Delete(ctx, id), "Delete should not return error")
		require.NoError(t, backend.Delete(ctx, id), "Deleting twice should not return error")

		loaded, err := backend.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, loaded, "Get after Delete should report absence")
	})

	t.Run("Keys", func(t *testing.T) {
		id1 := prefix + "-keys-1"
		id2 := prefix + "-keys-2"
		require.NoError(t, backend.Set(ctx, id1, domain.Record{}))
		require.NoError(t, backend.Set(ctx, id2, domain.Record{}))
		defer func() {
			_ = backend.Delete(ctx, id1)
			_ = backend.Delete(ctx, id2)
		}()

		keys, err := backend.Keys(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, id1)
		assert.Contains(t, keys, id2)
	})

	t.Run("TTL Expiration", func(t *testing.T) {
		if advance == nil {
			t.Skip("backend clock cannot be advanced")
		}
		id := prefix + "-ttl"
		require.NoError(t, backend.SetWithTTL(ctx, id, domain.Record{"a": 1}, 2*time.Second))

		advance(1 * time.Second)
		loaded, err := backend.Get(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, loaded, "record should survive before its TTL")

		advance(2 * time.Second)
		loaded, err = backend.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, loaded, "record should be gone after its TTL")

		ok, err := backend.Exists(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Set Clears TTL", func(t *testing.T) {
		if advance == nil {
			t.Skip("backend clock cannot be advanced")
		}
		id := prefix + "-persist"
		require.NoError(t, backend.SetWithTTL(ctx, id, domain.Record{}, time.Second))
		require.NoError(t, backend.Set(ctx, id, domain.Record{}))

		advance(5 * time.Second)
		ok, err := backend.Exists(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, fmt.Sprintf("%s should not expire after a plain Set", id))
	})
}
