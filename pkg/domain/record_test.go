package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecord_CloneIsolation(t *testing.T) {
	orig := Record{
		"user":  "alice",
		"prefs": map[string]any{"theme": "dark"},
		"tags":  []any{"a", map[string]any{"b": 1}},
	}

	cp := orig.Clone()
	cp["prefs"].(map[string]any)["theme"] = "light"
	cp["tags"].([]any)[1].(map[string]any)["b"] = 2
	cp["user"] = "bob"

	assert.Equal(t, "dark", orig["prefs"].(map[string]any)["theme"])
	assert.Equal(t, 1, orig["tags"].([]any)[1].(map[string]any)["b"])
	assert.Equal(t, "alice", orig["user"])
	assert.Nil(t, Record(nil).Clone())
}

func TestSession_SnapshotIsImmutable(t *testing.T) {
	sess := NewSession(Record{"counter": 1, "nested": map[string]any{"x": 1}})

	sess.Set("counter", 2)
	sess.Values()["nested"].(map[string]any)["x"] = 2
	sess.Delete("missing")

	assert.Equal(t, Record{"counter": 1, "nested": map[string]any{"x": 1}}, sess.Snapshot())

	// Callers cannot reach into the stored baseline either.
	snap := sess.Snapshot()
	snap["counter"] = 99
	assert.Equal(t, 1, sess.Snapshot()["counter"])
}

func TestSession_Delta(t *testing.T) {
	sess := NewSession(Record{"a": 1, "b": 2})
	sess.Set("c", 3)
	sess.Delete("a")

	d := sess.Delta()
	assert.Equal(t, []string{"a"}, d.Deleted)
	assert.Equal(t, []string{"c"}, d.UpdatedKeys())
}

func TestSession_Accessors(t *testing.T) {
	sess := NewSession(nil)
	assert.Equal(t, 0, sess.Len())

	sess.Set("name", "x")
	sess.Set("n", float64(3))
	sess.Set("big", int64(4))
	sess.Set("num", json.Number("5"))
	sess.Set("ok", true)

	s, ok := sess.GetString("name")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	for key, want := range map[string]int{"n": 3, "big": 4, "num": 5} {
		n, ok := sess.GetInt(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, n, key)
	}

	b, ok := sess.GetBool("ok")
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = sess.GetInt("name")
	assert.False(t, ok)
	_, ok = sess.GetString("missing")
	assert.False(t, ok)

	sess.Clear()
	assert.Equal(t, 0, sess.Len())
}

func TestSession_NilSafety(t *testing.T) {
	var sess *Session
	sess.Set("a", 1)
	sess.Delete("a")
	sess.Clear()

	_, ok := sess.Get("a")
	assert.False(t, ok)
	assert.Nil(t, sess.Values())
	assert.Equal(t, Record{}, sess.Snapshot())
	assert.Nil(t, sess.Delta())

	zero := &Session{}
	assert.Nil(t, zero.Values())
	zero.Set("a", 1)
	assert.Equal(t, Record{"a": 1}, zero.Values())
}
