package domain

import (
	"encoding/json"
	"maps"
	"slices"
)

// Record is the persisted state of one client's session.
type Record map[string]any

// Clone returns a copy of the record that shares no nested maps or slices
// with the receiver. A nil record clones to nil.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Keys returns the record keys in sorted order.
func (r Record) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Session is the in-flight view of a Record during one request.
// It pairs the live values mutated by application code with the Snapshot
// taken when the record was read, which later serves as the merge baseline.
type Session struct {
	values   Record
	snapshot Record
}

// NewSession wraps rec and captures its snapshot.
// A nil rec starts an empty session.
func NewSession(rec Record) *Session {
	if rec == nil {
		rec = Record{}
	}
	return &Session{
		values:   rec,
		snapshot: rec.Clone(),
	}
}

// Values returns the live record. Mutations through the returned map are
// visible to the session.
func (s *Session) Values() Record {
	if s == nil {
		return nil
	}
	return s.values
}

// Snapshot returns a copy of the baseline captured when the session was read.
// Sessions built without a baseline report an empty one.
func (s *Session) Snapshot() Record {
	if s == nil || s.snapshot == nil {
		return Record{}
	}
	return s.snapshot.Clone()
}

// Get retrieves a value from session data
func (s *Session) Get(key string) (any, bool) {
	if s == nil || s.values == nil {
		return nil, false
	}
	val, ok := s.values[key]
	return val, ok
}

// GetString retrieves a string value from session data
func (s *Session) GetString(key string) (string, bool) {
	val, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt retrieves an int value from session data.
// Numbers decoded from JSON arrive as float64 and are accepted.
func (s *Session) GetInt(key string) (int, bool) {
	val, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

// GetBool retrieves a bool value from session data
func (s *Session) GetBool(key string) (bool, bool) {
	val, ok := s.Get(key)
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// Set stores a value in session data
func (s *Session) Set(key string, value any) {
	if s == nil {
		return
	}
	if s.values == nil {
		s.values = make(Record)
	}
	s.values[key] = value
}

// Delete removes a value from session data
func (s *Session) Delete(key string) {
	if s == nil || s.values == nil {
		return
	}
	delete(s.values, key)
}

// Clear removes all data from the session
func (s *Session) Clear() {
	if s == nil {
		return
	}
	s.values = make(Record)
}

// Len returns the number of keys in the session.
func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Delta returns the changes made since the snapshot.
func (s *Session) Delta() *Delta {
	if s == nil {
		return nil
	}
	return Diff(s.Snapshot(), s.values)
}
