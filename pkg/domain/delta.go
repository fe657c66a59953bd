package domain

import (
	"bytes"
	"encoding/json"
	"reflect"
	"slices"
)

// Delta represents the changes one request made to a session.
// Keys unchanged between the baseline and the new record do not appear.
type Delta struct {
	// Updated holds keys that were added or whose value changed.
	Updated Record

	// Deleted lists keys present in the baseline but gone from the new record.
	Deleted []string
}

// Diff calculates the difference between the baseline old and the record new.
// Values that encode to the same JSON count as unchanged, so an int written
// by the application equals the float64 a codec read back.
// It returns nil if either side is nil.
func Diff(old, new Record) *Delta {
	if old == nil || new == nil {
		return nil
	}

	delta := &Delta{Updated: make(Record)}

	// Check for Added or Modified
	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !sameValue(oldVal, newVal) {
			delta.Updated[k] = newVal
		}
	}

	// Check for Deletions
	for k := range old {
		if _, exists := new[k]; !exists {
			delta.Deleted = append(delta.Deleted, k)
		}
	}
	slices.Sort(delta.Deleted)

	return delta
}

func sameValue(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	ea, err := json.Marshal(a)
	if err != nil {
		return false
	}
	eb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

// IsEmpty checks if the delta contains any changes.
func (d *Delta) IsEmpty() bool {
	return d == nil || (len(d.Updated) == 0 && len(d.Deleted) == 0)
}

// UpdatedKeys returns the updated keys in sorted order.
func (d *Delta) UpdatedKeys() []string {
	if d == nil {
		return nil
	}
	return d.Updated.Keys()
}

// Apply writes the delta into cur and returns it.
// Deletions are applied before updates. A nil cur starts from an empty record.
func (d *Delta) Apply(cur Record) Record {
	if cur == nil {
		cur = make(Record)
	}
	if d == nil {
		return cur
	}
	for _, k := range d.Deleted {
		delete(cur, k)
	}
	for k, v := range d.Updated {
		cur[k] = v
	}
	return cur
}

// Merge reconciles a request's changes with the record currently stored.
//
// old is the snapshot the request read, new is what the request produced and
// cur is what the store holds now, possibly written by a concurrent request
// since old was read. Keys the request removed are deleted from cur, keys it
// added or changed are written into cur and every other key of cur is left
// alone. Two writers touching the same key resolve as last writer wins.
//
// If old or new is nil the merge is abandoned: cur is returned unchanged
// together with ErrMalformedRecord.
func Merge(old, new, cur Record) (Record, *Delta, error) {
	delta := Diff(old, new)
	if delta == nil {
		if cur == nil {
			cur = make(Record)
		}
		return cur, nil, ErrMalformedRecord
	}
	return delta.Apply(cur), delta, nil
}
