// Package codec serializes session records for byte-oriented backends.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/sessionstore/pkg/domain"
)

// ErrNotAMapping is returned when stored bytes decode into something other than a record.
var ErrNotAMapping = errors.New("stored value is not a mapping")

// Codec converts records to and from their stored form.
type Codec interface {
	Encode(rec domain.Record) ([]byte, error)
	Decode(data []byte) (domain.Record, error)
}

// JSON is the default Codec.
type JSON struct{}

// Encode marshals rec as a JSON object. A nil record is stored as {}.
func (JSON) Encode(rec domain.Record) ([]byte, error) {
	if rec == nil {
		rec = domain.Record{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

// Decode unmarshals a JSON object. Any other JSON value is ErrNotAMapping.
func (JSON) Decode(data []byte) (domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Join(ErrNotAMapping, err)
	}
	if rec == nil {
		return nil, ErrNotAMapping
	}
	return rec, nil
}
