package domain

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Options are the per-request flags the host hands to the store.
type Options struct {
	// Renew issues a new session ID for the current content and invalidates the old one.
	Renew bool `mapstructure:"renew"`

	// Drop deletes the session and suppresses the cookie.
	Drop bool `mapstructure:"drop"`

	// Defer suppresses the cookie for this response without touching storage.
	Defer bool `mapstructure:"defer"`

	// ExpireAfter bounds the lifetime of the persisted record. Zero means no expiry.
	ExpireAfter time.Duration `mapstructure:"expire_after"`

	// Concurrent signals that the host may serve requests in parallel,
	// which turns store locking on.
	Concurrent bool `mapstructure:"concurrent"`
}

// DecodeOptions builds Options from a loosely typed map, as hosts keep them
// next to the request (for example {"renew": true, "expire_after": 60}).
// expire_after accepts integer seconds or a duration string such as "90s".
// Unknown keys are ignored.
func DecodeOptions(raw map[string]any) (Options, error) {
	var opts Options
	if len(raw) == 0 {
		return opts, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, fmt.Errorf("failed to build options decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return opts, fmt.Errorf("failed to decode session options: %w", err)
	}
	return opts, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsToDurationHook reads bare numbers as seconds when the target is a time.Duration.
func secondsToDurationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(reflect.ValueOf(data).Uint()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
	default:
		return data, nil
	}
}
