package codec_test

import (
	"testing"

	"github.com/aretw0/sessionstore/pkg/codec"
	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_RoundTrip(t *testing.T) {
	c := codec.JSON{}

	data, err := c.Encode(domain.Record{"counter": 1, "user": "alice"})
	require.NoError(t, err)

	rec, err := c.Decode(data)
	require.NoError(t, err)
	// JSON numbers come back as float64.
	assert.Equal(t, domain.Record{"counter": float64(1), "user": "alice"}, rec)
}

func TestJSON_NilEncodesEmptyObject(t *testing.T) {
	data, err := codec.JSON{}.Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestJSON_RejectsNonMappings(t *testing.T) {
	for _, raw := range []string{"0", "null", "[1,2]", `"text"`, "garbage"} {
		_, err := codec.JSON{}.Decode([]byte(raw))
		assert.ErrorIs(t, err, codec.ErrNotAMapping, raw)
	}
}

func TestJSON_UnsupportedValue(t *testing.T) {
	_, err := codec.JSON{}.Encode(domain.Record{"fn": func() {}})
	assert.Error(t, err)
}
