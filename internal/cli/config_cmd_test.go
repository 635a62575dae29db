package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceValueTypedKeys(t *testing.T) {
	v, err := coerceValue("ui.port", "8090")
	require.NoError(t, err)
	assert.Equal(t, 8090, v)

	_, err = coerceValue("ui.port", "eight")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects an integer")

	v, err = coerceValue("ui.allowedOrigins", "https://a.example, https://b.example")
	require.NoError(t, err)
	assert.Equal(t, []any{"https://a.example", "https://b.example"}, v)

	v, err = coerceValue("store.backend", "redis")
	require.NoError(t, err)
	assert.Equal(t, "redis", v)

	_, err = coerceValue("store.backend", "postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of")
}

func TestCoerceValueUnknownKeys(t *testing.T) {
	v, err := coerceValue("realtime.voice", "marin")
	require.NoError(t, err)
	assert.Equal(t, "marin", v)

	v, err = coerceValue("custom.flag", "TRUE")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = coerceValue("custom.count", "42")
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = coerceValue("custom.ratio", "0.5")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
}
