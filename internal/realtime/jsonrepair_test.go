package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgumentsValidPassthrough(t *testing.T) {
	out := ParseArguments(`{"question":"abc","options":["A","B"]}`)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "abc", got["question"])
}

func TestParseArgumentsTruncatedString(t *testing.T) {
	out := ParseArguments(`{"question":"abc`)

	var got map[string]string
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "abc", got["question"])
}

func TestParseArgumentsUnclosedArray(t *testing.T) {
	out := ParseArguments(`{"options":["A","B"`)

	var got struct {
		Options []string `json:"options"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, []string{"A", "B"}, got.Options)
}

func TestParseArgumentsTrailingComma(t *testing.T) {
	out := ParseArguments(`{"a":1,`)

	var got map[string]int
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, 1, got["a"])
}

func TestParseArgumentsUnrepairableFallsBackToEmpty(t *testing.T) {
	assert.Equal(t, json.RawMessage("{}"), ParseArguments("not json at all"))
	assert.Equal(t, json.RawMessage("{}"), ParseArguments(`{"question":`))
}

func TestParseArgumentsEmpty(t *testing.T) {
	assert.Equal(t, json.RawMessage("{}"), ParseArguments(""))
	assert.Equal(t, json.RawMessage("{}"), ParseArguments("   "))
}

func TestRepairJSONBracketInsideString(t *testing.T) {
	out := ParseArguments(`{"q":"why {braces}?","n":1`)

	var got struct {
		Q string `json:"q"`
		N int    `json:"n"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "why {braces}?", got.Q)
	assert.Equal(t, 1, got.N)
}
