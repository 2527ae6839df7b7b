package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidator_RejectsMismatch(t *testing.T) {
	v, err := Compile("t", map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"works": map[string]any{"type": "string"}},
		"required":             []any{"works"},
		"additionalProperties": false,
	})
	require.NoError(t, err)

	require.NoError(t, v.Validate(json.RawMessage(`{"works":"abcd"}`)))

	err = v.Validate(json.RawMessage(`{"works":1}`))
	require.Error(t, err)
}

func TestValidator_NilSchemaAcceptsAnything(t *testing.T) {
	v, err := Compile("t", nil)
	require.NoError(t, err)
	require.NoError(t, v.Validate(json.RawMessage(`{"anything":true}`)))
}
