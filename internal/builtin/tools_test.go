package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskforge/internal/registry"
)

func TestEchoReturnsTextUnchanged(t *testing.T) {
	reg := registry.New(nil, nil)
	Register(reg)

	h, err := reg.Resolve("echo")
	require.NoError(t, err)

	out, err := h.Invoke(context.Background(), map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": "hello"}, out)
}

func TestFormatReportJoinsItemsWithNewlines(t *testing.T) {
	reg := registry.New(nil, nil)
	Register(reg)

	h, err := reg.Resolve("formatReport")
	require.NoError(t, err)

	out, err := h.Invoke(context.Background(), map[string]any{"items": []any{"a", "b", 3}})
	require.NoError(t, err)
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a\nb\n3", m["reportContent"])
}
