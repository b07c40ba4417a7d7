package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackToInfoOnUnknownLevel(t *testing.T) {
	log := New("not-a-real-level", "")
	assert.Equal(t, "info", log.GetLevel().String())
}

func TestNewWritesToLogFileWhenPathGiven(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskforged.log")
	log := New("debug", path)
	log.Info().Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestForPlanAddsCorrelationFields(t *testing.T) {
	base := New("info", "")
	plan := ForPlan(base, "plan-1", "req-1")
	assert.NotEqual(t, base, plan)
}
