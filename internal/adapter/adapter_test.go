package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskforge/internal/model"
)

func TestAnalyzeReportsCompatibleOnExactMatch(t *testing.T) {
	shape := map[string]model.ParameterSchema{"text": {Type: "string", Required: true}}
	a := Analyze(map[string]any{"text": "hi"}, shape)
	assert.True(t, a.Compatible)
	assert.Empty(t, a.Missing)
	assert.Empty(t, a.TypeMismatches)
}

func TestAnalyzeReportsMissingRequired(t *testing.T) {
	shape := map[string]model.ParameterSchema{"text": {Type: "string", Required: true}}
	a := Analyze(map[string]any{}, shape)
	assert.False(t, a.Compatible)
	assert.Contains(t, a.Missing, "text")
}

func TestAnalyzeReportsTypeMismatch(t *testing.T) {
	shape := map[string]model.ParameterSchema{"text": {Type: "string", Required: true}}
	a := Analyze(map[string]any{"text": 7}, shape)
	assert.False(t, a.Compatible)
	assert.Contains(t, a.TypeMismatches, "text")
}

func TestBuildAdapterRule1ExactMatchIsNoOp(t *testing.T) {
	shape := map[string]model.ParameterSchema{"text": {Type: "string"}}
	spec := BuildAdapter(map[string]any{"text": "hi"}, TargetMapping, shape)
	assert.Nil(t, spec)
}

func TestBuildAdapterRule2ScalarFromMapPriorityKey(t *testing.T) {
	source := map[string]any{"reportContent": "body", "message": "ignored"}
	spec := BuildAdapter(source, TargetScalarString, nil)
	require.NotNil(t, spec)
	assert.Equal(t, model.RuleScalarFromMap, spec.Rule)
	assert.Equal(t, "reportContent", spec.PickedKey)

	out, err := Apply(spec, source, nil)
	require.NoError(t, err)
	assert.Equal(t, "body", out)
}

func TestBuildAdapterRule2FallsBackWhenNoPriorityKeyPopulated(t *testing.T) {
	source := map[string]any{"other": "x"}
	spec := BuildAdapter(source, TargetScalarString, nil)
	require.NotNil(t, spec)
	assert.Equal(t, model.RuleCanonicalText, spec.Rule)

	out, err := Apply(spec, source, nil)
	require.NoError(t, err)
	assert.Equal(t, canonicalText(source), out)
	assert.Equal(t, `{"other":"x"}`, out)
}

func TestBuildAdapterRule3SequenceFromResultsField(t *testing.T) {
	source := map[string]any{"results": []any{"a", "b"}}
	spec := BuildAdapter(source, TargetSequence, nil)
	require.NotNil(t, spec)
	assert.Equal(t, model.RuleSequenceFromMap, spec.Rule)

	out, err := Apply(spec, source, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestBuildAdapterRule4MapCopyFillsDefaults(t *testing.T) {
	shape := map[string]model.ParameterSchema{
		"text":  {Type: "string", Required: true},
		"level": {Type: "string", Required: true, Default: "info"},
	}
	source := map[string]any{"text": "hi", "extra": "kept"}
	spec := BuildAdapter(source, TargetMapping, shape)
	require.NotNil(t, spec)
	assert.Equal(t, model.RuleMapCopyDefault, spec.Rule)
	assert.Contains(t, spec.FilledKeys, "level")

	out, err := Apply(spec, source, shape)
	require.NoError(t, err)
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi", m["text"])
	assert.Equal(t, "info", m["level"])
	assert.Equal(t, "kept", m["extra"])
}

func TestBuildAdapterRule5FallbackOnNonMapSource(t *testing.T) {
	spec := BuildAdapter("plain string", TargetMapping, map[string]model.ParameterSchema{"text": {Type: "string"}})
	require.NotNil(t, spec)
	assert.Equal(t, model.RuleFallback, spec.Rule)

	out, err := Apply(spec, "plain string", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain string", out)
}

func TestApplyWithNilSpecPassesThrough(t *testing.T) {
	out, err := Apply(nil, "unchanged", nil)
	require.NoError(t, err)
	assert.Equal(t, "unchanged", out)
}

func TestCanonicalTextMarshalsNonScalar(t *testing.T) {
	assert.Equal(t, "", canonicalText(nil))
	assert.Equal(t, "hi", canonicalText("hi"))
	assert.Equal(t, `{"n":1}`, canonicalText(map[string]any{"n": 1}))
}
