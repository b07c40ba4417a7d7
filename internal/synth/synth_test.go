package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskforge/internal/model"
)

func TestChooseFamilyBySubstring(t *testing.T) {
	assert.Equal(t, FamilyTranslate, ChooseFamily("customTranslator"))
	assert.Equal(t, FamilyImageTransform, ChooseFamily("imageResizer"))
	assert.Equal(t, FamilyTextExtract, ChooseFamily("pdfTextExtractor"))
	assert.Equal(t, FamilySearch, ChooseFamily("webSearch"))
	assert.Equal(t, FamilyGeneric, ChooseFamily("doStuff"))
}

func TestEmitIsDeterministic(t *testing.T) {
	req := Request{Name: "customTranslator", Parameters: map[string]model.ParameterSchema{
		"text":       {Type: "string", Required: true},
		"targetLang": {Type: "string", Required: true},
	}}
	first, err := Emit(req)
	require.NoError(t, err)
	second, err := Emit(req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "func customTranslator(args map[string]any)")
}

func TestBackwardCompatibilityUnionPreservesPriorParams(t *testing.T) {
	req := Request{
		Name: "customTranslator",
		Parameters: map[string]model.ParameterSchema{
			"text":   {Type: "string", Required: true},
			"format": {Type: "string", Required: true}, // new param
		},
		Existing: map[string]model.ParameterSchema{
			"text":       {Type: "string", Required: true},
			"targetLang": {Type: "string", Required: true},
		},
		ExistingOrder: []string{"text", "targetLang"},
	}
	out, err := Emit(req)
	require.NoError(t, err)
	assert.Contains(t, out, "text")
	assert.Contains(t, out, "targetLang")
	assert.Contains(t, out, "format")
}

func TestSelectFallsBackToTemplateWithoutAPIKey(t *testing.T) {
	b := Select("claude-3-5-sonnet-latest", "", "")
	_, ok := b.(TemplateBackend)
	assert.True(t, ok)
}

func TestSelectRoutesByModelPrefix(t *testing.T) {
	_, ok := Select("claude-3-5-sonnet-latest", "key", "").(*AnthropicBackend)
	assert.True(t, ok)
	_, ok = Select("gpt-4o-mini", "key", "").(*OpenAIBackend)
	assert.True(t, ok)
}
