package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskforge/internal/model"
)

type fakeLoader struct {
	loaded map[string]Handle
	err    error
}

func (f *fakeLoader) Load(name, sourceText string) (Handle, error) {
	if f.err != nil {
		return nil, f.err
	}
	if h, ok := f.loaded[name]; ok {
		return h, nil
	}
	return HandleFunc(func(ctx context.Context, args map[string]any) (any, error) { return sourceText, nil }), nil
}

type fakeSaver struct {
	upserts []model.CatalogRecord
	err     error
}

func (f *fakeSaver) Upsert(ctx context.Context, record model.CatalogRecord) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, record)
	return nil
}

func TestResolveLookupOrder(t *testing.T) {
	r := New(nil, nil)
	r.Register(model.ToolRecord{Name: "search", Provenance: model.ProvenanceBuiltIn}, HandleFunc(func(ctx context.Context, args map[string]any) (any, error) { return "builtin", nil }))
	r.Register(model.ToolRecord{Name: "search", Provenance: model.ProvenanceSynthesized}, HandleFunc(func(ctx context.Context, args map[string]any) (any, error) { return "synthesized", nil }))
	r.Register(model.ToolRecord{Name: "search", Provenance: model.ProvenanceUserSupplied}, HandleFunc(func(ctx context.Context, args map[string]any) (any, error) { return "user", nil }))

	h, err := r.Resolve("search")
	require.NoError(t, err)
	out, err := h.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "user", out)
}

func TestResolveUnknownTool(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Resolve("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnknownTool)
}

func TestResolveLoadsFromSourceText(t *testing.T) {
	r := New(&fakeLoader{}, nil)
	r.Register(model.ToolRecord{Name: "custom", Provenance: model.ProvenanceSynthesized, SourceText: "def custom(): pass"}, nil)

	h, err := r.Resolve("custom")
	require.NoError(t, err)
	out, err := h.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "def custom(): pass", out)
}

func TestRegisterIdempotent(t *testing.T) {
	r := New(nil, nil)
	rec := model.ToolRecord{Name: "echo", Provenance: model.ProvenanceBuiltIn, Description: "echoes"}
	h := HandleFunc(func(ctx context.Context, args map[string]any) (any, error) { return args, nil })
	r.Register(rec, h)
	r.Register(rec, h)
	assert.Len(t, r.List(), 1)
}

func TestSaveWritesThroughAndIsNonFatalOnCatalogFailure(t *testing.T) {
	saver := &fakeSaver{err: assertErr}
	r := New(nil, saver)
	schema := map[string]model.ParameterSchema{"text": {Type: "string", Required: true}}
	err := r.Save(context.Background(), "translate", HandleFunc(func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }), "translates text", model.ProvenanceSynthesized, schema, "func translate() {}")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrCatalogSave)

	// In-memory record is kept despite the catalog failure.
	h, resolveErr := r.Resolve("translate")
	require.NoError(t, resolveErr)
	assert.NotNil(t, h)
}

func TestPriorSchemaFeedsBackwardCompatibility(t *testing.T) {
	r := New(nil, nil)
	schema := map[string]model.ParameterSchema{"text": {Type: "string", Required: true}}
	r.Register(model.ToolRecord{Name: "translate", Provenance: model.ProvenanceSynthesized, ParameterSchema: schema}, HandleFunc(func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }))

	got, ok := r.PriorSchema("translate")
	require.True(t, ok)
	assert.Equal(t, schema, got)
}

func TestInferSchemaFromTaggedStruct(t *testing.T) {
	type args struct {
		Query string `tf:"query,required"`
		Limit int    `tf:"limit"`
	}
	schema := inferSchema(args{})
	assert.True(t, schema["query"].Required)
	assert.Equal(t, "string", schema["query"].Type)
	assert.Equal(t, "number", schema["limit"].Type)
	assert.False(t, schema["limit"].Required)
}

var assertErr = &catalogErr{"boom"}

type catalogErr struct{ msg string }

func (e *catalogErr) Error() string { return e.msg }
