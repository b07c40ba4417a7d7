package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskforge/internal/model"
	"taskforge/internal/registry"
	"taskforge/internal/synth"
)

type recordingSink struct {
	events []model.ExecutionEvent
}

func (s *recordingSink) Emit(e model.ExecutionEvent) { s.events = append(s.events, e) }

func (s *recordingSink) phases() []model.EventPhase {
	out := make([]model.EventPhase, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Phase)
	}
	return out
}

// Scenario 1: a two-node linear plan where node B consumes node A's whole
// output via a native-typed placeholder.
func TestTwoNodeLinearPlan(t *testing.T) {
	reg := registry.New(nil, nil)
	reg.RegisterBuiltIn("fetch", "fetches a value", map[string]model.ParameterSchema{}, nil,
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"value": 42}, nil
		})
	reg.RegisterBuiltIn("double", "doubles a number", map[string]model.ParameterSchema{
		"n": {Type: "number", Required: true},
	}, nil, func(ctx context.Context, args map[string]any) (any, error) {
		n, _ := args["n"].(map[string]any)
		v, _ := n["value"].(int)
		return map[string]any{"result": v * 2}, nil
	})

	plan := &model.Plan{
		ID: "p1",
		Components: []model.Component{
			{ID: "a", ToolName: "fetch", Params: map[string]any{}, Output: model.OutputSpec{Key: "value"}},
			{ID: "b", ToolName: "double", Params: map[string]any{"n": "$a.output"}, Output: model.OutputSpec{Key: "result"}},
		},
	}

	ex := New(reg, synth.TemplateBackend{}, nil)
	sink := &recordingSink{}
	result := ex.Run(context.Background(), plan, sink)

	require.True(t, result.Success)
	require.Len(t, result.NodeResults, 2)
	assert.Contains(t, sink.phases(), model.PhaseNodeSuccess)
	assert.Contains(t, sink.phases(), model.PhasePipelineEnd)
}

// Scenario: a plan referencing a missing component id is plan-fatal before
// any node runs.
func TestDanglingReferenceIsPlanFatal(t *testing.T) {
	reg := registry.New(nil, nil)
	plan := &model.Plan{
		ID: "p2",
		Components: []model.Component{
			{ID: "a", ToolName: "whatever", Params: map[string]any{"x": "$missing.output"}},
		},
	}
	ex := New(reg, synth.TemplateBackend{}, nil)
	sink := &recordingSink{}
	result := ex.Run(context.Background(), plan, sink)

	assert.False(t, result.Success)
	assert.Contains(t, sink.phases(), model.PhaseSystemError)
}

// Scenario: an unknown tool triggers synthesis via the template backend
// and the node still completes.
func TestUnknownToolSynthesizesAndProceeds(t *testing.T) {
	var saved model.CatalogRecord
	catalog := fakeCatalog{upsert: func(ctx context.Context, r model.CatalogRecord) error {
		saved = r
		return nil
	}}
	loader := fakeLoaderAlwaysSucceeds{}
	reg := registry.New(loader, catalog)

	plan := &model.Plan{
		ID: "p3",
		Components: []model.Component{
			{ID: "a", ToolName: "customTranslator", Params: map[string]any{"text": "hello", "targetLang": "fr"}, Output: model.OutputSpec{Key: "result"}},
		},
	}
	ex := New(reg, synth.TemplateBackend{}, nil)
	sink := &recordingSink{}
	result := ex.Run(context.Background(), plan, sink)

	require.True(t, result.Success)
	assert.Equal(t, "customTranslator", saved.Name)
	assert.Equal(t, model.ProvenanceSynthesized, saved.Provenance)
}

// Scenario: node failure halts scheduling of subsequent nodes.
func TestNodeFailureHaltsScheduling(t *testing.T) {
	reg := registry.New(nil, nil)
	reached := false
	reg.RegisterBuiltIn("willFail", "fails", map[string]model.ParameterSchema{}, nil,
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, assert.AnError
		})
	reg.RegisterBuiltIn("neverRuns", "never runs", map[string]model.ParameterSchema{}, nil,
		func(ctx context.Context, args map[string]any) (any, error) {
			reached = true
			return nil, nil
		})

	plan := &model.Plan{
		ID: "p4",
		Components: []model.Component{
			{ID: "a", ToolName: "willFail", Params: map[string]any{}, Output: model.OutputSpec{Key: "x"}},
			{ID: "b", ToolName: "neverRuns", Params: map[string]any{"v": "$a.output"}, Output: model.OutputSpec{Key: "y"}},
		},
	}
	ex := New(reg, synth.TemplateBackend{}, nil)
	sink := &recordingSink{}
	result := ex.Run(context.Background(), plan, sink)

	assert.False(t, result.Success)
	assert.False(t, reached)
	assert.Contains(t, sink.phases(), model.PhaseNodeError)
}

// Scenario: chat-only input short-circuits the DAG entirely.
func TestChatOnlyShortCircuits(t *testing.T) {
	reg := registry.New(nil, nil)
	ex := New(reg, synth.TemplateBackend{}, nil)
	plan := &model.Plan{ID: "p5", ChatOnly: true, UserText: "hello there"}
	sink := &recordingSink{}
	result := ex.Run(context.Background(), plan, sink)

	require.True(t, result.Success)
	assert.Equal(t, []model.EventPhase{model.PhaseChatReply}, sink.phases())
	assert.Empty(t, result.NodeResults)
}

// Scenario 6: weather-intent final output produces the five fixed lines.
func TestWeatherIntentFinalOutput(t *testing.T) {
	reg := registry.New(nil, nil)
	reg.RegisterBuiltIn("search", "searches", map[string]model.ParameterSchema{}, nil,
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{
				"metadata": map[string]any{
					"parameters": map[string]any{"query": "what's the weather in Paris"},
				},
				"data": map[string]any{
					"primary": []any{
						map[string]any{"title": "Paris weather", "description": "sunny, 18~25°C, north wind 3 level, air quality good"},
					},
				},
			}, nil
		})
	plan := &model.Plan{
		ID: "p6",
		Components: []model.Component{
			{ID: "a", ToolName: "search", Params: map[string]any{}, Output: model.OutputSpec{Key: "data"}},
		},
	}
	ex := New(reg, synth.TemplateBackend{}, nil)
	result := ex.Run(context.Background(), plan, &recordingSink{})

	require.True(t, result.Success)
	out, ok := result.FinalOutput.(string)
	require.True(t, ok)
	assert.Contains(t, out, "📍")
	assert.Contains(t, out, "18°C~25°C")
}

// Adapter rule 2: a mapping output feeding a string parameter is reduced to
// its first populated priority key (here reportContent).
func TestAdapterScalarFromMappingRule(t *testing.T) {
	reg := registry.New(nil, nil)
	reg.RegisterBuiltIn("produce", "produces a mapping", map[string]model.ParameterSchema{}, nil,
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"reportContent": "a full report"}, nil
		})
	reg.RegisterBuiltIn("consume", "consumes a scalar string", map[string]model.ParameterSchema{
		"text": {Type: "string", Required: true},
	}, nil, func(ctx context.Context, args map[string]any) (any, error) {
		s, _ := args["text"].(string)
		return map[string]any{"result": "got:" + s}, nil
	})
	plan := &model.Plan{
		ID: "p7",
		Components: []model.Component{
			{ID: "a", ToolName: "produce", Params: map[string]any{}, Output: model.OutputSpec{Key: "reportContent"}},
			{ID: "b", ToolName: "consume", Params: map[string]any{"text": "$a.output"}, Output: model.OutputSpec{Key: "result"}},
		},
	}
	ex := New(reg, synth.TemplateBackend{}, nil)
	result := ex.Run(context.Background(), plan, &recordingSink{})

	require.True(t, result.Success)
	last := result.NodeResults[len(result.NodeResults)-1].Value.(map[string]any)
	assert.Equal(t, "got:a full report", last["result"])
}

// Cooperative cancellation: a plan whose context is already cancelled
// before the second node starts must stop scheduling further nodes and
// report Cancelled, without running node b.
func TestCancelledContextHaltsScheduling(t *testing.T) {
	reg := registry.New(nil, nil)
	ranB := false
	reg.RegisterBuiltIn("a", "first", map[string]model.ParameterSchema{}, nil,
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"result": "a"}, nil
		})
	reg.RegisterBuiltIn("b", "second", map[string]model.ParameterSchema{}, nil,
		func(ctx context.Context, args map[string]any) (any, error) {
			ranB = true
			return map[string]any{"result": "b"}, nil
		})

	plan := &model.Plan{
		ID: "p8",
		Components: []model.Component{
			{ID: "a", ToolName: "a", Params: map[string]any{}, Output: model.OutputSpec{Key: "result"}},
			{ID: "b", ToolName: "b", Params: map[string]any{}, Output: model.OutputSpec{Key: "result"}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := New(reg, synth.TemplateBackend{}, nil)
	result := ex.Run(ctx, plan, &recordingSink{})

	assert.False(t, result.Success)
	assert.True(t, result.Cancelled)
	assert.Equal(t, "cancelled", result.Reason)
	assert.False(t, ranB)
}

type fakeCatalog struct {
	upsert func(ctx context.Context, r model.CatalogRecord) error
}

func (f fakeCatalog) Upsert(ctx context.Context, r model.CatalogRecord) error { return f.upsert(ctx, r) }

type fakeLoaderAlwaysSucceeds struct{}

func (fakeLoaderAlwaysSucceeds) Load(name, sourceText string) (registry.Handle, error) {
	return registry.HandleFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return map[string]any{"result": "synthesized:" + name}, nil
	}), nil
}
