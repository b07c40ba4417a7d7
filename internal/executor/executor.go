// Package executor runs a resolved plan node by node: resolving
// placeholders, adapting producer output to consumer shape, resolving or
// synthesizing the tool handle, invoking it, and emitting lifecycle
// events.
//
// Grounded on core/smart_pipeline_engine.py's execute_pipeline loop (step
// ordering: resolve -> adapt -> resolve-tool-or-synthesize -> invoke ->
// record -> emit) and on internal/orchestrator's handler.go error-taxonomy
// split between plan-fatal, node-fatal, and non-fatal warnings.
package executor

import (
	"context"
	"fmt"
	"time"

	"taskforge/internal/adapter"
	"taskforge/internal/model"
	"taskforge/internal/registry"
	"taskforge/internal/resolver"
	"taskforge/internal/synth"
)

// EventSink receives lifecycle events as the plan runs. Emit is called
// synchronously: the executor does not proceed until Emit returns, so a
// slow sink delays the run.
type EventSink interface {
	Emit(model.ExecutionEvent)
}

// EventSinkFunc adapts a plain function to EventSink.
type EventSinkFunc func(model.ExecutionEvent)

func (f EventSinkFunc) Emit(e model.ExecutionEvent) { f(e) }

// Executor runs plans against a Registry, synthesizing missing tools via a
// synth.Backend and persisting newly synthesized tools through the
// Registry's Catalog write-through.
type Executor struct {
	Registry    *registry.Registry
	Synth       synth.Backend
	Responder   ConversationalResponder
	NodeTimeout time.Duration // 0 means unbounded, per §5
}

// New builds an Executor. responder may be nil, in which case
// DefaultResponder{} is used.
func New(reg *registry.Registry, backend synth.Backend, responder ConversationalResponder) *Executor {
	if responder == nil {
		responder = DefaultResponder{}
	}
	return &Executor{Registry: reg, Synth: backend, Responder: responder}
}

// Run executes plan, emitting lifecycle events to sink, and returns the
// aggregate Result. Run never panics on tool failure; node errors are
// captured into the Result and halt further scheduling (§4.5, §7).
func (ex *Executor) Run(ctx context.Context, plan *model.Plan, sink EventSink) model.Result {
	start := time.Now()
	if sink == nil {
		sink = EventSinkFunc(func(model.ExecutionEvent) {})
	}

	if plan.ChatOnly {
		reply, err := ex.Responder.Respond(ctx, plan.UserText)
		if err != nil || reply == "" {
			reply = FallbackReply(plan.UserText)
		}
		sink.Emit(model.ExecutionEvent{
			Phase:     model.PhaseChatReply,
			Status:    model.StatusSuccess,
			Message:   reply,
			Timestamp: time.Now().UTC(),
		})
		return model.Result{Success: true, FinalOutput: reply, ExecutionTime: time.Since(start)}
	}

	if len(plan.Components) == 0 {
		sink.Emit(model.ExecutionEvent{Phase: model.PhaseSystemError, Status: model.StatusError, Message: model.ErrEmptyPlan.Error(), Timestamp: time.Now().UTC()})
		return model.Result{Success: false, Errors: []string{model.ErrEmptyPlan.Error()}, ExecutionTime: time.Since(start)}
	}

	order, err := resolver.BuildExecutionOrder(plan.Components)
	if err != nil {
		sink.Emit(model.ExecutionEvent{Phase: model.PhaseSystemError, Status: model.StatusError, Message: err.Error(), Timestamp: time.Now().UTC()})
		return model.Result{Success: false, Errors: []string{err.Error()}, ExecutionTime: time.Since(start)}
	}

	byID := make(map[string]model.Component, len(plan.Components))
	for _, c := range plan.Components {
		byID[c.ID] = c
	}

	sink.Emit(model.ExecutionEvent{Phase: model.PhasePipelineStart, Status: model.StatusProgress, Message: fmt.Sprintf("running %d nodes", len(order)), Timestamp: time.Now().UTC()})

	outputs := make(map[string]model.NodeOutput, len(order))
	var nodeResults []model.NodeOutput
	var warnMessages []string

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			sink.Emit(model.ExecutionEvent{Phase: model.PhasePipelineEnd, Status: model.StatusError, Message: "cancelled", Timestamp: time.Now().UTC()})
			return model.Result{
				Success:       false,
				NodeResults:   nodeResults,
				ExecutionTime: time.Since(start),
				Errors:        append([]string{err.Error()}, warnMessages...),
				DetailedLogs:  warnMessages,
				Cancelled:     true,
				Reason:        "cancelled",
			}
		}

		comp := byID[id]
		sink.Emit(model.ExecutionEvent{Phase: model.PhaseNodeStart, NodeID: id, ToolName: comp.ToolName, Status: model.StatusProgress, Timestamp: time.Now().UTC()})

		resolvedParams, result, nodeErr := ex.runNode(ctx, comp, outputs)
		warnMessages = append(warnMessages, result.warnings...)

		if nodeErr != nil {
			sink.Emit(model.ExecutionEvent{
				Phase: model.PhaseNodeError, NodeID: id, ToolName: comp.ToolName,
				Status: model.StatusError, Message: nodeErr.Error(), Timestamp: time.Now().UTC(),
			})
			elapsed := time.Since(start)
			allErrors := append([]string{nodeErr.Error()}, warnMessages...)
			return model.Result{
				Success:       false,
				NodeResults:   nodeResults,
				ExecutionTime: elapsed,
				Errors:        allErrors,
				DetailedLogs:  warnMessages,
			}
		}

		no := model.NodeOutput{NodeID: id, OutputKey: comp.Output.Key, Value: result.value, Descriptor: comp.Output}
		outputs[id] = no
		nodeResults = append(nodeResults, no)

		eventData := map[string]any{}
		if len(result.adapterNotes) > 0 {
			eventData["adapterNotes"] = result.adapterNotes
		}
		if len(result.warnings) > 0 {
			eventData["warnings"] = result.warnings
		}
		_ = resolvedParams
		sink.Emit(model.ExecutionEvent{
			Phase: model.PhaseNodeSuccess, NodeID: id, ToolName: comp.ToolName,
			Status: model.StatusSuccess, Message: SummarizeResult(result.value),
			Data: eventData, Timestamp: time.Now().UTC(),
		})
	}

	final := ExtractFinalOutput(plan, nodeResults)
	sink.Emit(model.ExecutionEvent{Phase: model.PhasePipelineEnd, Status: model.StatusSuccess, Message: "pipeline complete", Timestamp: time.Now().UTC()})

	return model.Result{
		Success:       true,
		NodeResults:   nodeResults,
		FinalOutput:   final,
		ExecutionTime: time.Since(start),
		DetailedLogs:  warnMessages,
	}
}

type nodeResult struct {
	value        any
	warnings     []string
	adapterNotes []string
}

// runNode performs the per-node sequence from §4.5: resolve placeholders,
// adapt referenced parameters against the consumer's known shape (peeking
// the Registry for a prior schema, since the tool may not yet be
// resolved), resolve or synthesize the handle, then invoke it.
func (ex *Executor) runNode(ctx context.Context, comp model.Component, outputs map[string]model.NodeOutput) (map[string]any, nodeResult, error) {
	var res nodeResult

	refsByParam := make(map[string][]resolver.Reference, len(comp.Params))
	for key, v := range comp.Params {
		if refs := resolver.ExtractReferences(v); len(refs) > 0 {
			refsByParam[key] = refs
		}
	}

	resolved, warnings, err := resolver.Resolve(comp.Params, outputs)
	if err != nil {
		return nil, res, err
	}
	for _, w := range warnings {
		res.warnings = append(res.warnings, fmt.Sprintf("node %s: %s", w.NodeID, w.Message))
	}

	targetShape, known := ex.Registry.PriorSchema(comp.ToolName)
	if known {
		for key := range refsByParam {
			schema, hasSchema := targetShape[key]
			if !hasSchema {
				continue
			}
			target := targetKindFor(schema.Type)
			if target == adapter.TargetAny {
				continue
			}
			spec := adapter.BuildAdapter(resolved[key], target, targetShape)
			if spec == nil {
				continue
			}
			if spec.Rule == model.RuleFallback {
				res.warnings = append(res.warnings, fmt.Sprintf("node %s: %s on param %q", comp.ID, model.WarnAdapterFallback, key))
			} else {
				res.adapterNotes = append(res.adapterNotes, fmt.Sprintf("%s:%s", key, spec.Rule))
			}
			adapted, err := adapter.Apply(spec, resolved[key], targetShape)
			if err != nil {
				return nil, res, err
			}
			resolved[key] = adapted
		}
	}

	handle, err := ex.resolveOrSynthesize(ctx, comp, targetShape, known, &res.warnings)
	if err != nil {
		return nil, res, err
	}

	nodeCtx := ctx
	var cancel context.CancelFunc
	if ex.NodeTimeout > 0 {
		nodeCtx, cancel = context.WithTimeout(ctx, ex.NodeTimeout)
		defer cancel()
	}

	value, err := handle.Invoke(nodeCtx, resolved)
	if err != nil {
		return resolved, res, fmt.Errorf("node %s (%s): %w", comp.ID, comp.ToolName, err)
	}
	res.value = value
	return resolved, res, nil
}

// resolveOrSynthesize resolves comp.ToolName through the Registry; on an
// unknown-tool miss it synthesizes a handle via the configured Backend and
// saves it back through the Registry. Two consecutive unresolved misses
// (the freshly-synthesized tool immediately fails to resolve) are fatal,
// per §4.3's "synthesis failure is node-fatal, not plan-fatal... except a
// second consecutive miss for the same node".
func (ex *Executor) resolveOrSynthesize(ctx context.Context, comp model.Component, priorSchema map[string]model.ParameterSchema, known bool, warnings *[]string) (registry.Handle, error) {
	handle, err := ex.Registry.Resolve(comp.ToolName)
	if err == nil {
		return handle, nil
	}
	if ex.Synth == nil {
		return nil, err
	}

	schema := paramsToSchema(comp.Params)
	req := synth.Request{Name: comp.ToolName, Parameters: schema}
	if known {
		req.Existing = priorSchema
		req.ExistingOrder = synth.ExistingOrderFrom(priorSchema)
	}

	sourceText, synthErr := ex.Synth.Synthesize(ctx, req)
	if synthErr != nil {
		return nil, fmt.Errorf("node %s: %w", comp.ID, synthErr)
	}

	union := schema
	if known {
		union = unionSchemas(priorSchema, schema)
	}

	saveErr := ex.Registry.Save(ctx, comp.ToolName, nil, "synthesized tool for "+comp.ToolName, model.ProvenanceSynthesized, union, sourceText)
	if saveErr != nil && !model.IsTransient(saveErr) {
		return nil, fmt.Errorf("node %s: %w", comp.ID, saveErr)
	}
	if saveErr != nil {
		*warnings = append(*warnings, fmt.Sprintf("node %s: %v", comp.ID, saveErr))
	}

	handle, err = ex.Registry.Resolve(comp.ToolName)
	if err != nil {
		return nil, fmt.Errorf("node %s: synthesized tool %s still unresolved: %w", comp.ID, comp.ToolName, err)
	}
	return handle, nil
}

func paramsToSchema(params map[string]any) map[string]model.ParameterSchema {
	out := make(map[string]model.ParameterSchema, len(params))
	for k, v := range params {
		out[k] = model.ParameterSchema{Type: inferValueType(v), Required: true}
	}
	return out
}

func inferValueType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case []any:
		return "sequence"
	case map[string]any:
		return "mapping"
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	default:
		return "any"
	}
}

func unionSchemas(existing, next map[string]model.ParameterSchema) map[string]model.ParameterSchema {
	out := make(map[string]model.ParameterSchema, len(existing)+len(next))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range next {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

func targetKindFor(t string) adapter.TargetKind {
	switch t {
	case "string":
		return adapter.TargetScalarString
	case "sequence", "array":
		return adapter.TargetSequence
	case "mapping", "object":
		return adapter.TargetMapping
	default:
		return adapter.TargetAny
	}
}
