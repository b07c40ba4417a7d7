// Package synth implements the Code Synthesizer: given a missing tool name
// and an observed parameter shape, it emits source text defining a callable
// of that exact name, choosing one of five template families by substring
// match on the name, and preserving a prior tool's parameter names/order
// when extending it.
//
// Grounded on core/code_generator.py's _generate_with_template dispatch
// chain (image/text_extractor/search/generic substring matching) and
// _parse_existing_function_params / _merge_params_with_backward_compatibility
// for the backward-compatibility rule; the pluggable remote back-end
// (spec.md §6 "Code Synthesis back-end ... may be a deterministic template
// engine or a remote large-model service") is grounded on manifold's
// pattern of selecting between anthropic-sdk-go and openai-go/v2 by model
// name prefix (completions.go / anthropic.go).
package synth

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"taskforge/internal/model"
)

// Family is one of the five template families chosen by name substring
// match.
type Family string

const (
	FamilyTranslate     Family = "translate"
	FamilyImageTransform Family = "imageTransform"
	FamilyTextExtract   Family = "textExtract"
	FamilySearch        Family = "search"
	FamilyGeneric       Family = "generic"
)

// ChooseFamily dispatches on tool name substring, the generic family always
// matching last (§4.3: "no template matches... the generic template
// always matches in practice").
func ChooseFamily(name string) Family {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "translat"):
		return FamilyTranslate
	case strings.Contains(lower, "image") || strings.Contains(lower, "img"):
		return FamilyImageTransform
	case strings.Contains(lower, "extract"):
		return FamilyTextExtract
	case strings.Contains(lower, "search"):
		return FamilySearch
	default:
		return FamilyGeneric
	}
}

// Request is the input to synthesis.
type Request struct {
	Name       string
	Parameters map[string]model.ParameterSchema
	// Existing holds the prior tool's parameter schema when one exists
	// under the same name, and ExistingOrder lists its names in the order
	// to preserve, for the backward-compatibility rule.
	Existing       map[string]model.ParameterSchema
	ExistingOrder  []string
}

// Backend is the opaque Code Synthesis back-end collaborator (spec.md §6).
// The core never inspects its internals.
type Backend interface {
	Synthesize(ctx context.Context, req Request) (sourceText string, err error)
}

// TemplateBackend is a deterministic, dependency-free Backend: the
// fallback used when no remote model is configured, and the one exercised
// by tests since its output is reproducible.
type TemplateBackend struct{}

func (TemplateBackend) Synthesize(_ context.Context, req Request) (string, error) {
	return Emit(req)
}

// Emit produces deterministic source text for req, applying the
// backward-compatibility rule first and then rendering the chosen family's
// body. Two calls with the same req and the same family always produce
// byte-identical text (§4.3 "Emission is deterministic").
func Emit(req Request) (string, error) {
	params := unionParameters(req)
	family := ChooseFamily(req.Name)

	names := paramNames(params, req.ExistingOrder)
	sig := renderSignature(req.Name, names, params)

	var body string
	switch family {
	case FamilyTranslate:
		body = "\ttext, _ := args[\"text\"].(string)\n\ttargetLang, _ := args[\"targetLang\"].(string)\n\treturn map[string]any{\"result\": text, \"targetLang\": targetLang}, nil"
	case FamilyImageTransform:
		body = "\tsrc, _ := args[\"image\"].(string)\n\treturn map[string]any{\"result\": src, \"transformed\": true}, nil"
	case FamilyTextExtract:
		body = "\ttext, _ := args[\"text\"].(string)\n\treturn map[string]any{\"content\": text}, nil"
	case FamilySearch:
		body = "\tquery, _ := args[\"query\"].(string)\n\treturn map[string]any{\"results\": []any{}, \"query\": query}, nil"
	case FamilyGeneric:
		body = "\treturn map[string]any{\"status\": \"ok\", \"args\": args}, nil"
	default:
		return "", fmt.Errorf("%w: no template for family %q", model.ErrSynthesis, family)
	}

	return sig + "\n" + body + "\n}\n", nil
}

// unionParameters applies the backward-compatibility rule: when a prior
// tool of the same name exists, its parameter schemas are kept and the
// union is returned. A new parameter without a declared default is marked
// optional (Required=false); no default value is filled in for it.
func unionParameters(req Request) map[string]model.ParameterSchema {
	if len(req.Existing) == 0 {
		return req.Parameters
	}
	union := make(map[string]model.ParameterSchema, len(req.Existing)+len(req.Parameters))
	for name, schema := range req.Existing {
		union[name] = schema
	}
	for name, schema := range req.Parameters {
		if _, already := union[name]; !already {
			if schema.Default == nil {
				schema.Required = false // new params must not break prior callers
			}
			union[name] = schema
		}
	}
	return union
}

// paramNames orders parameter names: prior names first (in their recorded
// order), then any new names sorted for determinism.
func paramNames(params map[string]model.ParameterSchema, priorOrder []string) []string {
	seen := make(map[string]bool, len(params))
	var out []string
	for _, n := range priorOrder {
		if _, ok := params[n]; ok && !seen[n] {
			out = append(out, n)
			seen[n] = true
		}
	}
	var rest []string
	for n := range params {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func renderSignature(name string, names []string, params map[string]model.ParameterSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// synthesized tool: %s\nfunc %s(args map[string]any) (any, error) {\n", name, name)
	for _, n := range names {
		schema := params[n]
		fmt.Fprintf(&b, "\t// %s: %s required=%v\n", n, schema.Type, schema.Required)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ExistingOrderFrom derives a deterministic declaration order for a prior
// schema map, since Go maps have no inherent order; callers that track the
// registry record's insertion order should prefer that instead.
func ExistingOrderFrom(schema map[string]model.ParameterSchema) []string {
	names := make([]string, 0, len(schema))
	for n := range schema {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
