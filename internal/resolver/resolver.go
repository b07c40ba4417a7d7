// Package resolver implements the Placeholder Resolver: it extracts
// $id.output[.key] references from a component's parameter structure,
// substitutes resolved values from completed nodes, and computes a
// topological execution order over the plan's implicit dependency graph.
//
// Grounded on core/smart_pipeline_engine.py's _extract_placeholder_references
// and the resolver's surrounding dependency-graph walk in the original
// source; expressed here with explicit Go types rather than dynamic
// reflection.
package resolver

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"taskforge/internal/model"
)

// placeholderPattern matches $id.output or $id.output.key, with
// id := [A-Za-z_][A-Za-z0-9_]*  and  key := [A-Za-z_][A-Za-z0-9_]*
var placeholderPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)\.output(?:\.([A-Za-z_][A-Za-z0-9_]*))?`)

// Reference is one parsed $id.output[.key] occurrence.
type Reference struct {
	ID  string
	Key string // empty when the placeholder has no .key suffix
}

// ExtractReferences recursively walks params and returns every placeholder
// reference found in any string leaf, in the order encountered.
func ExtractReferences(params any) []Reference {
	var out []Reference
	walkStrings(params, func(s string) {
		for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
			out = append(out, Reference{ID: m[1], Key: m[2]})
		}
	})
	return out
}

func walkStrings(v any, fn func(string)) {
	switch t := v.(type) {
	case string:
		fn(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkStrings(t[k], fn)
		}
	case []any:
		for _, e := range t {
			walkStrings(e, fn)
		}
	}
}

// Warning is a non-fatal event recorded while resolving placeholders, e.g.
// a .key that fell back to the full stored value.
type Warning struct {
	NodeID  string
	Message string
}

// Resolve returns a deep copy of params with every placeholder substituted
// against outputs. A leaf string equal to a single whole placeholder is
// replaced by the referenced value at its native type; a leaf string mixing
// a placeholder with other text has every placeholder replaced by the
// referenced value's compact textual rendering. Missing references are
// reported as a fatal error.
func Resolve(params map[string]any, outputs map[string]model.NodeOutput) (map[string]any, []Warning, error) {
	var warnings []Warning
	out, err := resolveValue(params, outputs, &warnings)
	if err != nil {
		return nil, warnings, err
	}
	m, _ := out.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, warnings, nil
}

func resolveValue(v any, outputs map[string]model.NodeOutput, warnings *[]Warning) (any, error) {
	switch t := v.(type) {
	case string:
		return resolveString(t, outputs, warnings)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, sub := range t {
			r, err := resolveValue(sub, outputs, warnings)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, sub := range t {
			r, err := resolveValue(sub, outputs, warnings)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveString(s string, outputs map[string]model.NodeOutput, warnings *[]Warning) (any, error) {
	matches := placeholderPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	// A leaf string equal to exactly one whole placeholder resolves to the
	// referenced value at its native type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		m := matches[0]
		id := s[m[2]:m[3]]
		key := ""
		if m[4] != -1 {
			key = s[m[4]:m[5]]
		}
		return lookup(id, key, outputs, warnings)
	}

	// Mixed text: every placeholder is replaced by its textual rendering.
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		id := s[m[2]:m[3]]
		key := ""
		if m[4] != -1 {
			key = s[m[4]:m[5]]
		}
		val, err := lookup(id, key, outputs, warnings)
		if err != nil {
			return nil, err
		}
		b.WriteString(renderText(val))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

// lookup applies the key-path semantics of §4.1: if the producer's stored
// value is a mapping and key is a top-level field, use that field;
// otherwise, if the producer's outputKey equals key, use the full value;
// otherwise fall back to the full value and record a warning.
func lookup(id, key string, outputs map[string]model.NodeOutput, warnings *[]Warning) (any, error) {
	no, ok := outputs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s.output%s", model.ErrDanglingReference, id, keySuffix(key))
	}
	if key == "" {
		return no.Value, nil
	}
	if m, ok := no.Value.(map[string]any); ok {
		if v, present := m[key]; present {
			return v, nil
		}
	}
	if no.OutputKey == key {
		return no.Value, nil
	}
	*warnings = append(*warnings, Warning{NodeID: id, Message: fmt.Sprintf("key %q not found on %s.output; using full value", key, id)})
	return no.Value, nil
}

func keySuffix(key string) string {
	if key == "" {
		return ""
	}
	return "." + key
}

// renderText renders a resolved value as a compact canonical textual form
// for substitution inside mixed strings. Scalars render directly; mappings
// and sequences render as compact JSON.
func renderText(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// BuildExecutionOrder produces a topological order over the implicit
// dependency graph (edge a -> b when b's params reference a). Components
// with no dependency relation retain their original plan order; ties are
// broken by plan order. A cycle is reported as model.ErrCyclicPlan.
func BuildExecutionOrder(components []model.Component) ([]string, error) {
	index := make(map[string]int, len(components))
	for i, c := range components {
		index[c.ID] = i
	}

	// deps[b] = set of a's that b depends on (edge a -> b)
	deps := make(map[string]map[string]struct{}, len(components))
	for _, c := range components {
		deps[c.ID] = map[string]struct{}{}
	}
	for _, c := range components {
		for _, ref := range ExtractReferences(c.Params) {
			if _, known := index[ref.ID]; !known {
				return nil, fmt.Errorf("%w: %s references unknown component %s", model.ErrDanglingReference, c.ID, ref.ID)
			}
			if ref.ID == c.ID {
				return nil, fmt.Errorf("%w: %s references itself", model.ErrCyclicPlan, c.ID)
			}
			deps[c.ID][ref.ID] = struct{}{}
		}
	}

	visited := make(map[string]int, len(components)) // 0=unvisited,1=visiting,2=done
	var order []string

	var visit func(id string) error
	visit = func(id string) error {
		switch visited[id] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("%w: cycle through %s", model.ErrCyclicPlan, id)
		}
		visited[id] = 1
		// Visit dependencies in deterministic (plan-order) sequence.
		need := deps[id]
		depIDs := make([]string, 0, len(need))
		for d := range need {
			depIDs = append(depIDs, d)
		}
		sort.Slice(depIDs, func(i, j int) bool { return index[depIDs[i]] < index[depIDs[j]] })
		for _, d := range depIDs {
			if err := visit(d); err != nil {
				return err
			}
		}
		visited[id] = 2
		order = append(order, id)
		return nil
	}

	for _, c := range components {
		if err := visit(c.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Validate asserts that every referenced id precedes its referrer in order
// and that no referenced id is missing.
func Validate(components []model.Component, order []string) error {
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	byID := make(map[string]model.Component, len(components))
	for _, c := range components {
		byID[c.ID] = c
	}
	for _, id := range order {
		c, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: %s not in plan", model.ErrDanglingReference, id)
		}
		for _, ref := range ExtractReferences(c.Params) {
			refPos, known := position[ref.ID]
			if !known {
				return fmt.Errorf("%w: %s references missing %s", model.ErrDanglingReference, id, ref.ID)
			}
			if refPos >= position[id] {
				return fmt.Errorf("%w: %s does not precede %s", model.ErrCyclicPlan, ref.ID, id)
			}
		}
	}
	return nil
}
