// Package adapter implements the Adapter Layer: reconciling a producer's
// output value with the parameter shape a consumer expects, without
// requiring exact prearranged contracts between tool authors.
//
// Grounded on core/smart_pipeline_engine.py's _check_and_adapt_compatibility
// and the teacher's Adapter Layer description in SPEC_FULL.md §4.4; built
// fresh (the original is dynamically typed, this expresses the same five
// ordered rules over explicit Go shapes).
package adapter

import (
	"encoding/json"
	"fmt"

	"taskforge/internal/model"
)

// scalarPriorityKeys is the fixed priority list consulted by rule 2.
var scalarPriorityKeys = []string{"formattedText", "reportContent", "message", "content", "text", "result"}

// Analysis is the result of analyzing a shape mismatch.
type Analysis struct {
	Compatible     bool
	Missing        []string
	TypeMismatches []string
}

// Analyze reports whether sourceValue already satisfies targetShape without
// adaptation, and what would need to change if not.
func Analyze(sourceValue any, targetShape map[string]model.ParameterSchema) Analysis {
	srcMap, isMap := sourceValue.(map[string]any)
	if !isMap {
		return Analysis{Compatible: len(targetShape) == 0}
	}
	var missing []string
	var mismatches []string
	for name, schema := range targetShape {
		v, present := srcMap[name]
		if !present {
			if schema.Required {
				missing = append(missing, name)
			}
			continue
		}
		if !typeMatches(v, schema.Type) {
			mismatches = append(mismatches, name)
		}
	}
	return Analysis{Compatible: len(missing) == 0 && len(mismatches) == 0, Missing: missing, TypeMismatches: mismatches}
}

func typeMatches(v any, want string) bool {
	switch want {
	case "", "any":
		return true
	case "string":
		_, ok := v.(string)
		return ok
	case "sequence", "array":
		_, ok := v.([]any)
		return ok
	case "mapping", "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}

// TargetKind is what shape the consumer parameter expects, as determined
// from the tool's declared parameter schema. The executor attempts no
// adaptation for a parameter without a declared schema.
type TargetKind int

const (
	TargetAny TargetKind = iota
	TargetScalarString
	TargetSequence
	TargetMapping
)

// BuildAdapter derives an AdapterSpec from a producer's output value and the
// consumer's expected shape, applying the five rules in priority order.
// Returns nil when rule 1 (exact match) already holds with no reshape
// needed.
func BuildAdapter(sourceValue any, target TargetKind, targetShape map[string]model.ParameterSchema) *model.AdapterSpec {
	srcMap, isMap := sourceValue.(map[string]any)

	// Rule 1: exact key match on mappings is a no-op.
	if target == TargetMapping && isMap {
		allPresent := true
		for name := range targetShape {
			if _, ok := srcMap[name]; !ok {
				allPresent = false
				break
			}
		}
		if allPresent {
			return nil
		}
	}

	// Rule 2: target expects scalar string, source is a mapping.
	if target == TargetScalarString && isMap {
		for _, key := range scalarPriorityKeys {
			if v, ok := srcMap[key]; ok {
				if s, ok := v.(string); ok && s != "" {
					return &model.AdapterSpec{Rule: model.RuleScalarFromMap, PickedKey: key}
				}
			}
		}
		// None of the priority keys held a populated string: fall back to a
		// canonical textual rendering of the whole source value.
		return &model.AdapterSpec{Rule: model.RuleCanonicalText}
	}

	// Rule 3: target expects a sequence, source is a mapping with a
	// "results" field of sequence type.
	if target == TargetSequence && isMap {
		if v, ok := srcMap["results"]; ok {
			if _, ok := v.([]any); ok {
				return &model.AdapterSpec{Rule: model.RuleSequenceFromMap, PickedKey: "results"}
			}
		}
	}

	// Rule 4: target expects a mapping, source is a mapping: copy matching
	// keys, fill defaults for missing required keys.
	if target == TargetMapping && isMap {
		var filled []string
		for name, schema := range targetShape {
			if _, ok := srcMap[name]; !ok && schema.Required && schema.Default != nil {
				filled = append(filled, name)
			}
		}
		return &model.AdapterSpec{Rule: model.RuleMapCopyDefault, FilledKeys: filled}
	}

	// Rule 5: no rule applies (target is scalar string but source is not a
	// mapping at all, or target/source kinds otherwise don't line up); pass
	// through unchanged, caller records adapterFallback.
	return &model.AdapterSpec{Rule: model.RuleFallback}
}

// Apply reshapes sourceValue per spec.
func Apply(spec *model.AdapterSpec, sourceValue any, targetShape map[string]model.ParameterSchema) (any, error) {
	if spec == nil {
		return sourceValue, nil
	}
	srcMap, _ := sourceValue.(map[string]any)
	switch spec.Rule {
	case model.RuleScalarFromMap:
		if srcMap != nil {
			if v, ok := srcMap[spec.PickedKey]; ok {
				return v, nil
			}
		}
		return canonicalText(sourceValue), nil
	case model.RuleSequenceFromMap:
		if srcMap != nil {
			if v, ok := srcMap[spec.PickedKey]; ok {
				return v, nil
			}
		}
		return sourceValue, nil
	case model.RuleCanonicalText:
		return canonicalText(sourceValue), nil
	case model.RuleMapCopyDefault:
		out := make(map[string]any, len(targetShape))
		for name := range targetShape {
			if srcMap != nil {
				if v, ok := srcMap[name]; ok {
					out[name] = v
					continue
				}
			}
		}
		for _, name := range spec.FilledKeys {
			out[name] = targetShape[name].Default
		}
		// Preserve any source keys not named by the target schema, so
		// consumers doing their own loose lookups still see them.
		for k, v := range srcMap {
			if _, known := targetShape[k]; !known {
				out[k] = v
			}
		}
		return out, nil
	case model.RuleFallback:
		return sourceValue, nil
	default:
		return sourceValue, nil
	}
}

// canonicalText renders a value as a compact textual fallback when rule 2
// cannot find a populated priority key.
func canonicalText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
