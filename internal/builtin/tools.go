// Package builtin registers the handful of builtIn tools taskforged ships
// with out of the box: echo and formatReport, enough for a plan to do
// observable work without requiring synthesis or user-supplied code.
package builtin

import (
	"context"
	"fmt"
	"strings"

	"taskforge/internal/model"
	"taskforge/internal/registry"
)

// Register wires the builtIn tool set into reg.
func Register(reg *registry.Registry) {
	reg.RegisterBuiltIn("echo", "returns its text argument unchanged", map[string]model.ParameterSchema{
		"text": {Type: "string", Required: true},
	}, nil, func(_ context.Context, args map[string]any) (any, error) {
		text, _ := args["text"].(string)
		return map[string]any{"result": text}, nil
	})

	reg.RegisterBuiltIn("formatReport", "joins a sequence of strings into a single report", map[string]model.ParameterSchema{
		"items": {Type: "sequence", Required: true},
	}, nil, func(_ context.Context, args map[string]any) (any, error) {
		items, _ := args["items"].([]any)
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := it.(string); ok {
				parts = append(parts, s)
			} else {
				parts = append(parts, fmt.Sprintf("%v", it))
			}
		}
		return map[string]any{"reportContent": strings.Join(parts, "\n")}, nil
	})
}
