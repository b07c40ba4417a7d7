package executor

import (
	"context"

	"taskforge/internal/model"
)

// Parser is the NL-to-plan collaborator (spec.md §6). Its output is either
// a chatOnly plan or a full component DAG, both modeled by model.Plan; the
// core treats the parser as a thin external boundary.
type Parser interface {
	Parse(ctx context.Context, userText string, toolHint []string) (*model.Plan, error)
}

// ConversationalResponder answers chatOnly input with a single string.
// Failure falls back to a deterministic built-in reply table (§6).
type ConversationalResponder interface {
	Respond(ctx context.Context, userText string) (string, error)
}

// DefaultResponder implements the built-in fallback reply table keyed by
// keyword groups, used whenever no ConversationalResponder is configured
// or the configured one fails.
type DefaultResponder struct{}

func (DefaultResponder) Respond(_ context.Context, userText string) (string, error) {
	return FallbackReply(userText), nil
}
