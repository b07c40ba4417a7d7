package model

import "errors"

// Plan errors: fatal, emitted as systemError before any node runs.
var (
	ErrMalformedPlan    = errors.New("malformed plan")
	ErrCyclicPlan       = errors.New("cyclic plan")
	ErrDanglingReference = errors.New("dangling reference")
	ErrEmptyPlan        = errors.New("empty plan")
)

// Resolution errors: node-fatal, stop the plan.
var (
	ErrUnknownTool = errors.New("unknown tool")
	ErrLoadTool    = errors.New("tool load failed")
)

// Synthesis and catalog errors.
var (
	ErrSynthesis = errors.New("synthesis failed")
	ErrCatalogSave = errors.New("catalog save failed")
)

// Adapter warnings: non-fatal, attached to the nodeSuccess event's data.
const (
	WarnAdapterFallback = "adapterFallback"
	WarnCoerceRequired  = "coerceRequired"
)

// IsTransient reports whether err represents a condition worth retrying
// (e.g. a catalog I/O blip) as opposed to a permanent plan or tool defect.
// Modeled on internal/orchestrator's isTransientError split. Matching is by
// sentinel via errors.Is: only errors wrapping ErrCatalogSave are transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrCatalogSave):
		return true
	default:
		return false
	}
}
