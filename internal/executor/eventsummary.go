package executor

import (
	"fmt"
	"reflect"
)

// SummarizeResult renders the short label attached to a nodeSuccess event
// per §4.7: dict-shape based, falling back to type name for anything not
// covered.
func SummarizeResult(v any) string {
	switch val := v.(type) {
	case map[string]any:
		if results, ok := val["results"]; ok {
			if n, ok := sequenceLen(results); ok {
				return fmt.Sprintf("%d results", n)
			}
		}
		if text, ok := val["formattedText"].(string); ok {
			return fmt.Sprintf("formatted text, len=%d", len([]rune(text)))
		}
		if report, ok := val["reportContent"].(string); ok {
			return fmt.Sprintf("report, len=%d", len([]rune(report)))
		}
		if status, ok := val["status"]; ok {
			return fmt.Sprintf("status=%v", status)
		}
		return fmt.Sprintf("mapping, %d fields", len(val))
	case string:
		return fmt.Sprintf("string, len=%d", len([]rune(val)))
	case nil:
		return "nil"
	default:
		if n, ok := sequenceLen(v); ok {
			return fmt.Sprintf("sequence, %d items", n)
		}
		return reflect.TypeOf(v).String()
	}
}

func sequenceLen(v any) (int, bool) {
	switch s := v.(type) {
	case []any:
		return len(s), true
	case []map[string]any:
		return len(s), true
	case []string:
		return len(s), true
	default:
		rv := reflect.ValueOf(v)
		if rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
			return rv.Len(), true
		}
		return 0, false
	}
}
