package executor

import "taskforge/internal/model"

// ExtractFinalOutput applies the §4.5 precedence over the last node's
// value (and, for the domain summarizer branch, that same node's own
// metadata.parameters.query as the triggering query): (a) a non-empty
// "primary" sequence under data triggers the domain-aware summarizer; (b)
// the first non-generic string under result/content/text/answer; (c) a
// non-generic message field; (d) the value at the declared outputKey; (e)
// the raw value.
func ExtractFinalOutput(plan *model.Plan, nodeResults []model.NodeOutput) any {
	if len(nodeResults) == 0 {
		return nil
	}
	last := nodeResults[len(nodeResults)-1]
	value := last.Value

	m, isMap := value.(map[string]any)
	if !isMap {
		return value
	}

	if data, ok := m["data"].(map[string]any); ok {
		if primary, ok := data["primary"].([]any); ok && len(primary) > 0 {
			return summarizeFromPrimary(nodeQuery(m), primary)
		}
	}

	for _, key := range []string{"result", "content", "text", "answer"} {
		if s, ok := m[key].(string); ok && !IsGenericMessage(s) {
			return s
		}
	}

	if s, ok := m["message"].(string); ok && !IsGenericMessage(s) {
		return s
	}

	if last.OutputKey != "" {
		if v, ok := m[last.OutputKey]; ok {
			return v
		}
	}

	return value
}

// nodeQuery pulls the triggering query out of a node's own
// metadata.parameters.query, per §4.6/Scenario 6 ("the weather query that
// produced this result"). The plan-level UserText field is only ever
// populated for chat-only plans and is never the right source here.
func nodeQuery(nodeValue map[string]any) string {
	metadata, ok := nodeValue["metadata"].(map[string]any)
	if !ok {
		return ""
	}
	parameters, ok := metadata["parameters"].(map[string]any)
	if !ok {
		return ""
	}
	query, _ := parameters["query"].(string)
	return query
}

func summarizeFromPrimary(query string, primary []any) any {
	items := make([]map[string]any, 0, len(primary))
	for _, e := range primary {
		if mp, ok := e.(map[string]any); ok {
			items = append(items, mp)
		}
	}
	if len(items) == 0 {
		return primary
	}
	if hasWeatherIntent(query) {
		title, _ := items[0]["title"].(string)
		desc, _ := items[0]["description"].(string)
		text := title + " " + desc
		summary := ExtractWeatherInfo(query, text)
		lines := summary.Lines()
		if len(lines) > 0 {
			out := lines[0]
			for _, l := range lines[1:] {
				out += "\n" + l
			}
			return out
		}
	}
	return FormatSearchDigest(items, len(items))
}
