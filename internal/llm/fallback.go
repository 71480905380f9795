package llm

import (
	"encoding/json"
	"regexp"
)

var fencedToolCallPattern = regexp.MustCompile("(?s)```tool_call\\s*\\n(.*?)\\n```")

type fencedCallPayload struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// extractFencedToolCalls is the default text-fallback parser: it scans for
// ```tool_call\n{"name": ..., "arguments": {...}}\n``` fenced blocks. A
// tolerant, narrowly-scoped stand-in for the kind of pattern a concrete
// model's text output would need (§9 open question: exact matching rules
// for the fallback parser are left to the integration).
func extractFencedToolCalls(text string) []FallbackCall {
	matches := fencedToolCallPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	var calls []FallbackCall
	for _, m := range matches {
		var payload fencedCallPayload
		if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
			continue
		}
		if payload.Name == "" {
			continue
		}
		calls = append(calls, FallbackCall{Name: payload.Name, Args: payload.Arguments})
	}
	return calls
}
