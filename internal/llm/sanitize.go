package llm

import (
	"fmt"
	"strings"
)

// pruneThreshold bounds how many of the most recent tool-return parts keep
// their full content; older ones are replaced by a compact placeholder.
const pruneThreshold = 6

// pruneMaxChars is the content length above which a tool-return outside the
// most recent pruneThreshold is replaced; shorter old returns are kept whole.
const pruneMaxChars = 4000

// PrepareHistory runs the C7 pipeline to a fixed point and returns a
// sanitized copy safe for submission. The original messages slice is never
// mutated.
func PrepareHistory(messages []Message) []Message {
	current := cloneMessages(messages)
	for {
		next := sanitizePass(current)
		if sameLength(current, next) && messagesEqual(current, next) {
			return next
		}
		current = next
	}
}

func sanitizePass(messages []Message) []Message {
	out := pruneOldToolOutputs(messages)
	out = removeDanglingToolCalls(out)
	out = removeEmptyResponses(out)
	out = removeConsecutiveRequests(out)
	return out
}

// pruneOldToolOutputs replaces tool-return content older than pruneThreshold
// positions back (counting only tool-return parts) with a placeholder,
// reclaiming token budget per §4.7 step 1.
func pruneOldToolOutputs(messages []Message) []Message {
	type loc struct{ msg, part int }
	var returns []loc
	for mi, m := range messages {
		for pi, p := range m.Parts {
			if p.Type == PartToolReturn {
				returns = append(returns, loc{mi, pi})
			}
		}
	}
	if len(returns) <= pruneThreshold {
		return messages
	}

	out := cloneMessages(messages)
	cutoff := len(returns) - pruneThreshold
	for i := 0; i < cutoff; i++ {
		l := returns[i]
		part := &out[l.msg].Parts[l.part]
		if len(part.ReturnContent) > pruneMaxChars {
			part.ReturnContent = fmt.Sprintf("[pruned: %d chars omitted]", len(part.ReturnContent))
		}
	}
	return out
}

// removeDanglingToolCalls drops any ToolCall without a later matching
// ToolReturn (and its enclosing message if left empty), and symmetrically
// drops orphan ToolReturn parts with no preceding call.
func removeDanglingToolCalls(messages []Message) []Message {
	matched := make(map[string]bool)
	called := make(map[string]bool)
	for _, m := range messages {
		for _, p := range m.Parts {
			if p.Type == PartToolReturn && called[p.ToolCallID] {
				matched[p.ToolCallID] = true
			}
			if p.Type == PartToolCall {
				called[p.ToolCallID] = true
			}
		}
	}

	out := make([]Message, 0, len(messages))
	seenCall := make(map[string]bool)
	for _, m := range messages {
		parts := make([]Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case PartToolCall:
				if !matched[p.ToolCallID] {
					continue
				}
				seenCall[p.ToolCallID] = true
				parts = append(parts, p)
			case PartToolReturn:
				if !seenCall[p.ToolCallID] {
					continue // orphan return, no preceding call
				}
				parts = append(parts, p)
			default:
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 && len(m.Parts) > 0 {
			continue
		}
		out = append(out, Message{Kind: m.Kind, Parts: parts})
	}
	return out
}

// removeEmptyResponses drops response messages with no non-whitespace parts.
func removeEmptyResponses(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Kind == KindResponse && m.IsEmpty() {
			continue
		}
		out = append(out, m)
	}
	return out
}

// removeConsecutiveRequests keeps the newer of two adjacent request-kind
// messages.
func removeConsecutiveRequests(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if len(out) > 0 && out[len(out)-1].Kind == KindRequest && m.Kind == KindRequest {
			out[len(out)-1] = m
			continue
		}
		out = append(out, m)
	}
	return out
}

// DropTrailingRequest removes a trailing request-kind message before a new
// user message is enqueued, avoiding two consecutive requests.
func DropTrailingRequest(messages []Message) []Message {
	if len(messages) == 0 {
		return messages
	}
	if messages[len(messages)-1].Kind == KindRequest {
		return messages[:len(messages)-1]
	}
	return messages
}

// AppendInterruptedText is the abort-cleanup special case: it appends an
// assistant response part carrying the partial streaming buffer before the
// rest of the sanitizer pipeline runs, per §4.7.
func AppendInterruptedText(messages []Message, partial string) []Message {
	if strings.TrimSpace(partial) == "" {
		return messages
	}
	text := "[INTERRUPTED]\n\n" + partial
	return append(cloneMessages(messages), ResponseMessage(AssistantTextPart(text)))
}

func cloneMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}

func sameLength(a, b []Message) bool { return len(a) == len(b) }

func messagesEqual(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || len(a[i].Parts) != len(b[i].Parts) {
			return false
		}
		for j := range a[i].Parts {
			pa, pb := a[i].Parts[j], b[i].Parts[j]
			if pa.Type != pb.Type || pa.Content != pb.Content ||
				pa.ToolCallID != pb.ToolCallID || pa.ToolName != pb.ToolName ||
				pa.ReturnContent != pb.ReturnContent {
				return false
			}
		}
	}
	return true
}
