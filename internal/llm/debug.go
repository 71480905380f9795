package llm

import (
	"encoding/json"
	"log/slog"
)

// DebugToolCall logs a dispatched tool call when debug_metrics is enabled.
func DebugToolCall(enabled bool, id, name string, args map[string]any) {
	if !enabled {
		return
	}
	slog.Debug("tool call", "id", id, "name", name, "args", formatArgs(args))
}

// DebugToolResult logs a tool's returned content when debug_metrics is
// enabled.
func DebugToolResult(enabled bool, id, name, content string) {
	if !enabled {
		return
	}
	slog.Debug("tool result", "id", id, "name", name, "result", truncate(content, 2000))
}

// DebugRawRequest logs the shape of a request about to be streamed: model,
// message count, and tool count, matching the teacher's request-tracing
// style without replaying full message bodies at debug level.
func DebugRawRequest(enabled bool, providerName, credential string, req Request) {
	if !enabled {
		return
	}
	slog.Debug("request",
		"provider", providerName,
		"credential", credential,
		"model", req.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
		"parallel_tool_calls", req.ParallelToolCalls,
	)
}

// DebugEvent logs one stream event when debug_metrics is enabled.
func DebugEvent(enabled bool, event Event) {
	if !enabled {
		return
	}
	switch event.Type {
	case EventTextDelta, EventThoughtDelta:
		slog.Debug("stream event", "type", event.Type, "len", len(event.Text))
	case EventToolCall:
		if event.Tool != nil {
			slog.Debug("stream event", "type", event.Type, "tool", event.Tool.Name, "id", event.Tool.ID)
		}
	case EventUsage:
		if event.Usage != nil {
			slog.Debug("stream event", "type", event.Type, "prompt_tokens", event.Usage.PromptTokens, "completion_tokens", event.Usage.CompletionTokens)
		}
	case EventError:
		if event.Err != nil {
			slog.Debug("stream event", "type", event.Type, "error", event.Err.Error())
		}
	default:
		slog.Debug("stream event", "type", event.Type)
	}
}

// debugStream wraps a Stream so every event passes through DebugEvent
// before reaching the caller.
type debugStream struct {
	inner   Stream
	enabled bool
}

func WrapDebugStream(enabled bool, inner Stream) Stream {
	if !enabled {
		return inner
	}
	return &debugStream{inner: inner, enabled: enabled}
}

func (s *debugStream) Recv() (Event, error) {
	event, err := s.inner.Recv()
	if err == nil {
		DebugEvent(s.enabled, event)
	}
	return event, err
}

func (s *debugStream) Close() error {
	return s.inner.Close()
}

func formatArgs(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return "(unencodable)"
	}
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...[truncated]"
}
