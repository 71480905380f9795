package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// readOnlyToolNames is the fixed set of tools safe to fan out through C3.
var readOnlyToolNames = map[string]bool{
	"read_file": true,
	"grep":      true,
	"glob":      true,
	"list_dir":  true,
}

func isReadOnlyTool(name string) bool {
	return readOnlyToolNames[name]
}

const suspiciousNameChars = `<>(){}[]"'` + "`"

func isSuspiciousToolName(name string) bool {
	if len(name) > 50 {
		return true
	}
	return strings.ContainsAny(name, suspiciousNameChars)
}

// DispatchResult is C4's per-call summary, used by the orchestrator to
// decide whether an apparent completion marker is premature.
type DispatchResult struct {
	HasToolCalls bool
	UsedFallback bool
}

// ToolStartCallback is the UI hint fired when a batch begins.
type ToolStartCallback func(displayName string)

// FallbackParser extracts tool invocations embedded in free text when the
// model emits no structured tool-call parts. The concrete pattern set is an
// external collaborator; the dispatcher only requires it to return each
// call's name and already-decoded args.
type FallbackParser func(text string) []FallbackCall

type FallbackCall struct {
	Name string
	Args map[string]any
}

// ToolDispatcher implements C4: normalizes and registers tool calls,
// buffers read-only calls through C3, and serializes mutating calls.
type ToolDispatcher struct {
	calls        *CallRegistry
	buffer       *ToolBuffer
	callback     ToolCallback
	startHook    ToolStartCallback
	fallback     FallbackParser
	execParallel func(ctx context.Context, tasks []BufferedTask, cb ToolCallback) []BatchResult
	ctx          context.Context
	produced     []Part
}

// Drain returns and clears the ToolReturn parts produced by execution since
// the last Drain, for the orchestrator to fold into the next request node.
func (d *ToolDispatcher) Drain() []Part {
	p := d.produced
	d.produced = nil
	return p
}

func NewToolDispatcher(ctx context.Context, calls *CallRegistry, buffer *ToolBuffer, callback ToolCallback, startHook ToolStartCallback, fallback FallbackParser) *ToolDispatcher {
	return &ToolDispatcher{
		calls:        calls,
		buffer:       buffer,
		callback:     callback,
		startHook:    startHook,
		fallback:     fallback,
		execParallel: ExecuteToolsParallel,
		ctx:          ctx,
	}
}

// Dispatch processes a response's parts: primary structured path, or the
// text-fallback path when no structured tool-call parts are present.
func (d *ToolDispatcher) Dispatch(parts []Part, node *Node) (DispatchResult, error) {
	var toolCallParts []Part
	for _, p := range parts {
		if p.Type == PartToolCall {
			toolCallParts = append(toolCallParts, p)
		}
	}

	usedFallback := false
	if len(toolCallParts) == 0 && d.fallback != nil {
		var text string
		for _, p := range parts {
			if p.Type == PartAssistantText {
				text += p.Content
			}
		}
		for _, fc := range d.fallback(text) {
			toolCallParts = append(toolCallParts, ToolCallPart(uuid.NewString(), fc.Name, fc.Args))
		}
		if len(toolCallParts) > 0 {
			usedFallback = true
		}
	}

	for _, p := range toolCallParts {
		name := strings.TrimSpace(p.ToolName)
		if name == "" {
			name = "unknown"
		}
		if isSuspiciousToolName(name) {
			slog.Debug("suspicious tool name", "name", name)
		}
		normalized := p
		normalized.ToolName = name

		d.calls.Register(normalized.ToolCallID, name, normalized.Args)

		if isReadOnlyTool(name) {
			d.buffer.Add(BufferedTask{Part: normalized, Node: node})
			continue
		}

		d.flush()
		d.runOne(normalized, node)
	}

	return DispatchResult{HasToolCalls: len(toolCallParts) > 0, UsedFallback: usedFallback}, nil
}

// Flush runs any buffered read-only tasks through C3. Exported so the
// orchestrator can flush remaining tasks at turn end.
func (d *ToolDispatcher) Flush() []BatchResult {
	return d.flush()
}

func (d *ToolDispatcher) flush() []BatchResult {
	if !d.buffer.HasTasks() {
		return nil
	}
	tasks := d.buffer.Flush()
	if d.startHook != nil {
		d.startHook(batchDisplayName(tasks))
	}
	for _, t := range tasks {
		_ = d.calls.Start(t.Part.ToolCallID)
	}
	if d.callback == nil {
		return nil
	}
	results := d.execParallel(d.ctx, tasks, d.callback)
	for i, r := range results {
		task := tasks[i]
		id := task.Part.ToolCallID
		if r.Err != nil {
			if d.ctx.Err() != nil {
				_ = d.calls.Cancel(id, r.Err.Error())
			} else {
				_ = d.calls.Fail(id, r.Err.Error())
			}
			d.produced = append(d.produced, ToolReturnPart(id, task.Part.ToolName, "error: "+r.Err.Error()))
			continue
		}
		d.produced = append(d.produced, ToolReturnPart(id, task.Part.ToolName, r.Result))
	}
	return results
}

func (d *ToolDispatcher) runOne(part Part, node *Node) {
	_ = d.calls.Start(part.ToolCallID)
	if d.callback == nil {
		return
	}
	res, err := safeCallback(d.ctx, d.callback, BufferedTask{Part: part, Node: node})
	if err != nil {
		if d.ctx.Err() != nil {
			_ = d.calls.Cancel(part.ToolCallID, err.Error())
		} else {
			_ = d.calls.Fail(part.ToolCallID, err.Error())
		}
		d.produced = append(d.produced, ToolReturnPart(part.ToolCallID, part.ToolName, "error: "+err.Error()))
		return
	}
	d.produced = append(d.produced, ToolReturnPart(part.ToolCallID, part.ToolName, res))
}

// batchDisplayName formats the first 3 tool names joined by ", " plus
// "..." if more, for the tool_start_callback UI hint.
func batchDisplayName(tasks []BufferedTask) string {
	var names []string
	for _, t := range tasks {
		names = append(names, t.Part.ToolName)
		if len(names) == 3 {
			break
		}
	}
	joined := strings.Join(names, ", ")
	if len(tasks) > 3 {
		joined += "..."
	}
	return joined
}
