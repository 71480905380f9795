package llm

import (
	"context"
	"errors"
	"testing"
)

func recordingCallback(calls *[]string, results map[string]string, errs map[string]error) ToolCallback {
	return func(ctx context.Context, part Part, node *Node) (string, error) {
		*calls = append(*calls, part.ToolName)
		if err, ok := errs[part.ToolName]; ok {
			return "", err
		}
		return results[part.ToolName], nil
	}
}

func newTestDispatcher(callback ToolCallback, fallback FallbackParser) (*ToolDispatcher, *CallRegistry) {
	calls := NewCallRegistry()
	buffer := NewToolBuffer()
	return NewToolDispatcher(context.Background(), calls, buffer, callback, nil, fallback), calls
}

func TestDispatchBuffersReadOnlyToolsAndFlushesAtEnd(t *testing.T) {
	var executed []string
	dispatcher, calls := newTestDispatcher(recordingCallback(&executed, map[string]string{"grep": "matches"}, nil), nil)

	parts := []Part{ToolCallPart("call-1", "grep", map[string]any{"pattern": "foo"})}
	result, err := dispatcher.Dispatch(parts, &Node{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.HasToolCalls {
		t.Fatal("expected HasToolCalls")
	}
	if len(executed) != 0 {
		t.Fatalf("expected read-only tool to be buffered, not run immediately, got %v", executed)
	}

	dispatcher.Flush()
	if len(executed) != 1 || executed[0] != "grep" {
		t.Fatalf("expected grep to run on flush, got %v", executed)
	}

	produced := dispatcher.Drain()
	if len(produced) != 1 || produced[0].ReturnContent != "matches" {
		t.Fatalf("expected 1 tool-return part with 'matches', got %+v", produced)
	}

	rec, ok := calls.records["call-1"]
	if !ok || rec.State != CallRunning {
		t.Fatalf("expected call-1 to stay RUNNING until its ToolReturn is processed, got %+v", rec)
	}
}

func TestDispatchMutatingToolRunsImmediatelyAndFlushesBuffer(t *testing.T) {
	var executed []string
	dispatcher, _ := newTestDispatcher(recordingCallback(&executed, map[string]string{
		"grep":  "matches",
		"shell": "ok",
	}, nil), nil)

	parts := []Part{
		ToolCallPart("call-1", "grep", nil),
		ToolCallPart("call-2", "shell", map[string]any{"command": "ls"}),
	}
	if _, err := dispatcher.Dispatch(parts, &Node{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The mutating shell call forces the buffered grep call to flush first.
	if len(executed) != 2 || executed[0] != "grep" || executed[1] != "shell" {
		t.Fatalf("expected grep then shell in order, got %v", executed)
	}

	produced := dispatcher.Drain()
	if len(produced) != 2 {
		t.Fatalf("expected 2 produced tool-return parts, got %d", len(produced))
	}
}

func TestDispatchToolFailureProducesErrorReturn(t *testing.T) {
	dispatcher, calls := newTestDispatcher(recordingCallback(&[]string{}, nil, map[string]error{
		"shell": errors.New("permission denied"),
	}), nil)

	parts := []Part{ToolCallPart("call-1", "shell", nil)}
	if _, err := dispatcher.Dispatch(parts, &Node{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	produced := dispatcher.Drain()
	if len(produced) != 1 || produced[0].ReturnContent != "error: permission denied" {
		t.Fatalf("expected error return content, got %+v", produced)
	}

	rec := calls.records["call-1"]
	if rec.State != CallFailed {
		t.Fatalf("expected call to be FAILED, got %v", rec.State)
	}
}

func TestDispatchUsesFallbackParserWhenNoStructuredCalls(t *testing.T) {
	fallback := func(text string) []FallbackCall {
		if text == "" {
			return nil
		}
		return []FallbackCall{{Name: "shell", Args: map[string]any{"command": "ls"}}}
	}
	var executed []string
	dispatcher, _ := newTestDispatcher(recordingCallback(&executed, map[string]string{"shell": "ok"}, nil), fallback)

	parts := []Part{AssistantTextPart("I'll run a command now")}
	result, err := dispatcher.Dispatch(parts, &Node{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.UsedFallback {
		t.Fatal("expected UsedFallback to be true")
	}
	if len(executed) != 1 || executed[0] != "shell" {
		t.Fatalf("expected the fallback-parsed shell call to run, got %v", executed)
	}
}

func TestDispatchNoToolCallsNoFallback(t *testing.T) {
	dispatcher, _ := newTestDispatcher(nil, nil)

	result, err := dispatcher.Dispatch([]Part{AssistantTextPart("just a reply")}, &Node{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasToolCalls || result.UsedFallback {
		t.Fatalf("expected no tool calls and no fallback, got %+v", result)
	}
}

func TestDispatchUnnamedToolCallNormalizedToUnknown(t *testing.T) {
	var executed []string
	dispatcher, calls := newTestDispatcher(recordingCallback(&executed, map[string]string{"unknown": "ran"}, nil), nil)

	parts := []Part{ToolCallPart("call-1", "", nil)}
	if _, err := dispatcher.Dispatch(parts, &Node{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, ok := calls.records["call-1"]
	if !ok || rec.ToolName != "unknown" {
		t.Fatalf("expected empty tool name normalized to 'unknown', got %+v", rec)
	}
}

func TestIsReadOnlyTool(t *testing.T) {
	for _, name := range []string{"read_file", "grep", "glob", "list_dir"} {
		if !isReadOnlyTool(name) {
			t.Errorf("expected %q to be read-only", name)
		}
	}
	for _, name := range []string{"shell", "write_file"} {
		if isReadOnlyTool(name) {
			t.Errorf("expected %q to not be read-only", name)
		}
	}
}

func TestIsSuspiciousToolName(t *testing.T) {
	if isSuspiciousToolName("grep") {
		t.Fatal("expected a plain tool name to not be suspicious")
	}
	if !isSuspiciousToolName("<script>") {
		t.Fatal("expected a name with special characters to be suspicious")
	}
	long := ""
	for i := 0; i < 60; i++ {
		long += "a"
	}
	if !isSuspiciousToolName(long) {
		t.Fatal("expected an overlong name to be suspicious")
	}
}

func TestBatchDisplayName(t *testing.T) {
	tasks := []BufferedTask{
		{Part: Part{ToolName: "read_file"}},
		{Part: Part{ToolName: "grep"}},
	}
	if got := batchDisplayName(tasks); got != "read_file, grep" {
		t.Fatalf("got %q, want %q", got, "read_file, grep")
	}

	tasks = append(tasks, BufferedTask{Part: Part{ToolName: "glob"}}, BufferedTask{Part: Part{ToolName: "list_dir"}})
	if got := batchDisplayName(tasks); got != "read_file, grep, glob..." {
		t.Fatalf("got %q, want truncated name with ellipsis", got)
	}
}
