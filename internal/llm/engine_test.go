package llm

import (
	"context"
	"errors"
	"testing"
)

// fixedStream replays a canned sequence of events, ignoring the request it
// was built for — enough to drive Engine.StreamNode without a real
// transport.
type fixedStream struct {
	events []Event
	pos    int
}

func (s *fixedStream) Recv() (Event, error) {
	if s.pos >= len(s.events) {
		return Event{Type: EventDone}, nil
	}
	e := s.events[s.pos]
	s.pos++
	return e, nil
}

func (s *fixedStream) Close() error { return nil }

type stubProvider struct {
	stream    *fixedStream
	streamErr error
	caps      Capabilities
}

func (p *stubProvider) Name() string              { return "stub" }
func (p *stubProvider) Credential() string         { return "api_key" }
func (p *stubProvider) Capabilities() Capabilities { return p.caps }
func (p *stubProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	return p.stream, nil
}

type stubTool struct {
	name   string
	result string
	err    error
}

func (t *stubTool) Spec() ToolSpec {
	return ToolSpec{Name: t.name, Description: "stub", Schema: map[string]any{"type": "object"}}
}
func (t *stubTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return t.result, t.err
}
func (t *stubTool) Preview(args map[string]any) string { return t.name }

func TestEngineStreamNodeAccumulatesText(t *testing.T) {
	provider := &stubProvider{stream: &fixedStream{events: []Event{
		{Type: EventTextDelta, Text: "hel"},
		{Type: EventTextDelta, Text: "lo"},
		{Type: EventUsage, Usage: &UsageMetrics{PromptTokens: 10}},
		{Type: EventDone},
	}}}
	engine := NewEngine(provider, NewToolRegistry())

	node, err := engine.StreamNode(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.ModelResponse == nil || len(node.ModelResponse.Parts) != 1 {
		t.Fatalf("expected 1 response part, got %+v", node.ModelResponse)
	}
	if node.ModelResponse.Parts[0].Content != "hello" {
		t.Fatalf("expected accumulated text 'hello', got %q", node.ModelResponse.Parts[0].Content)
	}
	if node.Usage == nil || node.Usage.PromptTokens != 10 {
		t.Fatalf("expected usage to be captured, got %+v", node.Usage)
	}
}

func TestEngineStreamNodeCapturesToolCall(t *testing.T) {
	provider := &stubProvider{stream: &fixedStream{events: []Event{
		{Type: EventToolCall, Tool: &StreamedToolCall{ID: "call-1", Name: "shell", Arguments: `{"command":"ls"}`}},
		{Type: EventDone},
	}}}
	engine := NewEngine(provider, NewToolRegistry())

	node, err := engine.StreamNode(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(node.ModelResponse.Parts) != 1 || node.ModelResponse.Parts[0].Type != PartToolCall {
		t.Fatalf("expected 1 tool-call part, got %+v", node.ModelResponse.Parts)
	}
	if node.ModelResponse.Parts[0].Args["command"] != "ls" {
		t.Fatalf("expected decoded args, got %v", node.ModelResponse.Parts[0].Args)
	}
}

func TestEngineStreamNodePropagatesStreamError(t *testing.T) {
	provider := &stubProvider{streamErr: errors.New("connection reset")}
	engine := NewEngine(provider, NewToolRegistry())

	if _, err := engine.StreamNode(context.Background(), Request{}); err == nil {
		t.Fatal("expected error when opening the provider stream fails")
	}
}

func TestEngineStreamNodeSurfacesEventError(t *testing.T) {
	provider := &stubProvider{stream: &fixedStream{events: []Event{
		{Type: EventError, Err: errors.New("rate limited")},
	}}}
	engine := NewEngine(provider, NewToolRegistry())

	if _, err := engine.StreamNode(context.Background(), Request{}); err == nil {
		t.Fatal("expected EventError to surface as an error")
	}
}

func TestEngineStreamNodeForwardsStreamingHook(t *testing.T) {
	provider := &stubProvider{stream: &fixedStream{events: []Event{
		{Type: EventTextDelta, Text: "a"},
		{Type: EventTextDelta, Text: "b"},
		{Type: EventDone},
	}}}
	engine := NewEngine(provider, NewToolRegistry())

	var chunks []string
	engine.SetHooks(nil, nil, nil, func(chunk string) { chunks = append(chunks, chunk) })

	if _, err := engine.StreamNode(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 || chunks[0] != "a" || chunks[1] != "b" {
		t.Fatalf("expected streaming hook to see each delta, got %v", chunks)
	}
}

func TestEngineBuildToolCallbackExecutesRegisteredTool(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&stubTool{name: "shell", result: "ok"})
	engine := NewEngine(&stubProvider{}, registry)

	cb := engine.BuildToolCallback()
	result, err := cb(context.Background(), ToolCallPart("call-1", "shell", nil), &Node{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("result=%q, want ok", result)
	}
}

func TestEngineBuildToolCallbackUnknownTool(t *testing.T) {
	engine := NewEngine(&stubProvider{}, NewToolRegistry())
	cb := engine.BuildToolCallback()

	if _, err := cb(context.Background(), ToolCallPart("call-1", "nonexistent", nil), &Node{}); err == nil {
		t.Fatal("expected error for an unregistered tool")
	}
}

func TestEngineToolSpecs(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&stubTool{name: "read_file"})
	registry.Register(&stubTool{name: "shell"})
	engine := NewEngine(&stubProvider{}, registry)

	specs := engine.ToolSpecs()
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
}

func TestEngineCacheWarmAndInvalidate(t *testing.T) {
	engine := NewEngine(&stubProvider{}, NewToolRegistry())
	engine.WarmCache("claude-sonnet-4-5", "hash-1")

	if _, ok := engine.modelCache[cacheKey("claude-sonnet-4-5", "hash-1")]; !ok {
		t.Fatal("expected cache entry after WarmCache")
	}

	engine.systemPrompt = "cached prompt"
	engine.InvalidateCache("claude-sonnet-4-5", "hash-1")

	if _, ok := engine.modelCache[cacheKey("claude-sonnet-4-5", "hash-1")]; ok {
		t.Fatal("expected cache entry to be evicted after InvalidateCache")
	}
	if engine.systemPrompt != "" {
		t.Fatalf("expected system prompt to be cleared, got %q", engine.systemPrompt)
	}
}

func TestEngineToolsAccessor(t *testing.T) {
	registry := NewToolRegistry()
	engine := NewEngine(&stubProvider{}, registry)

	if engine.Tools() != registry {
		t.Fatal("expected Tools() to return the registry passed to NewEngine")
	}
}

func TestNewEngineDefaultsToolRegistry(t *testing.T) {
	engine := NewEngine(&stubProvider{}, nil)
	if engine.Tools() == nil {
		t.Fatal("expected NewEngine(nil tools) to default to an empty registry")
	}
}
