package llm

import (
	"context"
	"fmt"
	"sync"
)

// Engine owns the provider, the tool implementation registry, and the
// caches whose invalidation the orchestrator is responsible for on abort
// or timeout. Mutable module-level caches become fields on this instance,
// per the teacher's Engine pattern generalized to the core's needs.
type Engine struct {
	provider Provider
	tools    *ToolRegistry

	debugMetrics bool

	cacheMu      sync.Mutex
	modelCache   map[string]struct{} // keyed by model+config hash; presence only
	systemPrompt string

	toolStartHook   ToolStartCallback
	toolResultHook  ToolResultCallback
	noticeHook      func(text string)
	streamingHook   func(textChunk string)
	hookMu          sync.RWMutex
}

// NewEngine builds an Engine around a Provider and a tool implementation
// registry.
func NewEngine(provider Provider, tools *ToolRegistry) *Engine {
	if tools == nil {
		tools = NewToolRegistry()
	}
	return &Engine{
		provider:   provider,
		tools:      tools,
		modelCache: make(map[string]struct{}),
	}
}

func (e *Engine) SetDebugMetrics(v bool) { e.debugMetrics = v }

// Tools returns the Engine's tool implementation registry, for callers
// that register tools directly (e.g. internal/tools.LocalToolRegistry).
func (e *Engine) Tools() *ToolRegistry { return e.tools }

// SetHooks wires the external callbacks named in the external interfaces
// table. Any of them may be nil.
func (e *Engine) SetHooks(toolStart ToolStartCallback, toolResult ToolResultCallback, notice func(string), streaming func(string)) {
	e.hookMu.Lock()
	defer e.hookMu.Unlock()
	e.toolStartHook = toolStart
	e.toolResultHook = toolResult
	e.noticeHook = notice
	e.streamingHook = streaming
}

func cacheKey(model string, configHash string) string {
	return model + "@" + configHash
}

// WarmCache records that a (model, config) pairing has a live client/agent
// cached, so InvalidateCache has something to evict.
func (e *Engine) WarmCache(model, configHash string) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.modelCache[cacheKey(model, configHash)] = struct{}{}
}

// InvalidateCache drops the cached client/agent and system prompt for
// model, forcing the next turn to rebuild state. Mandatory on timeout and
// on abort per §4.8/§5.
func (e *Engine) InvalidateCache(model, configHash string) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	delete(e.modelCache, cacheKey(model, configHash))
	e.systemPrompt = ""
}

// fallbackParser is a minimal text-fallback tool-call extractor: it scans
// for ```tool_call\n{"name":...,"arguments":{...}}\n``` fenced blocks. The
// concrete pattern set is intentionally simple — the core only requires
// that extracted calls produce valid ToolCall parts (§9 open question).
func fallbackParser(tools *ToolRegistry) FallbackParser {
	return func(text string) []FallbackCall {
		return extractFencedToolCalls(text)
	}
}

// BuildToolCallback adapts the Engine's ToolRegistry into a ToolCallback
// usable by the dispatcher.
func (e *Engine) BuildToolCallback() ToolCallback {
	return func(ctx context.Context, part Part, node *Node) (string, error) {
		tool, ok := e.tools.Get(part.ToolName)
		if !ok {
			return "", fmt.Errorf("unknown tool %q", part.ToolName)
		}
		return tool.Execute(ctx, part.Args)
	}
}

// FallbackParser returns the Engine's text-fallback tool-call parser.
func (e *Engine) FallbackParser() FallbackParser {
	return fallbackParser(e.tools)
}

// ToolSpecs returns the specs for every registered tool, for Request.Tools.
func (e *Engine) ToolSpecs() []ToolSpec {
	return e.tools.AllSpecs()
}

// StreamNode consumes one full Provider.Stream call and accumulates its
// events into a single Node carrying a model_response. On a stream failure
// it returns a nil Node and the error; the caller decides how to degrade
// (the orchestrator substitutes an empty response node and keeps the turn
// going). Text deltas are forwarded to the
// streaming_callback hook as they arrive (§5's "streaming token deltas"
// suspension point), independent of the accumulated Node returned on
// EventDone.
func (e *Engine) StreamNode(ctx context.Context, req Request) (*Node, error) {
	stream, err := e.provider.Stream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open provider stream: %w", err)
	}
	defer stream.Close()

	e.hookMu.RLock()
	streamHook := e.streamingHook
	e.hookMu.RUnlock()

	var textBuilder, thoughtBuilder string
	var toolParts []Part
	var usage *UsageMetrics

	for {
		event, err := stream.Recv()
		if err != nil {
			return nil, fmt.Errorf("stream recv: %w", err)
		}
		switch event.Type {
		case EventTextDelta:
			textBuilder += event.Text
			if streamHook != nil {
				streamHook(event.Text)
			}
		case EventThoughtDelta:
			thoughtBuilder += event.Text
		case EventToolCall:
			if event.Tool != nil {
				args, _ := DecodeArgs(event.Tool.Arguments)
				toolParts = append(toolParts, ToolCallPart(event.Tool.ID, event.Tool.Name, args))
			}
		case EventUsage:
			usage = event.Usage
		case EventError:
			return nil, event.Err
		case EventDone:
			parts := make([]Part, 0, len(toolParts)+1)
			if textBuilder != "" {
				parts = append(parts, AssistantTextPart(textBuilder))
			}
			parts = append(parts, toolParts...)
			node := &Node{ModelResponse: &Message{Kind: KindResponse, Parts: parts}, Usage: usage}
			if thoughtBuilder != "" {
				t := thoughtBuilder
				node.Thought = &t
			}
			return node, nil
		}
	}
}
