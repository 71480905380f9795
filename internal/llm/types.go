package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageKind distinguishes the two halves of a turn exchange.
type MessageKind string

const (
	KindRequest  MessageKind = "request"
	KindResponse MessageKind = "response"
)

// PartType discriminates the Part tagged union.
type PartType string

const (
	PartSystemPrompt  PartType = "system_prompt"
	PartUserText      PartType = "user_text"
	PartAssistantText PartType = "assistant_text"
	PartThought       PartType = "thought"
	PartToolCall      PartType = "tool_call"
	PartToolReturn    PartType = "tool_return"
)

// Part is a tagged union over the six message-part variants named in the
// data model. Only the fields relevant to Type are meaningful.
type Part struct {
	Type PartType

	// SystemPrompt / UserText / AssistantText / Thought
	Content string

	// ToolCall / ToolReturn
	ToolCallID string
	ToolName   string

	// ToolCall only. Args are a mapping from string to decoded JSON value.
	Args map[string]any

	// ToolReturn only.
	ReturnContent string
}

func SystemPromptPart(content string) Part { return Part{Type: PartSystemPrompt, Content: content} }
func UserTextPart(content string) Part     { return Part{Type: PartUserText, Content: content} }
func AssistantTextPart(content string) Part {
	return Part{Type: PartAssistantText, Content: content}
}
func ThoughtPart(content string) Part { return Part{Type: PartThought, Content: content} }

func ToolCallPart(id, name string, args map[string]any) Part {
	return Part{Type: PartToolCall, ToolCallID: id, ToolName: name, Args: args}
}

func ToolReturnPart(id, name, content string) Part {
	return Part{Type: PartToolReturn, ToolCallID: id, ToolName: name, ReturnContent: content}
}

// IsEmptyText reports whether a text-bearing part has no non-whitespace content.
func (p Part) IsEmptyText() bool {
	return strings.TrimSpace(p.Content) == ""
}

// Message is an ordered list of Parts tagged with a kind (request/response).
type Message struct {
	Kind  MessageKind
	Parts []Part
}

// IsEmpty reports whether a message has no part with non-whitespace content.
// Tool-call/tool-return parts always count as non-empty.
func (m Message) IsEmpty() bool {
	for _, p := range m.Parts {
		switch p.Type {
		case PartToolCall, PartToolReturn:
			return false
		default:
			if !p.IsEmptyText() {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy, so sanitizer passes never mutate the session's
// authoritative history in place.
func (m Message) Clone() Message {
	parts := make([]Part, len(m.Parts))
	for i, p := range m.Parts {
		cp := p
		if p.Args != nil {
			args := make(map[string]any, len(p.Args))
			for k, v := range p.Args {
				args[k] = v
			}
			cp.Args = args
		}
		parts[i] = cp
	}
	return Message{Kind: m.Kind, Parts: parts}
}

func RequestMessage(parts ...Part) Message  { return Message{Kind: KindRequest, Parts: parts} }
func ResponseMessage(parts ...Part) Message { return Message{Kind: KindResponse, Parts: parts} }

// UsageMetrics accumulates token/cost accounting for one or more calls.
type UsageMetrics struct {
	PromptTokens     int
	CompletionTokens int
	CachedTokens     int
	Cost             float64
}

// Add returns the additive accumulation of two UsageMetrics.
func (u UsageMetrics) Add(o UsageMetrics) UsageMetrics {
	return UsageMetrics{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		CachedTokens:     u.CachedTokens + o.CachedTokens,
		Cost:             u.Cost + o.Cost,
	}
}

// ToolSpec describes a tool's name, description, and JSON argument schema,
// as surfaced to the model.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolChoiceMode constrains how a model may invoke tools for one request.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceName     ToolChoiceMode = "name"
)

type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
}

// Request is a single call to a Provider's Stream method.
type Request struct {
	Model             string
	Messages          []Message
	Tools             []ToolSpec
	ToolChoice        ToolChoice
	ParallelToolCalls bool
	MaxOutputTokens   int
	Temperature       float32
	StrictValidation  bool
}

// ModelInfo represents a model available from a provider.
type ModelInfo struct {
	ID          string
	DisplayName string
	Created     int64
	OwnedBy     string
}

// DecodeArgs tolerantly parses a tool call's raw argument payload, which may
// arrive either as a JSON-encoded string/raw message or as an already
// decoded mapping.
func DecodeArgs(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return map[string]any{}, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("decode tool args: %w", err)
		}
		return out, nil
	case json.RawMessage:
		if len(v) == 0 {
			return map[string]any{}, nil
		}
		var out map[string]any
		if err := json.Unmarshal(v, &out); err != nil {
			return nil, fmt.Errorf("decode tool args: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("decode tool args: unsupported type %T", raw)
	}
}
