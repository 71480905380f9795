package llm

import "testing"

func TestPartConstructors(t *testing.T) {
	if p := SystemPromptPart("sys"); p.Type != PartSystemPrompt || p.Content != "sys" {
		t.Fatalf("SystemPromptPart: %+v", p)
	}
	if p := UserTextPart("hi"); p.Type != PartUserText || p.Content != "hi" {
		t.Fatalf("UserTextPart: %+v", p)
	}
	if p := AssistantTextPart("ok"); p.Type != PartAssistantText || p.Content != "ok" {
		t.Fatalf("AssistantTextPart: %+v", p)
	}
	if p := ThoughtPart("thinking"); p.Type != PartThought || p.Content != "thinking" {
		t.Fatalf("ThoughtPart: %+v", p)
	}
	args := map[string]any{"path": "main.go"}
	if p := ToolCallPart("call-1", "read_file", args); p.Type != PartToolCall || p.ToolCallID != "call-1" || p.ToolName != "read_file" {
		t.Fatalf("ToolCallPart: %+v", p)
	}
	if p := ToolReturnPart("call-1", "read_file", "contents"); p.Type != PartToolReturn || p.ReturnContent != "contents" {
		t.Fatalf("ToolReturnPart: %+v", p)
	}
}

func TestPartIsEmptyText(t *testing.T) {
	if !UserTextPart("   ").IsEmptyText() {
		t.Fatal("expected whitespace-only content to be empty")
	}
	if UserTextPart("hi").IsEmptyText() {
		t.Fatal("expected non-empty content to not be empty")
	}
}

func TestMessageIsEmpty(t *testing.T) {
	if !RequestMessage(UserTextPart("  ")).IsEmpty() {
		t.Fatal("expected message of only whitespace parts to be empty")
	}
	if RequestMessage(UserTextPart("hello")).IsEmpty() {
		t.Fatal("expected message with real text to be non-empty")
	}
	if ResponseMessage(ToolCallPart("call-1", "shell", nil)).IsEmpty() {
		t.Fatal("expected a tool-call part to always count as non-empty")
	}
}

func TestMessageCloneIsDeep(t *testing.T) {
	original := RequestMessage(ToolCallPart("call-1", "shell", map[string]any{"command": "ls"}))
	clone := original.Clone()

	clone.Parts[0].Args["command"] = "rm -rf /"

	if original.Parts[0].Args["command"] != "ls" {
		t.Fatalf("mutating the clone's args mutated the original: %v", original.Parts[0].Args)
	}
}

func TestUsageMetricsAdd(t *testing.T) {
	a := UsageMetrics{PromptTokens: 10, CompletionTokens: 5, CachedTokens: 2, Cost: 0.01}
	b := UsageMetrics{PromptTokens: 3, CompletionTokens: 1, CachedTokens: 0, Cost: 0.002}

	sum := a.Add(b)
	if sum.PromptTokens != 13 || sum.CompletionTokens != 6 || sum.CachedTokens != 2 {
		t.Fatalf("unexpected sum: %+v", sum)
	}
	if sum.Cost < 0.0119 || sum.Cost > 0.0121 {
		t.Fatalf("unexpected cost sum: %v", sum.Cost)
	}
}

func TestDecodeArgs(t *testing.T) {
	if args, err := DecodeArgs(nil); err != nil || len(args) != 0 {
		t.Fatalf("DecodeArgs(nil) = %v, %v", args, err)
	}

	decoded := map[string]any{"path": "main.go"}
	if args, err := DecodeArgs(decoded); err != nil || args["path"] != "main.go" {
		t.Fatalf("DecodeArgs(map) = %v, %v", args, err)
	}

	if args, err := DecodeArgs(`{"path":"main.go"}`); err != nil || args["path"] != "main.go" {
		t.Fatalf("DecodeArgs(string) = %v, %v", args, err)
	}

	if args, err := DecodeArgs(""); err != nil || len(args) != 0 {
		t.Fatalf("DecodeArgs(empty string) = %v, %v", args, err)
	}

	if _, err := DecodeArgs(42); err == nil {
		t.Fatal("expected error decoding an unsupported type")
	}

	if _, err := DecodeArgs("not json"); err == nil {
		t.Fatal("expected error decoding malformed JSON")
	}
}
