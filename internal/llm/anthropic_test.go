package llm

import (
	"testing"

	"github.com/samsaffron/term-llm/internal/credentials"
)

func TestNewAnthropicProviderWithExplicitAPIKey(t *testing.T) {
	// Clear env to isolate test
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_CODE_OAUTH_TOKEN", "")

	provider, err := NewAnthropicProvider("sk-test-key-123", "claude-sonnet-4-5", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Credential() != "api_key" {
		t.Fatalf("credential=%q, want %q", provider.Credential(), "api_key")
	}
}

func TestNewAnthropicProviderWithEnvAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-env-key-456")
	t.Setenv("CLAUDE_CODE_OAUTH_TOKEN", "")

	provider, err := NewAnthropicProvider("", "claude-sonnet-4-5", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Credential() != "env" {
		t.Fatalf("credential=%q, want %q", provider.Credential(), "env")
	}
}

func TestNewAnthropicProviderWithOAuthEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_CODE_OAUTH_TOKEN", "sk-ant-oat01-test-token")

	provider, err := NewAnthropicProvider("", "claude-sonnet-4-5", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Credential() != "oauth_env" {
		t.Fatalf("credential=%q, want %q", provider.Credential(), "oauth_env")
	}
}

func TestNewAnthropicProviderWithSavedOAuth(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_CODE_OAUTH_TOKEN", "")

	// Save OAuth credentials to temp dir
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	creds := &credentials.AnthropicOAuthCredentials{
		AccessToken: "sk-ant-oat01-saved-token",
	}
	if err := credentials.SaveAnthropicOAuthCredentials(creds); err != nil {
		t.Fatalf("failed to save test credentials: %v", err)
	}

	provider, err := NewAnthropicProvider("", "claude-sonnet-4-5", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Credential() != "oauth" {
		t.Fatalf("credential=%q, want %q", provider.Credential(), "oauth")
	}
}

func TestNewAnthropicProviderAPIKeyOverridesOAuthEnv(t *testing.T) {
	// API key should take priority over OAuth env
	t.Setenv("ANTHROPIC_API_KEY", "sk-api-key")
	t.Setenv("CLAUDE_CODE_OAUTH_TOKEN", "sk-ant-oat01-oauth-token")

	provider, err := NewAnthropicProvider("", "claude-sonnet-4-5", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// ANTHROPIC_API_KEY takes priority
	if provider.Credential() != "env" {
		t.Fatalf("credential=%q, want %q (API key should override OAuth)", provider.Credential(), "env")
	}
}

func TestNewAnthropicProviderExplicitKeyOverridesAll(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-env-key")
	t.Setenv("CLAUDE_CODE_OAUTH_TOKEN", "sk-ant-oat01-oauth-token")

	provider, err := NewAnthropicProvider("sk-explicit-key", "claude-sonnet-4-5", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Credential() != "api_key" {
		t.Fatalf("credential=%q, want %q (explicit key should override all)", provider.Credential(), "api_key")
	}
}

func TestNewAnthropicProviderForcedModeRequiresCredential(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_CODE_OAUTH_TOKEN", "")

	if _, err := NewAnthropicProvider("", "claude-sonnet-4-5", AnthropicCredAPIKey); err == nil {
		t.Fatal("expected error forcing api_key mode with no key available")
	}
	if _, err := NewAnthropicProvider("", "claude-sonnet-4-5", AnthropicCredEnv); err == nil {
		t.Fatal("expected error forcing env mode with no ANTHROPIC_API_KEY set")
	}
	if _, err := NewAnthropicProvider("", "claude-sonnet-4-5", AnthropicCredOAuthEnv); err == nil {
		t.Fatal("expected error forcing oauth_env mode with no CLAUDE_CODE_OAUTH_TOKEN set")
	}
}

func TestNewAnthropicProviderUnknownCredentialMode(t *testing.T) {
	if _, err := NewAnthropicProvider("sk-key", "claude-sonnet-4-5", "bogus"); err == nil {
		t.Fatal("expected error for unknown credential mode")
	}
}

func TestToolCallAccumulatorInputJSONDelta(t *testing.T) {
	acc := newToolCallAccumulator()
	acc.Start(0, StreamedToolCall{ID: "tool-1", Name: "write_file"})

	acc.Append(0, `{"file_path":"main.go","content":"foo"`)
	acc.Append(0, `,"mode":"create"}`)

	final, ok := acc.Finish(0)
	if !ok {
		t.Fatalf("expected tool call")
	}
	if final.ID != "tool-1" || final.Name != "write_file" {
		t.Fatalf("unexpected call identity: %+v", final)
	}
	want := `{"file_path":"main.go","content":"foo","mode":"create"}`
	if final.Arguments != want {
		t.Fatalf("Arguments=%q, want %q", final.Arguments, want)
	}
}

func TestToolCallAccumulatorFallbackArgs(t *testing.T) {
	acc := newToolCallAccumulator()
	acc.Start(1, StreamedToolCall{
		ID:        "tool-2",
		Name:      "read_file",
		Arguments: `{"file_path":"main.go"}`,
	})

	final, ok := acc.Finish(1)
	if !ok {
		t.Fatalf("expected tool call")
	}
	if final.Arguments != `{"file_path":"main.go"}` {
		t.Fatalf("Arguments=%q, want fallback preserved", final.Arguments)
	}
}

func TestToolCallAccumulatorUnknownIndex(t *testing.T) {
	acc := newToolCallAccumulator()
	if _, ok := acc.Finish(99); ok {
		t.Fatal("expected Finish on unknown index to report not-found")
	}
}

func TestBuildAnthropicMessages_SystemPromptExtracted(t *testing.T) {
	messages := []Message{
		RequestMessage(SystemPromptPart("You are a helpful agent."), UserTextPart("hello")),
	}

	system, out := buildAnthropicMessages(messages)
	if system != "You are a helpful agent." {
		t.Fatalf("system=%q, want the system prompt text", system)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
}

func TestBuildAnthropicMessages_MultipleSystemPromptsJoined(t *testing.T) {
	messages := []Message{
		RequestMessage(SystemPromptPart("first"), SystemPromptPart("second"), UserTextPart("hi")),
	}

	system, _ := buildAnthropicMessages(messages)
	if system != "first\n\nsecond" {
		t.Fatalf("system=%q, want joined system prompts", system)
	}
}

func TestBuildAnthropicMessages_RequestAndResponseAlternate(t *testing.T) {
	messages := []Message{
		RequestMessage(UserTextPart("what's 2+2?")),
		ResponseMessage(AssistantTextPart("4")),
	}

	_, out := buildAnthropicMessages(messages)
	if len(out) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out))
	}
}

func TestBuildAnthropicMessages_EmptyMessageDropped(t *testing.T) {
	messages := []Message{
		RequestMessage(SystemPromptPart("only a system prompt")),
	}

	_, out := buildAnthropicMessages(messages)
	if len(out) != 0 {
		t.Fatalf("expected request with no content blocks to be dropped, got %d messages", len(out))
	}
}

func TestBuildRequestBlocks_ToolReturn(t *testing.T) {
	var systemParts []string
	parts := []Part{ToolReturnPart("call-1", "grep", "no matches found")}

	blocks := buildRequestBlocks(parts, &systemParts)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	tr := blocks[0].OfToolResult
	if tr == nil {
		t.Fatalf("expected tool_result block")
	}
	if tr.ToolUseID != "call-1" {
		t.Fatalf("ToolUseID=%q, want call-1", tr.ToolUseID)
	}
	if len(tr.Content) != 1 || tr.Content[0].OfText == nil || tr.Content[0].OfText.Text != "no matches found" {
		t.Fatalf("unexpected tool_result content: %#v", tr.Content)
	}
}

func TestBuildRequestBlocks_EmptyUserTextDropped(t *testing.T) {
	var systemParts []string
	blocks := buildRequestBlocks([]Part{UserTextPart("")}, &systemParts)
	if len(blocks) != 0 {
		t.Fatalf("expected empty user text to produce no block, got %d", len(blocks))
	}
}

func TestBuildResponseBlocks_ToolCallMarshalsArgs(t *testing.T) {
	parts := []Part{ToolCallPart("call-1", "shell", map[string]any{"command": "ls"})}

	blocks := buildResponseBlocks(parts)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 tool_use block, got %d", len(blocks))
	}
}

func TestBuildResponseBlocks_ThoughtPartsNotReplayed(t *testing.T) {
	parts := []Part{ThoughtPart("reasoning that should not cross the wire"), AssistantTextPart("answer")}

	blocks := buildResponseBlocks(parts)
	if len(blocks) != 1 {
		t.Fatalf("expected thought part to be dropped, got %d blocks", len(blocks))
	}
	if got := blocks[0].OfText; got == nil || got.Text != "answer" {
		t.Fatalf("expected remaining text block 'answer', got %#v", blocks[0])
	}
}

func TestBuildAnthropicTools_SchemaAndRequired(t *testing.T) {
	specs := []ToolSpec{{
		Name:        "read_file",
		Description: "Reads a file",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"file_path": map[string]any{"type": "string"}},
			"required":   []any{"file_path"},
		},
	}}

	tools := buildAnthropicTools(specs)
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	tool := tools[0].OfTool
	if tool == nil {
		t.Fatalf("expected tool union to carry OfTool")
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "file_path" {
		t.Fatalf("Required=%v, want [file_path]", tool.InputSchema.Required)
	}
}

func TestBuildAnthropicTools_EmptySpecsReturnsNil(t *testing.T) {
	if tools := buildAnthropicTools(nil); tools != nil {
		t.Fatalf("expected nil for no specs, got %v", tools)
	}
}

func TestSchemaRequired_MissingOrWrongType(t *testing.T) {
	if got := schemaRequired(map[string]any{}); got != nil {
		t.Fatalf("expected nil for missing required, got %v", got)
	}
	if got := schemaRequired(map[string]any{"required": "not-a-list"}); got != nil {
		t.Fatalf("expected nil for malformed required, got %v", got)
	}
}

func TestBuildAnthropicToolChoice_Modes(t *testing.T) {
	if choice := buildAnthropicToolChoice(ToolChoice{Mode: ToolChoiceNone}, true); choice.OfNone == nil {
		t.Fatalf("expected OfNone for ToolChoiceNone, got %+v", choice)
	}
	if choice := buildAnthropicToolChoice(ToolChoice{Mode: ToolChoiceRequired}, true); choice.OfAny == nil {
		t.Fatalf("expected OfAny for ToolChoiceRequired, got %+v", choice)
	}
	if choice := buildAnthropicToolChoice(ToolChoice{Mode: ToolChoiceName, Name: "shell"}, true); choice.OfTool == nil {
		t.Fatalf("expected OfTool for ToolChoiceName, got %+v", choice)
	}
	choice := buildAnthropicToolChoice(ToolChoice{Mode: ToolChoiceAuto}, false)
	if choice.OfAuto == nil {
		t.Fatalf("expected OfAuto for ToolChoiceAuto, got %+v", choice)
	}
}

func TestMaxTokens(t *testing.T) {
	if got := maxTokens(4096, 1024); got != 4096 {
		t.Fatalf("maxTokens(4096, 1024)=%d, want 4096", got)
	}
	if got := maxTokens(0, 1024); got != 1024 {
		t.Fatalf("maxTokens(0, 1024)=%d, want fallback 1024", got)
	}
	if got := maxTokens(-1, 1024); got != 1024 {
		t.Fatalf("maxTokens(-1, 1024)=%d, want fallback 1024", got)
	}
}
