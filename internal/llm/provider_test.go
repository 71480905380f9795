package llm

import (
	"testing"

	"github.com/samsaffron/term-llm/internal/config"
)

func TestNewProviderWrapsAnthropicWithRetry(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_CODE_OAUTH_TOKEN", "")

	cfg := &config.Config{
		Anthropic: config.AnthropicConfig{
			APIKey:      "sk-test-key",
			Model:       "claude-sonnet-4-5",
			Credentials: "api_key",
		},
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() == "" {
		t.Fatal("expected a provider name")
	}
	if provider.Credential() != "api_key" {
		t.Fatalf("Credential()=%q, want api_key", provider.Credential())
	}
}

func TestNewProviderPropagatesCredentialError(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_CODE_OAUTH_TOKEN", "")

	cfg := &config.Config{
		Anthropic: config.AnthropicConfig{
			Credentials: "api_key", // no api key set anywhere
		},
	}

	if _, err := NewProvider(cfg); err == nil {
		t.Fatal("expected error when forcing api_key credentials with no key available")
	}
}
