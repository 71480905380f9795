package llm

import (
	"fmt"

	"github.com/samsaffron/term-llm/internal/config"
)

// NewProvider constructs the configured Anthropic provider, wrapped with
// retry for rate limits (429) and transient errors. Multi-provider
// selection is dropped per SPEC_FULL.md's ambient-stack scope — the core
// depends only on the Provider interface, and Anthropic is this tree's one
// concrete transport.
func NewProvider(cfg *config.Config) (Provider, error) {
	provider, err := NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.Credentials)
	if err != nil {
		return nil, fmt.Errorf("anthropic provider: %w", err)
	}
	retryCfg := DefaultRetryConfig()
	if cfg.MaxRetries >= 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries + 1
	}
	return WrapWithRetry(provider, retryCfg), nil
}
