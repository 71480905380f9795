package usage

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	liteLLMPricingURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"
	pricingCacheTTL   = 5 * time.Minute
	tieredThreshold   = 200_000 // token threshold for tiered pricing
)

// ModelPricing contains per-token pricing for a model, as published by
// LiteLLM's pricing table.
type ModelPricing struct {
	InputCostPerToken           float64 `json:"input_cost_per_token"`
	OutputCostPerToken          float64 `json:"output_cost_per_token"`
	CacheReadInputTokenCost     float64 `json:"cache_read_input_token_cost"`
	InputCostPerTokenAbove200k  float64 `json:"input_cost_per_token_above_200k_tokens"`
	OutputCostPerTokenAbove200k float64 `json:"output_cost_per_token_above_200k_tokens"`
	CacheReadCostAbove200k      float64 `json:"cache_read_input_token_cost_above_200k_tokens"`
}

// PricingFetcher fetches and caches model pricing from LiteLLM, falling
// back to a stale disk cache when the network is unavailable.
type PricingFetcher struct {
	mu         sync.RWMutex
	cache      map[string]ModelPricing
	lastFetch  time.Time
	cacheDir   string
	httpClient *http.Client
}

// NewPricingFetcher creates a new pricing fetcher.
func NewPricingFetcher() *PricingFetcher {
	cacheDir := filepath.Join(os.TempDir(), "term-llm-pricing")
	os.MkdirAll(cacheDir, 0755)

	return &PricingFetcher{
		cache:      make(map[string]ModelPricing),
		cacheDir:   cacheDir,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// providerPrefixes are common prefixes tried when looking up a bare model
// name in the LiteLLM table.
var providerPrefixes = []string{"", "anthropic/", "openrouter/anthropic/"}

// GetPricing returns pricing for a model, fetching the table if stale.
func (p *PricingFetcher) GetPricing(modelName string) (ModelPricing, error) {
	if err := p.ensureLoaded(); err != nil {
		return ModelPricing{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if pricing, ok := p.cache[modelName]; ok {
		return pricing, nil
	}
	for _, prefix := range providerPrefixes {
		if pricing, ok := p.cache[prefix+modelName]; ok {
			return pricing, nil
		}
	}

	lower := strings.ToLower(modelName)
	for key, pricing := range p.cache {
		keyLower := strings.ToLower(key)
		if strings.Contains(keyLower, lower) || strings.Contains(lower, keyLower) {
			return pricing, nil
		}
	}

	return ModelPricing{}, fmt.Errorf("pricing not found for model: %s", modelName)
}

func (p *PricingFetcher) ensureLoaded() error {
	p.mu.RLock()
	if len(p.cache) > 0 && time.Since(p.lastFetch) < pricingCacheTTL {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()
	return p.fetch()
}

func (p *PricingFetcher) fetch() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.cache) > 0 && time.Since(p.lastFetch) < pricingCacheTTL {
		return nil
	}

	cacheFile := filepath.Join(p.cacheDir, "pricing.json")
	if info, err := os.Stat(cacheFile); err == nil {
		if time.Since(info.ModTime()) < pricingCacheTTL {
			if data, err := os.ReadFile(cacheFile); err == nil {
				if err := p.parseData(data); err == nil {
					return nil
				}
			}
		}
	}

	resp, err := p.httpClient.Get(liteLLMPricingURL)
	if err != nil {
		if data, readErr := os.ReadFile(cacheFile); readErr == nil {
			if err := p.parseData(data); err == nil {
				return nil
			}
		}
		return fmt.Errorf("failed to fetch pricing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch pricing: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read pricing data: %w", err)
	}
	if err := p.parseData(data); err != nil {
		return err
	}

	os.WriteFile(cacheFile, data, 0644)
	return nil
}

func (p *PricingFetcher) parseData(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse pricing JSON: %w", err)
	}

	newCache := make(map[string]ModelPricing)
	for key, value := range raw {
		var pricing ModelPricing
		if err := json.Unmarshal(value, &pricing); err != nil {
			continue
		}
		newCache[key] = pricing
	}

	p.cache = newCache
	p.lastFetch = time.Now()
	return nil
}

// CostForUsage computes the dollar cost of one call's token accounting.
// It never returns an error: pricing lookups that fail (offline, unknown
// model) degrade to a zero cost rather than blocking the turn loop, since
// cost is informational accounting, not a gate on whether the call ran.
func (p *PricingFetcher) CostForUsage(model string, promptTokens, completionTokens, cachedTokens int) float64 {
	if model == "" {
		return 0
	}
	pricing, err := p.GetPricing(model)
	if err != nil {
		return 0
	}

	var cost float64
	cost += calculateTieredCost(promptTokens, pricing.InputCostPerToken, pricing.InputCostPerTokenAbove200k)
	cost += calculateTieredCost(completionTokens, pricing.OutputCostPerToken, pricing.OutputCostPerTokenAbove200k)
	cost += calculateTieredCost(cachedTokens, pricing.CacheReadInputTokenCost, pricing.CacheReadCostAbove200k)
	return cost
}

// calculateTieredCost applies LiteLLM's 200k-token pricing tier.
func calculateTieredCost(tokens int, basePrice, tieredPrice float64) float64 {
	if tokens <= 0 {
		return 0
	}

	if tokens > tieredThreshold && tieredPrice > 0 {
		belowThreshold := min(tokens, tieredThreshold)
		aboveThreshold := tokens - tieredThreshold

		cost := float64(aboveThreshold) * tieredPrice
		if basePrice > 0 {
			cost += float64(belowThreshold) * basePrice
		}
		return cost
	}

	if basePrice > 0 {
		return float64(tokens) * basePrice
	}
	return 0
}
