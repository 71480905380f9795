package cmd

import "testing"

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		expected string
	}{
		{"zero", 0, "0"},
		{"small", 42, "42"},
		{"thousands", 1500, "1.50k"},
		{"tens of thousands", 15000, "15.0k"},
		{"hundreds of thousands", 250000, "250k"},
		{"millions", 1_500_000, "1.50M"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTokens(tt.n); got != tt.expected {
				t.Errorf("formatTokens(%d) = %q, want %q", tt.n, got, tt.expected)
			}
		})
	}
}

func TestFormatCost(t *testing.T) {
	tests := []struct {
		name     string
		cost     float64
		expected string
	}{
		{"zero", 0, "$0.00"},
		{"fractional cent", 0.0001, "$0.0001"},
		{"whole dollars", 12.5, "$12.5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatCost(tt.cost); got != tt.expected {
				t.Errorf("formatCost(%f) = %q, want %q", tt.cost, got, tt.expected)
			}
		})
	}
}

func TestShortenModelName(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		expected string
	}{
		{"dated model", "claude-sonnet-4-5-20250929", "claude-sonnet-4-5"},
		{"undated model", "claude-sonnet-4-5", "claude-sonnet-4-5"},
		{"non-claude model", "gpt-5.2", "gpt-5.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shortenModelName(tt.model); got != tt.expected {
				t.Errorf("shortenModelName(%q) = %q, want %q", tt.model, got, tt.expected)
			}
		})
	}
}
