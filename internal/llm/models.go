package llm

import "strings"

// CuratedModels lists the Anthropic models this tool's config completion
// and documentation surface offers, narrowed from the teacher's
// multi-provider ProviderModels map to the single transport this tree
// exercises.
var CuratedModels = []string{
	"claude-sonnet-4-5",
	"claude-opus-4-5",
	"claude-haiku-4-5",
}

// CompleteModel returns curated model names matching the given prefix, for
// the config/CLI model-selection completion hook.
func CompleteModel(toComplete string) []string {
	var completions []string
	for _, model := range CuratedModels {
		if strings.HasPrefix(model, toComplete) {
			completions = append(completions, model)
		}
	}
	return completions
}
