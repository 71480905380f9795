package usage

import "sort"

// AggregateDaily aggregates usage entries by day.
func AggregateDaily(entries []Entry) []DailyUsage {
	if len(entries) == 0 {
		return nil
	}

	byDate := make(map[string]*DailyUsage)
	for _, e := range entries {
		date := e.Timestamp.Format("2006-01-02")
		daily, ok := byDate[date]
		if !ok {
			daily = &DailyUsage{Date: date}
			byDate[date] = daily
		}

		daily.InputTokens += e.InputTokens
		daily.OutputTokens += e.OutputTokens
		daily.CachedTokens += e.CachedTokens
		daily.TotalCost += e.CostUSD

		found := false
		for _, m := range daily.ModelsUsed {
			if m == e.Model {
				found = true
				break
			}
		}
		if !found && e.Model != "" {
			daily.ModelsUsed = append(daily.ModelsUsed, e.Model)
		}
	}

	result := make([]DailyUsage, 0, len(byDate))
	for _, daily := range byDate {
		result = append(result, *daily)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result
}

// GetModelBreakdown returns token usage broken down by model.
func GetModelBreakdown(entries []Entry) []ModelBreakdown {
	byModel := make(map[string]*ModelBreakdown)

	for _, e := range entries {
		model := e.Model
		if model == "" {
			model = "unknown"
		}
		mb, ok := byModel[model]
		if !ok {
			mb = &ModelBreakdown{Model: model}
			byModel[model] = mb
		}
		mb.InputTokens += e.InputTokens
		mb.OutputTokens += e.OutputTokens
		mb.CachedTokens += e.CachedTokens
		mb.Cost += e.CostUSD
	}

	result := make([]ModelBreakdown, 0, len(byModel))
	for _, mb := range byModel {
		result = append(result, *mb)
	}
	sort.Slice(result, func(i, j int) bool {
		iTotal := result[i].InputTokens + result[i].OutputTokens
		jTotal := result[j].InputTokens + result[j].OutputTokens
		return iTotal > jTotal
	})
	return result
}

// CalculateTotals calculates total usage across all daily entries.
func CalculateTotals(daily []DailyUsage) DailyUsage {
	var total DailyUsage
	total.Date = "Total"
	modelSet := make(map[string]bool)

	for _, d := range daily {
		total.InputTokens += d.InputTokens
		total.OutputTokens += d.OutputTokens
		total.CachedTokens += d.CachedTokens
		total.TotalCost += d.TotalCost
		for _, m := range d.ModelsUsed {
			modelSet[m] = true
		}
	}

	for m := range modelSet {
		total.ModelsUsed = append(total.ModelsUsed, m)
	}
	sort.Strings(total.ModelsUsed)
	return total
}
