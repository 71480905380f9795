package usage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateDaily(t *testing.T) {
	day1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Timestamp: day1, Model: "claude-sonnet-4-5", InputTokens: 100, OutputTokens: 50, CostUSD: 0.01},
		{Timestamp: day1, Model: "claude-sonnet-4-5", InputTokens: 200, OutputTokens: 75, CostUSD: 0.02},
		{Timestamp: day2, Model: "claude-opus-4-5", InputTokens: 50, OutputTokens: 25, CostUSD: 0.05},
	}

	daily := AggregateDaily(entries)
	require.Len(t, daily, 2)
	assert.Equal(t, "2026-01-01", daily[0].Date)
	assert.Equal(t, 300, daily[0].InputTokens)
	assert.InDelta(t, 0.03, daily[0].TotalCost, 1e-9)
	assert.Equal(t, []string{"claude-sonnet-4-5"}, daily[0].ModelsUsed)
	assert.Equal(t, "2026-01-02", daily[1].Date)
}

func TestAggregateDailyEmpty(t *testing.T) {
	assert.Nil(t, AggregateDaily(nil))
}

func TestGetModelBreakdown(t *testing.T) {
	entries := []Entry{
		{Model: "claude-sonnet-4-5", InputTokens: 1000, OutputTokens: 100},
		{Model: "claude-opus-4-5", InputTokens: 10, OutputTokens: 5},
		{Model: "", InputTokens: 1, OutputTokens: 1},
	}

	breakdown := GetModelBreakdown(entries)
	require.Len(t, breakdown, 3)
	assert.Equal(t, "claude-sonnet-4-5", breakdown[0].Model)
	assert.Equal(t, "unknown", breakdown[2].Model)
}

func TestCalculateTotals(t *testing.T) {
	daily := []DailyUsage{
		{Date: "2026-01-01", InputTokens: 100, TotalCost: 1.5, ModelsUsed: []string{"a"}},
		{Date: "2026-01-02", InputTokens: 50, TotalCost: 0.5, ModelsUsed: []string{"b", "a"}},
	}

	total := CalculateTotals(daily)
	assert.Equal(t, "Total", total.Date)
	assert.Equal(t, 150, total.InputTokens)
	assert.InDelta(t, 2.0, total.TotalCost, 1e-9)
	assert.Equal(t, []string{"a", "b"}, total.ModelsUsed)
}

func TestParseDateYYYYMMDD(t *testing.T) {
	got, err := ParseDateYYYYMMDD("20260115")
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.January, got.Month())
	assert.Equal(t, 15, got.Day())

	_, err = ParseDateYYYYMMDD("not-a-date")
	assert.Error(t, err)
}

func TestCostForUsageTieredPricing(t *testing.T) {
	fetcher := NewPricingFetcher()
	fetcher.cache = map[string]ModelPricing{
		"claude-sonnet-4-5": {
			InputCostPerToken:           0.000003,
			InputCostPerTokenAbove200k:  0.000006,
			OutputCostPerToken:          0.000015,
			OutputCostPerTokenAbove200k: 0.00003,
			CacheReadInputTokenCost:     0.0000003,
		},
	}
	fetcher.lastFetch = time.Now()

	cost := fetcher.CostForUsage("claude-sonnet-4-5", 1000, 500, 0)
	want := 1000*0.000003 + 500*0.000015
	assert.InDelta(t, want, cost, 1e-9)

	tieredCost := fetcher.CostForUsage("claude-sonnet-4-5", 250_000, 0, 0)
	wantTiered := float64(tieredThreshold)*0.000003 + float64(250_000-tieredThreshold)*0.000006
	assert.InDelta(t, wantTiered, tieredCost, 1e-6)
}

func TestCostForUsageUnknownModelIsZero(t *testing.T) {
	fetcher := NewPricingFetcher()
	fetcher.cache = map[string]ModelPricing{}
	fetcher.lastFetch = time.Now()

	assert.Equal(t, float64(0), fetcher.CostForUsage("unknown-model", 100, 100, 0))
	assert.Equal(t, float64(0), fetcher.CostForUsage("", 100, 100, 0))
}

func TestStoreRecordAndLoadRange(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "usage.db")
	store, err := OpenStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	now := time.Now().UTC().Truncate(time.Second)
	entry := Entry{
		Timestamp:    now,
		SessionID:    "sess-1",
		RequestID:    "req-1",
		Model:        "claude-sonnet-4-5",
		InputTokens:  100,
		OutputTokens: 50,
		CachedTokens: 10,
		CostUSD:      0.01,
	}
	require.NoError(t, store.Record(entry))

	loaded, err := store.LoadRange(now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, entry.SessionID, loaded[0].SessionID)
	assert.Equal(t, entry.Model, loaded[0].Model)
	assert.Equal(t, entry.InputTokens, loaded[0].InputTokens)
}

func TestStoreLoadRangeExcludesOutsideWindow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "usage.db")
	store, err := OpenStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(Entry{Timestamp: old, SessionID: "s", RequestID: "r", Model: "m"}))

	since, until := DefaultDateRange()
	loaded, err := store.LoadRange(since, until)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
