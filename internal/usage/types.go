// Package usage persists per-call UsageMetrics accounting to a local
// sqlite file and reports on it. Adapted from the teacher's multi-CLI
// JSONL usage log: that log merged entries scraped from three other
// tools' on-disk formats, but this tree has exactly one Provider and
// exactly one in-process source of entries (the request orchestrator),
// so there is one Entry shape instead of a cross-CLI union.
package usage

import "time"

// Entry is one turn's usage accounting, recorded by the chat command from
// the orchestrator's TurnOutcome after each turn.
type Entry struct {
	Timestamp    time.Time
	SessionID    string
	RequestID    string
	Model        string
	InputTokens  int
	OutputTokens int
	CachedTokens int
	CostUSD      float64
}

// TotalTokens returns the sum of all token types recorded for the entry.
func (e Entry) TotalTokens() int {
	return e.InputTokens + e.OutputTokens + e.CachedTokens
}

// DailyUsage represents aggregated usage for a single day.
type DailyUsage struct {
	Date         string // YYYY-MM-DD format
	InputTokens  int
	OutputTokens int
	CachedTokens int
	TotalCost    float64
	ModelsUsed   []string
}

// TotalTokens returns the sum of all token types for the day.
func (d DailyUsage) TotalTokens() int {
	return d.InputTokens + d.OutputTokens + d.CachedTokens
}

// ModelBreakdown represents usage broken down by model.
type ModelBreakdown struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CachedTokens int
	Cost         float64
}

// DefaultDateRange returns the default reporting window (last 7 days),
// matching the teacher's usage command's default.
func DefaultDateRange() (since, until time.Time) {
	now := time.Now()
	until = time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	since = until.AddDate(0, 0, -6)
	since = time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, since.Location())
	return since, until
}

// ParseDateYYYYMMDD parses a date in YYYYMMDD format, the teacher usage
// command's --since/--until flag format.
func ParseDateYYYYMMDD(s string) (time.Time, error) {
	return time.Parse("20060102", s)
}
