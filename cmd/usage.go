package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samsaffron/term-llm/internal/config"
	"github.com/samsaffron/term-llm/internal/usage"
	"github.com/spf13/cobra"
)

var (
	usageSince     string
	usageUntil     string
	usageJSON      bool
	usageBreakdown bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show token usage and costs recorded by chat sessions",
	Long: `usage reads the local sqlite usage store populated by "term-llm chat"
and reports token counts and estimated cost, aggregated by day.

Examples:
  term-llm usage                   # show last 7 days
  term-llm usage --since 20260101  # from Jan 1, 2026
  term-llm usage --json            # output as JSON
  term-llm usage --breakdown       # show per-model breakdown`,
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.Flags().StringVar(&usageSince, "since", "", "Start date (YYYYMMDD)")
	usageCmd.Flags().StringVar(&usageUntil, "until", "", "End date (YYYYMMDD)")
	usageCmd.Flags().BoolVar(&usageJSON, "json", false, "Output as JSON")
	usageCmd.Flags().BoolVar(&usageBreakdown, "breakdown", false, "Show per-model breakdown")
}

func runUsage(cmd *cobra.Command, args []string) error {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to resolve config dir: %w", err)
	}
	store, err := usage.OpenStore(usage.DefaultStorePath(configDir))
	if err != nil {
		return fmt.Errorf("failed to open usage store: %w", err)
	}
	defer store.Close()

	since, until := usage.DefaultDateRange()
	if usageSince != "" {
		t, err := usage.ParseDateYYYYMMDD(usageSince)
		if err != nil {
			return fmt.Errorf("invalid --since date (expected YYYYMMDD): %w", err)
		}
		since = t
	}
	if usageUntil != "" {
		t, err := usage.ParseDateYYYYMMDD(usageUntil)
		if err != nil {
			return fmt.Errorf("invalid --until date (expected YYYYMMDD): %w", err)
		}
		until = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
	}

	entries, err := store.LoadRange(since, until)
	if err != nil {
		return fmt.Errorf("failed to load usage: %w", err)
	}
	if len(entries) == 0 {
		if usageJSON {
			fmt.Println(`{"daily": [], "totals": {}}`)
		} else {
			fmt.Println("No usage data found for the specified date range.")
		}
		return nil
	}

	daily := usage.AggregateDaily(entries)
	totals := usage.CalculateTotals(daily)

	if usageJSON {
		return outputUsageJSON(daily, totals, entries)
	}
	return outputUsageTable(daily, totals, entries, since, until)
}

type jsonDailyUsage struct {
	Date         string               `json:"date"`
	InputTokens  int                  `json:"inputTokens"`
	OutputTokens int                  `json:"outputTokens"`
	CachedTokens int                  `json:"cachedTokens"`
	TotalTokens  int                  `json:"totalTokens"`
	TotalCost    float64              `json:"totalCost"`
	ModelsUsed   []string             `json:"modelsUsed"`
	Breakdown    []jsonModelBreakdown `json:"breakdown,omitempty"`
}

type jsonModelBreakdown struct {
	Model        string  `json:"model"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	CachedTokens int     `json:"cachedTokens"`
	Cost         float64 `json:"cost"`
}

type jsonTotals struct {
	InputTokens  int      `json:"inputTokens"`
	OutputTokens int      `json:"outputTokens"`
	CachedTokens int      `json:"cachedTokens"`
	TotalTokens  int      `json:"totalTokens"`
	TotalCost    float64  `json:"totalCost"`
	ModelsUsed   []string `json:"modelsUsed"`
}

func outputUsageJSON(daily []usage.DailyUsage, totals usage.DailyUsage, entries []usage.Entry) error {
	output := struct {
		Daily  []jsonDailyUsage `json:"daily"`
		Totals jsonTotals       `json:"totals"`
	}{
		Daily: make([]jsonDailyUsage, len(daily)),
		Totals: jsonTotals{
			InputTokens:  totals.InputTokens,
			OutputTokens: totals.OutputTokens,
			CachedTokens: totals.CachedTokens,
			TotalTokens:  totals.TotalTokens(),
			TotalCost:    totals.TotalCost,
			ModelsUsed:   totals.ModelsUsed,
		},
	}

	entriesByDate := make(map[string][]usage.Entry)
	for _, e := range entries {
		date := e.Timestamp.Format("2006-01-02")
		entriesByDate[date] = append(entriesByDate[date], e)
	}

	for i, d := range daily {
		jd := jsonDailyUsage{
			Date:         d.Date,
			InputTokens:  d.InputTokens,
			OutputTokens: d.OutputTokens,
			CachedTokens: d.CachedTokens,
			TotalTokens:  d.TotalTokens(),
			TotalCost:    d.TotalCost,
			ModelsUsed:   d.ModelsUsed,
		}
		if usageBreakdown {
			breakdown := usage.GetModelBreakdown(entriesByDate[d.Date])
			jd.Breakdown = make([]jsonModelBreakdown, len(breakdown))
			for j, mb := range breakdown {
				jd.Breakdown[j] = jsonModelBreakdown{
					Model:        mb.Model,
					InputTokens:  mb.InputTokens,
					OutputTokens: mb.OutputTokens,
					CachedTokens: mb.CachedTokens,
					Cost:         mb.Cost,
				}
			}
		}
		output.Daily[i] = jd
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func outputUsageTable(daily []usage.DailyUsage, totals usage.DailyUsage, entries []usage.Entry, since, until time.Time) error {
	fmt.Printf("Usage from %s to %s\n\n", since.Format("2006-01-02"), until.Format("2006-01-02"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Date\t Input\t Output\t Cached\t Cost\t\n")
	fmt.Fprintf(w, "────\t ─────\t ──────\t ──────\t ────\t\n")

	entriesByDate := make(map[string][]usage.Entry)
	for _, e := range entries {
		date := e.Timestamp.Format("2006-01-02")
		entriesByDate[date] = append(entriesByDate[date], e)
	}

	for _, d := range daily {
		fmt.Fprintf(w, "%s\t %s\t %s\t %s\t %s\t\n",
			d.Date, formatTokens(d.InputTokens), formatTokens(d.OutputTokens),
			formatTokens(d.CachedTokens), formatCost(d.TotalCost))

		if usageBreakdown {
			for _, mb := range usage.GetModelBreakdown(entriesByDate[d.Date]) {
				fmt.Fprintf(w, "  %s\t %s\t %s\t %s\t %s\t\n",
					shortenModelName(mb.Model), formatTokens(mb.InputTokens),
					formatTokens(mb.OutputTokens), formatTokens(mb.CachedTokens), formatCost(mb.Cost))
			}
		}
	}

	fmt.Fprintf(w, "────\t ─────\t ──────\t ──────\t ────\t\n")
	fmt.Fprintf(w, "Total\t %s\t %s\t %s\t %s\t\n",
		formatTokens(totals.InputTokens), formatTokens(totals.OutputTokens),
		formatTokens(totals.CachedTokens), formatCost(totals.TotalCost))

	return w.Flush()
}

func formatTokens(n int) string {
	if n == 0 {
		return "0"
	}
	if n >= 1_000_000 {
		val := float64(n) / 1_000_000
		if val >= 100 {
			return fmt.Sprintf("%.0fM", val)
		} else if val >= 10 {
			return fmt.Sprintf("%.1fM", val)
		}
		return fmt.Sprintf("%.2fM", val)
	}
	if n >= 1_000 {
		val := float64(n) / 1_000
		if val >= 100 {
			return fmt.Sprintf("%.0fk", val)
		} else if val >= 10 {
			return fmt.Sprintf("%.1fk", val)
		}
		return fmt.Sprintf("%.2fk", val)
	}
	return fmt.Sprintf("%d", n)
}

func formatCost(cost float64) string {
	if cost == 0 {
		return "$0.00"
	}
	return fmt.Sprintf("$%.4f", cost)
}

// shortenModelName drops a trailing date suffix from Anthropic model names,
// e.g. claude-sonnet-4-5-20250929 -> claude-sonnet-4-5.
func shortenModelName(name string) string {
	if !strings.HasPrefix(name, "claude-") {
		return name
	}
	parts := strings.Split(name, "-")
	if len(parts) >= 3 && len(parts[len(parts)-1]) == 8 {
		name = strings.Join(parts[:len(parts)-1], "-")
	}
	return name
}
