package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/samsaffron/term-llm/internal/config"
	"github.com/samsaffron/term-llm/internal/llm"
	"github.com/samsaffron/term-llm/internal/session"
	"github.com/samsaffron/term-llm/internal/tools"
	"github.com/samsaffron/term-llm/internal/usage"
	"github.com/spf13/cobra"
)

var chatToolsFlag string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `chat reads one line of input at a time from stdin, sends it to Claude
as a turn, streams the reply to stdout, and dispatches any tool calls the
model makes against the local tool registry. Ctrl-D ends the session.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatToolsFlag, "tools", "", "Comma-separated tool allowlist, overriding the default battery")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if debugMode {
		cfg.DebugMetrics = true
	}

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	toolConfig := tools.DefaultToolConfig()
	if chatToolsFlag != "" {
		toolConfig.Enabled = tools.ParseToolsFlag(chatToolsFlag)
	} else {
		toolConfig.Enabled = tools.AllToolNames()
	}
	toolManager, err := tools.NewToolManager(&toolConfig, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up tools: %w", err)
	}

	engine := llm.NewEngine(provider, nil)
	engine.SetDebugMetrics(cfg.DebugMetrics)
	toolManager.SetupEngine(engine)

	chatSessionID := uuid.NewString()[:8]

	orchestrator := session.NewOrchestrator(engine, cfg.Anthropic.Model)
	sess := session.New(session.Settings{
		MaxIterations:        cfg.MaxIterations,
		RequestDelaySeconds:  cfg.RequestDelaySeconds,
		GlobalRequestTimeout: cfg.GlobalRequestTimeout,
		MaxRetries:           cfg.MaxRetries,
		ToolStrictValidation: cfg.ToolStrictValidation,
		DebugMetrics:         cfg.DebugMetrics,
	})

	configDir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to resolve config dir: %w", err)
	}
	store, err := usage.OpenStore(usage.DefaultStorePath(configDir))
	if err != nil {
		return fmt.Errorf("failed to open usage store: %w", err)
	}
	defer store.Close()

	fetcher := usage.NewPricingFetcher()
	pricing := llm.PricingFunc(func(model string, u llm.UsageMetrics) float64 {
		return fetcher.CostForUsage(model, u.PromptTokens, u.CompletionTokens, u.CachedTokens)
	})

	hooks := session.Hooks{
		ToolCallback: engine.BuildToolCallback(),
		StreamingCallback: func(chunk string) {
			fmt.Print(chunk)
		},
		ToolStartCallback: func(displayName string) {
			fmt.Fprintf(os.Stderr, "\n→ %s\n", displayName)
		},
		ToolResultCallback: func(toolName, status string, _ map[string]any, resultStr string) {
			llm.DebugToolResult(cfg.DebugMetrics, "", toolName, resultStr)
		},
		NoticeCallback: func(text string) {
			fmt.Fprintf(os.Stderr, "\n[%s]\n", text)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("term-llm chat — model %s. Ctrl-D to exit.\n", cfg.Anthropic.Model)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		outcome, runErr := orchestrator.Run(ctx, sess, line, hooks, pricing)
		fmt.Println()
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		}

		if outcome.Usage != (llm.UsageMetrics{}) {
			entry := usage.Entry{
				Timestamp:    time.Now(),
				SessionID:    chatSessionID,
				RequestID:    outcome.RequestID,
				Model:        cfg.Anthropic.Model,
				InputTokens:  outcome.Usage.PromptTokens,
				OutputTokens: outcome.Usage.CompletionTokens,
				CachedTokens: outcome.Usage.CachedTokens,
				CostUSD:      outcome.Usage.Cost,
			}
			if err := store.Record(entry); err != nil {
				slog.Warn("failed to record usage", "error", err)
			}
		}

		if ctx.Err() != nil {
			break
		}
	}

	return scanner.Err()
}
