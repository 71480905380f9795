package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var debugMode bool

var rootCmd = &cobra.Command{
	Use:   "term-llm",
	Short: "A terminal chat client for Claude",
	Long: `term-llm drives a tool-using chat loop against Claude from the
terminal: it streams model responses, dispatches tool calls against a
sandboxed local tool registry, and tracks per-call token usage and cost.

Examples:
  term-llm chat
  term-llm usage
  term-llm usage --breakdown`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "Log raw requests, tool calls, and stream events")
}

// Execute runs the root command, exiting the process with a non-zero
// status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
