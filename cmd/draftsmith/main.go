// Package main provides the CLI entry point for the Draftsmith agent runtime.
//
// Draftsmith runs markdown-defined agents against LLM providers (Anthropic,
// OpenAI) with a virtual filesystem, cost tracking, and sub-agent
// orchestration.
//
// # Basic Usage
//
// Run a single agent command to completion:
//
//	draftsmith run --agent pm --command create-prd
//
// Chat interactively with an agent:
//
//	draftsmith chat --agent pm
//
// Inspect persisted sessions:
//
//	draftsmith sessions list
//	draftsmith sessions show sess_abc
//
// # Environment Variables
//
//   - DRAFTSMITH_CONFIG: path to the configuration file (default: draftsmith.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "draftsmith",
		Short: "Draftsmith - markdown-defined agent runtime",
		Long: `Draftsmith executes markdown-defined agents through an LLM tool-call loop.

Agents read and write documents in a session-scoped virtual filesystem,
invoke sub-agents with inherited cost budgets, and persist artifacts to
memory or S3-compatible storage.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildChatCmd(),
		buildSessionsCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "draftsmith %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func defaultConfigPath() string {
	if path := os.Getenv("DRAFTSMITH_CONFIG"); path != "" {
		return path
	}
	return "draftsmith.yaml"
}
