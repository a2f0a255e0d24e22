// Package main provides the loom CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/loomworks/loom/cli"
	"github.com/spf13/cobra"
)

// Global flags shared by the conversation commands.
var opts = cli.DefaultOptions()

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "loom",
		Short: "Agent conversations with a live, replayable transcript",
		Long: `Loom runs tool-using LLM conversations and folds everything the agent
does - text, tool calls, tool output, screenshots - into a transcript
that streams to your terminal and persists across sessions.`,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.Provider, "provider", "p", opts.Provider, "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&opts.Model, "model", "", "Model override for the chosen provider")
	rootCmd.PersistentFlags().StringVar(&opts.SessionID, "session", opts.SessionID, "Session ID for transcript persistence")
	rootCmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "Database path for transcript storage")
	rootCmd.PersistentFlags().BoolVar(&opts.HideImages, "hide-images", false, "Suppress screenshots from the displayed transcript")
	rootCmd.PersistentFlags().IntVar(&opts.OnlyNMostRecentImages, "only-n-most-recent-images", opts.OnlyNMostRecentImages, "Keep only the N most recent screenshots in model context (0 disables trimming)")
	rootCmd.PersistentFlags().StringVar(&opts.SystemPromptSuffix, "system-prompt-suffix", "", "Extra instructions appended to the system prompt")
	rootCmd.PersistentFlags().IntVarP(&opts.MaxIterations, "max-iter", "m", opts.MaxIterations, "Maximum agent iterations per turn")
	rootCmd.PersistentFlags().Uint32Var(&opts.ToolRetries, "tool-retries", opts.ToolRetries, "Maximum retries for tool execution")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(systemPromptCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation on stdin.

Each turn streams the agent's text, tool calls, and tool results as
they happen. Screenshots are saved to disk and referenced inline.
The transcript is saved after every turn and restored when the same
session ID is used again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), opts)
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [task]",
		Short: "Execute a single task and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunTask(context.Background(), args[0], opts)
		},
	}
}

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListSessions(context.Background(), opts)
		},
	}
}

func authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth [api-key]",
		Short: "Persist an API key for later runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.SaveAPIKey(args[0])
			return nil
		},
	}
}

func systemPromptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "system-prompt [suffix]",
		Short: "Persist extra system prompt instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.SaveSystemPromptSuffix(args[0])
			return nil
		},
	}
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.ListTools(verboseTools)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}
