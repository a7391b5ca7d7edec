// Package main provides the CLI entry point for the mission engine.
//
// The engine runs agent missions: validate the task, resolve the
// acting agent's model, call the provider under rate limit, dispatch
// any returned tool calls (gated through human oversight where the
// tool is side-effecting), and persist the result.
//
// # Basic usage
//
//	nexus serve
//	nexus migrate
//	nexus doctor
//
// # Environment variables
//
//   - NEURAL_TOKEN: bearer token required on every protected HTTP/WS call
//   - DATABASE_URL: sqlite database, e.g. "sqlite:tadpole.db"
//   - DATA_DIR: root for skills/, workflows/, hooks/, workspaces/, vault/
//   - ALLOWED_ORIGINS: comma-separated CORS allow-list
//   - PORT: HTTP listen port (default 8000)
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
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

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "nexus",
		Short:        "Mission engine for orchestrated agent tasks",
		Version:      version + " (commit: " + commit + ", built: " + date + ")",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildMigrateCmd(), buildDoctorCmd())
	return rootCmd
}
