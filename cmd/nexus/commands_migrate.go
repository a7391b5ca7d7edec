package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/storage"
)

func buildMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQLite schema for the agent and mission stores",
		Long: `Open the configured database and apply its schema.

Both stores create their tables with CREATE TABLE IF NOT EXISTS on open,
so this command is safe to run repeatedly and is the only migration step
this engine needs — there is no separate up/down ladder to track.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd)
		},
	}
	return cmd
}

func runMigrate(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := strings.TrimPrefix(cfg.DatabaseURL, "sqlite:")

	agents, err := storage.OpenSQLiteAgentStore(path)
	if err != nil {
		return fmt.Errorf("migrate agent schema: %w", err)
	}
	defer agents.Close()

	missions, err := storage.OpenSQLiteMissionStore(path)
	if err != nil {
		return fmt.Errorf("migrate mission schema: %w", err)
	}
	defer missions.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "schema applied to %s\n", path)
	return nil
}
