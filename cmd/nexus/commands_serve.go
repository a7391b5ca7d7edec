package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func buildServeCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mission engine HTTP/WS server",
		Long: `Start the mission engine server.

Loads configuration from the environment, opens the SQLite stores,
bootstraps the data directory, wires the provider registry, and serves
the agent/oversight/engine HTTP surface plus the WebSocket event feed
until SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	return cmd
}

func runServe(ctx context.Context, debug bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(debug)
	if err != nil {
		return err
	}
	defer srv.Close()

	slog.Info("starting mission engine", "addr", srv.addr, "data_dir", srv.cfg.DataDir)
	return srv.Run(ctx)
}
