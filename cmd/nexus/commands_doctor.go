package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/skills"
	"github.com/haasonsaas/nexus/internal/workspace"
)

func buildDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, the data directory, and provider credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd)
		},
	}
	return cmd
}

func runDoctor(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	ok := true

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(out, "[FAIL] config: %v\n", err)
		return err
	}
	fmt.Fprintf(out, "[ OK ] config loaded (data_dir=%s, port=%d)\n", cfg.DataDir, cfg.Port)

	if _, err := workspace.EnsureDataDir(cfg.DataDir, workspace.DefaultBootstrapFiles()); err != nil {
		fmt.Fprintf(out, "[FAIL] data directory: %v\n", err)
		ok = false
	} else {
		fmt.Fprintf(out, "[ OK ] data directory ready at %s\n", cfg.DataDir)
	}

	if _, err := skills.NewRegistry(cfg.DataDir); err != nil {
		fmt.Fprintf(out, "[FAIL] skill registry: %v\n", err)
		ok = false
	} else {
		fmt.Fprintf(out, "[ OK ] skill registry loaded\n")
	}

	providerCount := 0
	if cfg.GoogleAPIKey != "" {
		providerCount++
		fmt.Fprintln(out, "[ OK ] GOOGLE_API_KEY configured")
	}
	if cfg.GroqAPIKey != "" {
		providerCount++
		fmt.Fprintln(out, "[ OK ] GROQ_API_KEY configured")
	}
	for _, pc := range cfg.Providers {
		if pc.APIKey != "" {
			providerCount++
			fmt.Fprintf(out, "[ OK ] registry provider %q configured\n", pc.ID)
		}
	}
	if providerCount == 0 {
		fmt.Fprintln(out, "[WARN] no provider credentials configured; missions will fail to resolve a provider")
	}

	if cfg.NeuralToken == "" {
		if cfg.Debug {
			fmt.Fprintln(out, "[WARN] NEURAL_TOKEN unset; running unauthenticated in debug mode")
		} else {
			fmt.Fprintln(out, "[FAIL] NEURAL_TOKEN unset")
			ok = false
		}
	} else {
		fmt.Fprintln(out, "[ OK ] NEURAL_TOKEN configured")
	}

	if cfg.DiscordWebhook == "" {
		fmt.Fprintln(out, "[WARN] DISCORD_WEBHOOK unset; notify_discord will fail if invoked")
	}

	if !ok {
		return fmt.Errorf("doctor found blocking issues")
	}
	return nil
}
