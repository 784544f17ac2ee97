package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/fabler/internal/config"
	"github.com/jwebster45206/fabler/internal/engine"
	"github.com/jwebster45206/fabler/internal/logger"
	"github.com/jwebster45206/fabler/pkg/migrate"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <in> <out>",
		Short: "Convert a save into the current schema",
		Long: "Reads a save in any supported shape (current world model, bare message list,\n" +
			"or story_log + world_state), validates it and writes indented JSON.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.OutOrStdout(), cliLogger(), args[0], args[1])
		},
	}
}

func runMigrate(out io.Writer, log *slog.Logger, in, dest string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", in, err)
	}
	w, warnings, err := engine.DecodeWorld(data, migrate.New(log))
	if err != nil {
		return err
	}
	printWarnings(out, warnings)

	converted, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal world: %w", err)
	}
	if err := os.WriteFile(dest, append(converted, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	fmt.Fprintf(out, "Wrote %s (%d events, chapter %d)\n", dest, len(w.Timeline), w.Chapter)
	return nil
}

func printWarnings(out io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(out, "Warnings (%d):\n", len(warnings))
	for _, warn := range warnings {
		fmt.Fprintf(out, "  - %s\n", warn)
	}
}

// cliLogger logs to stderr at the configured level, falling back to defaults
// when the environment is malformed.
func cliLogger() *slog.Logger {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{LogLevel: slog.LevelInfo}
	}
	return logger.Setup(cfg, os.Stderr)
}
