package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/fabler/internal/engine"
	"github.com/jwebster45206/fabler/pkg/migrate"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a save loads, migrating it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), cliLogger(), args[0])
		},
	}
}

func runValidate(out io.Writer, log *slog.Logger, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	w, warnings, err := engine.DecodeWorld(data, migrate.New(log))
	if err != nil {
		return err
	}

	hero, _ := w.Player()
	fmt.Fprintf(out, "%s is valid: hero %s, chapter %d, %d characters, %d locations, %d events\n",
		path, hero.Name, w.Chapter, len(w.Characters), len(w.Locations), len(w.Timeline))
	if len(warnings) == 0 {
		fmt.Fprintln(out, "No issues found.")
		return nil
	}
	printWarnings(out, warnings)
	return nil
}
