package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func savesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saves",
		Short: "Manage saves in the configured storage",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saves",
		Args:  cobra.NoArgs,
		RunE:  runSavesList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a save",
		Args:  cobra.ExactArgs(1),
		RunE:  runSavesDelete,
	})
	return cmd
}

func runSavesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, err := loadStorageConfig(os.Stderr)
	if err != nil {
		return err
	}
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	saves, err := store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(saves) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saves.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tUPDATED")
	for _, s := range saves {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Name, s.Size, s.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runSavesDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, err := loadStorageConfig(os.Stderr)
	if err != nil {
		return err
	}
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteSession(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete %q: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}
