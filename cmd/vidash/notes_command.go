package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vidash/internal/api"
	"vidash/internal/dashboard"
)

func newNotesCommand(ctx *commandContext) *cobra.Command {
	notesCmd := &cobra.Command{
		Use:   "notes",
		Short: "Results notes utilities",
	}
	notesCmd.AddCommand(newNotesExportCommand(ctx))
	notesCmd.AddCommand(newNotesShowCommand(ctx))
	return notesCmd
}

func newNotesExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export [PATH]",
		Short: "Save the results notes to a text file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := dashboard.ResultsFile
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				path = args[0]
			}
			var text string
			if err := ctx.withClient(cmd, func(c context.Context, client *api.Client) error {
				snap, err := client.FetchState(c)
				if err != nil {
					return err
				}
				if snap.OperationActive() && strings.TrimSpace(snap.Notes()) == "" {
					return fmt.Errorf("nothing to export while %s is running", snap.Phase)
				}
				text = snap.Notes()
				return nil
			}); err != nil {
				return fmt.Errorf("export notes: %w", err)
			}
			if err := dashboard.WriteResults(path, text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Results saved to %s\n", path)
			return nil
		},
	}
}

func newNotesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the results notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, client *api.Client) error {
				snap, err := client.FetchState(c)
				if err != nil {
					return fmt.Errorf("fetch state: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), snap.Notes())
				return nil
			})
		},
	}
}
