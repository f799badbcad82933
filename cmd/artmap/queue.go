package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/artmap/internal/cli"
	"github.com/Veraticus/artmap/internal/storage"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the queue of unmapped components",
	}

	cmd.AddCommand(queueListCmd())
	cmd.AddCommand(queueAddCmd())
	cmd.AddCommand(queueExportCmd())
	cmd.AddCommand(queueImportCmd())

	return cmd
}

func queueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued components in review order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			entries, err := store.GetUnmapped(ctx)
			if err != nil {
				return fmt.Errorf("failed to get queue: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, cli.InfoStyle.Render("The queue is empty."))
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				claimed := ""
				if e.ClaimedAt != nil {
					claimed = e.ClaimedAt.Local().Format(time.DateTime)
				}
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					e.Description,
					e.ContextID,
					e.EnqueuedAt.Local().Format(time.DateTime),
					claimed,
				})
			}

			fmt.Fprintln(out, cli.RenderTable([]string{"ID", "Component", "Serial", "Queued", "In review since"}, rows))
			fmt.Fprintln(out, cli.SubtleStyle.Render(fmt.Sprintf("%d queued", len(entries))))
			return nil
		},
	}
}

func queueAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <component>",
		Short: "Queue a component for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			serial, _ := cmd.Flags().GetString("serial")

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			id, err := store.Enqueue(ctx, args[0], serial)
			if err != nil {
				return fmt.Errorf("failed to queue component: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Queued %q as entry %d", args[0], id)))
			return nil
		},
	}

	cmd.Flags().String("serial", "", "customer serial of the computer the component came from")

	return cmd
}

func queueExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the queue as CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportCSV(cmd, args, func(s *storage.SQLiteStorage, w io.Writer) (int, error) {
				return s.ExportQueueCSV(cmd.Context(), w)
			})
		},
	}
}

func queueImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Append queue entries from CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importCSV(cmd, args[0], "queue entries", func(s *storage.SQLiteStorage, r io.Reader) (int, error) {
				return s.ImportQueueCSV(cmd.Context(), r)
			})
		},
	}
}
