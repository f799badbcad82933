package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/artmap/internal/cli"
	"github.com/Veraticus/artmap/internal/model"
	"github.com/Veraticus/artmap/internal/storage"
)

func mappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage the corpus of component mappings",
		Long: `Inspect and edit the corpus that maps component descriptions to JTL
article numbers. Changes take effect for predictions after the next retrain.`,
	}

	cmd.AddCommand(mappingsListCmd())
	cmd.AddCommand(mappingsSetCmd())
	cmd.AddCommand(mappingsDeleteCmd())
	cmd.AddCommand(mappingsExportCmd())
	cmd.AddCommand(mappingsImportCmd())

	return cmd
}

func mappingsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all mappings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			source, _ := cmd.Flags().GetString("source")

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			mappings, err := store.GetMappings(ctx)
			if err != nil {
				return fmt.Errorf("failed to get mappings: %w", err)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(mappings))
			for _, m := range mappings {
				if source != "" && string(m.Source) != source {
					continue
				}
				rows = append(rows, []string{m.Component, m.ArticleNumber, string(m.Source), m.UpdatedAt.Local().Format(time.DateTime)})
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, cli.InfoStyle.Render("No mappings found. Use 'artmap mappings set' or 'artmap review' to add some."))
				return nil
			}

			fmt.Fprintln(out, cli.RenderTable([]string{"Component", "Article", "Source", "Updated"}, rows))
			fmt.Fprintln(out, cli.SubtleStyle.Render(fmt.Sprintf("%d mappings", len(rows))))
			return nil
		},
	}

	cmd.Flags().String("source", "", "only show mappings with this source (APPROVED, MANUAL, FALLBACK, SYNTHESIZED, IMPORTED)")

	return cmd
}

func mappingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <component> <article-number>",
		Short: "Add or replace a mapping",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			mapping := &model.Mapping{
				Component:     args[0],
				ArticleNumber: args[1],
				Source:        model.SourceManual,
			}
			removed, err := store.CommitDecision(ctx, mapping)
			if err != nil {
				return fmt.Errorf("failed to save mapping: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Mapped %q to %s (%d queue entries cleared)",
				mapping.Component, mapping.ArticleNumber, removed)))
			return nil
		},
	}
}

func mappingsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <component>",
		Short: "Remove a mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			if err := store.DeleteMapping(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete mapping: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted mapping for %q", args[0])))
			return nil
		},
	}
}

func mappingsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the corpus as CSV",
		Long:  `Write the corpus in the legacy mapped_components.csv layout, to file or stdout.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportCSV(cmd, args, func(s *storage.SQLiteStorage, w io.Writer) (int, error) {
				return s.ExportMappingsCSV(cmd.Context(), w)
			})
		},
	}
}

func mappingsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load mappings from CSV",
		Long: `Load a mapped_components.csv file into the corpus. Existing components are
overwritten. Queued entries that are now mapped leave the queue on the next
retrain.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importCSV(cmd, args[0], "mappings", func(s *storage.SQLiteStorage, r io.Reader) (int, error) {
				return s.ImportMappingsCSV(cmd.Context(), r)
			})
		},
	}
}

// exportCSV opens the store and streams fn's output to args[0] or stdout.
func exportCSV(cmd *cobra.Command, args []string, fn func(*storage.SQLiteStorage, io.Writer) (int, error)) error {
	store, err := initStorage(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	if len(args) == 0 {
		_, err := fn(store, cmd.OutOrStdout())
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", args[0], err)
	}
	n, err := fn(store, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Wrote %d rows to %s", n, args[0])))
	return nil
}

func importCSV(cmd *cobra.Command, path, what string, fn func(*storage.SQLiteStorage, io.Reader) (int, error)) error {
	store, err := initStorage(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	n, err := fn(store, f)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", what, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported %d %s from %s", n, what, path)))
	return nil
}
