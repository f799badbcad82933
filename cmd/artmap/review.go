package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/artmap/internal/cli"
	"github.com/Veraticus/artmap/internal/service"
	"github.com/Veraticus/artmap/internal/tui"
	"github.com/Veraticus/artmap/internal/tui/themes"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Approve, correct or reject proposed article numbers",
		Long: `Walk through the unmapped queue oldest first. Every entry is shown with
the model's proposal; approving or correcting it adds the mapping to the
corpus and clears every queued entry with the same description.

Entries you skip or leave when quitting stay in the queue. Several operators
can review at once: each entry is held by one session at a time.`,
		RunE: runReview,
	}

	cmd.Flags().Bool("plain", false, "use line-based prompts instead of the full-screen interface")
	cmd.Flags().Duration("lease", 0, "how long an entry stays reserved for this session")
	cmd.Flags().String("theme", "", "color theme for the full-screen interface (default, plain)")

	_ = viper.BindPFlag("review.lease", cmd.Flags().Lookup("lease"))
	_ = viper.BindPFlag("review.theme", cmd.Flags().Lookup("theme"))

	return cmd
}

func runReview(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	plain, _ := cmd.Flags().GetBool("plain")

	svc, err := initServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.ensureModels(ctx); err != nil {
		return fmt.Errorf("initial training failed: %w", err)
	}

	wf := svc.workflow()
	out := cmd.OutOrStdout()

	if !plain {
		stats, err := tui.Run(ctx, wf, tui.WithTheme(themes.ByName(viper.GetString("review.theme"))))
		if err != nil {
			return err
		}
		printReviewStats(cmd, stats)
		return nil
	}

	handler := cli.NewInterruptHandler(out)
	ctx = handler.HandleInterrupts(ctx, "artmap review --plain")

	prompter := cli.NewReviewPrompter(wf, cmd.InOrStdin(), out)
	stats, err := prompter.Run(ctx)
	if handler.WasInterrupted() {
		return nil
	}
	if errors.Is(err, cli.ErrInputTerminated) {
		err = nil
	}
	prompter.ShowSummary(stats)
	return err
}

func printReviewStats(cmd *cobra.Command, stats service.ReviewStats) {
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
		"Reviewed %d entries: %d approved, %d entered manually, %d rejected, %d skipped",
		stats.Total(), stats.Approved, stats.Overridden, stats.Rejected, stats.Skipped)))
}
