package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/artmap/internal/cli"
	"github.com/Veraticus/artmap/internal/retrain"
)

func retrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retrain",
		Short: "Retrain the models and resolve the queue",
		Long: `Train both classifiers on the current corpus, save them, and resolve
every queued component the fallback classifier or the synthesizer can
answer. Components whose description is already in the corpus are
dropped from the queue.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			svc, err := initServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			report, err := svc.runner.Run(ctx)
			if err != nil {
				return fmt.Errorf("retraining failed: %w", err)
			}

			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func printReport(w io.Writer, r retrain.Report) {
	body := fmt.Sprintf("%s Model set %s\n", cli.ChartIcon, r.ModelSetID) +
		fmt.Sprintf("  • Corpus: %d mappings\n", r.CorpusSize) +
		fmt.Sprintf("  • Queue: %d entries\n", r.QueueSize) +
		fmt.Sprintf("  • Resolved: %d\n", r.Resolved()) +
		fmt.Sprintf("      fallback %d, new identifiers %d, already mapped %d\n",
			r.ResolvedFallback, r.ResolvedSynthesized, r.AlreadyMapped) +
		fmt.Sprintf("  • Left for review: %d\n", r.Unresolved) +
		fmt.Sprintf("  • Decided during the run: %d\n", r.Superseded) +
		fmt.Sprintf("  • Training took %s, run took %s",
			r.TrainDuration.Round(time.Millisecond), r.Duration.Round(time.Millisecond))

	fmt.Fprintln(w, cli.RenderBox("Retraining Complete", body))
}
