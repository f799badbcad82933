package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/artmap/internal/cli"
	"github.com/Veraticus/artmap/internal/model"
)

func predictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <description>",
		Short: "Propose an article number for a component",
		Long: `Run a description through the prediction chain and print the proposal.
Nothing is written; approve proposals with 'artmap review'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			svc, err := initServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			prediction, err := svc.predictor.Predict(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatPrediction(prediction))
			return nil
		},
	}
}

func formatPrediction(p model.Prediction) string {
	switch p.Stage {
	case model.StageSynthesized:
		return fmt.Sprintf("%s %s", cli.SuccessStyle.Render(p.ArticleNumber),
			cli.WarningStyle.Render("(new identifier)"))
	default:
		return fmt.Sprintf("%s %s", cli.SuccessStyle.Render(p.ArticleNumber),
			cli.InfoStyle.Render(fmt.Sprintf("(%s, %.0f%%)", strings.ToLower(string(p.Stage)), p.Confidence*100)))
	}
}
