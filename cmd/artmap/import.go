package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/artmap/internal/cli"
	"github.com/Veraticus/artmap/internal/common"
	"github.com/Veraticus/artmap/internal/inventory"
)

const dateLayout = "2006-01-02"

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Queue unmapped components of finished computers",
		Long: `Look up every computer finished in the given period in the inventory API
and queue each component that has no JTL article number yet.

Without --date, --from or --serial the computers finished today are imported.
--serial skips the computers database and imports the given serials directly.`,
		RunE: runImport,
	}

	cmd.Flags().String("date", "", "import computers finished on this day (YYYY-MM-DD)")
	cmd.Flags().String("from", "", "first day of the range (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last day of the range, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringSlice("serial", nil, "customer serial to import (repeatable)")
	cmd.Flags().String("url", "", "inventory API base URL")
	cmd.Flags().String("dsn", "", "computers database connection string")
	cmd.Flags().Int("concurrency", inventory.DefaultConcurrency, "parallel inventory lookups")

	_ = viper.BindPFlag("inventory.url", cmd.Flags().Lookup("url"))
	_ = viper.BindPFlag("inventory.computers_dsn", cmd.Flags().Lookup("dsn"))
	_ = viper.BindPFlag("inventory.concurrency", cmd.Flags().Lookup("concurrency"))

	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	date, _ := cmd.Flags().GetString("date")
	fromFlag, _ := cmd.Flags().GetString("from")
	toFlag, _ := cmd.Flags().GetString("to")
	serials, _ := cmd.Flags().GetStringSlice("serial")

	from, to, err := importRange(time.Now(), date, fromFlag, toFlag)
	if err != nil {
		return err
	}

	var source serialSource = inventory.StaticSource(serials)
	if len(serials) == 0 {
		pg, err := inventory.ConnectPostgres(ctx, viper.GetString("inventory.computers_dsn"))
		if err != nil {
			return err
		}
		defer pg.Close()
		source = pg
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	out := cmd.OutOrStdout()
	result, err := importFinished(ctx, source, store, from, to, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d computers, %d components, %d queued",
		result.Computers, result.Components, result.Enqueued)))
	for _, failure := range result.Failures {
		fmt.Fprintln(out, cli.FormatWarning(failure.Error()))
	}
	return result.FailureError()
}

// importRange resolves the flags to a [from, to) range of whole days.
func importRange(now time.Time, date, from, to string) (time.Time, time.Time, error) {
	parse := func(name, value string) (time.Time, error) {
		t, err := time.ParseInLocation(dateLayout, value, time.Local)
		if err != nil {
			return time.Time{}, common.NewUserError(fmt.Sprintf("--%s must look like YYYY-MM-DD", name), err)
		}
		return t, nil
	}

	switch {
	case date != "" && (from != "" || to != ""):
		return time.Time{}, time.Time{}, common.NewUserError("--date cannot be combined with --from or --to", nil)
	case date != "":
		day, err := parse("date", date)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start, end := inventory.DayRange(day)
		return start, end, nil
	case from != "":
		start, err := parse("from", from)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		last := start
		if to != "" {
			if last, err = parse("to", to); err != nil {
				return time.Time{}, time.Time{}, err
			}
		}
		if last.Before(start) {
			return time.Time{}, time.Time{}, common.NewUserError("--to is before --from", nil)
		}
		_, end := inventory.DayRange(last)
		return start, end, nil
	case to != "":
		return time.Time{}, time.Time{}, common.NewUserError("--to requires --from", nil)
	default:
		start, end := inventory.DayRange(now)
		return start, end, nil
	}
}

type serialSource interface {
	FinishedSerials(ctx context.Context, from, to time.Time) ([]string, error)
}

// importFinished queues the unmapped components of every computer source
// reports for [from, to). Progress is drawn on progress when it is non-nil.
func importFinished(
	ctx context.Context,
	source serialSource,
	queue inventory.Enqueuer,
	from, to time.Time,
	progress io.Writer,
) (inventory.ImportResult, error) {
	serials, err := source.FinishedSerials(ctx, from, to)
	if err != nil {
		return inventory.ImportResult{}, err
	}
	slog.Info("Importing finished computers",
		"from", from.Format(dateLayout),
		"to", to.Format(dateLayout),
		"computers", len(serials))
	if len(serials) == 0 {
		return inventory.ImportResult{}, nil
	}

	client, err := inventory.NewClient(viper.GetString("inventory.url"))
	if err != nil {
		return inventory.ImportResult{}, err
	}

	opts := []inventory.ImporterOption{
		inventory.WithConcurrency(viper.GetInt("inventory.concurrency")),
	}
	if progress != nil {
		bar := progressbar.NewOptions(len(serials),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Importing computers"),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(progress) }),
		)
		opts = append(opts, inventory.WithProgress(func() { _ = bar.Add(1) }))
	}

	return inventory.NewImporter(client, queue, opts...).Import(ctx, serials)
}
