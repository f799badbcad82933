package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/artmap/internal/certs"
	"github.com/Veraticus/artmap/internal/config"
	"github.com/Veraticus/artmap/internal/inventory"
	"github.com/Veraticus/artmap/internal/scheduler"
	"github.com/Veraticus/artmap/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the review API and run scheduled jobs",
		Long: `Start the HTTP API used by review front ends. On startup the models are
trained if none are saved yet, and optionally the computers finished today
are imported. Retraining and importing can also run on cron schedules,
for example "0 3 * * *" or "@daily".`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().String("retrain-schedule", "", "cron expression for retraining (empty disables)")
	cmd.Flags().String("import-schedule", "", "cron expression for importing today's computers (empty disables)")
	cmd.Flags().Bool("import-on-start", false, "import today's computers once on startup")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate")
	cmd.Flags().StringSlice("tls-host", nil, "extra host name or IP the certificate covers (repeatable)")

	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("retrain.schedule", cmd.Flags().Lookup("retrain-schedule"))
	_ = viper.BindPFlag("inventory.schedule", cmd.Flags().Lookup("import-schedule"))
	_ = viper.BindPFlag("inventory.import_on_start", cmd.Flags().Lookup("import-on-start"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("server.tls_hosts", cmd.Flags().Lookup("tls-host"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	svc, err := initServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	// Serving with synthesized proposals beats not serving at all.
	if err := svc.ensureModels(ctx); err != nil {
		slog.Error("Initial training failed", "error", err)
	}

	importToday := func(ctx context.Context) error {
		pg, err := inventory.ConnectPostgres(ctx, viper.GetString("inventory.computers_dsn"))
		if err != nil {
			return err
		}
		defer pg.Close()

		from, to := inventory.DayRange(time.Now())
		result, err := importFinished(ctx, pg, svc.store, from, to, nil)
		if err != nil {
			return err
		}
		return result.FailureError()
	}

	if viper.GetBool("inventory.import_on_start") {
		if err := importToday(ctx); err != nil {
			slog.Error("Startup import failed", "error", err)
		}
	}

	jobs := []struct {
		name string
		expr string
		task scheduler.Task
	}{
		{
			name: "retrain",
			expr: viper.GetString("retrain.schedule"),
			task: func(ctx context.Context) error {
				_, err := svc.runner.Run(ctx)
				return err
			},
		},
		{
			name: "import",
			expr: viper.GetString("inventory.schedule"),
			task: importToday,
		},
	}

	for _, job := range jobs {
		sched, err := scheduler.New(ctx, job.expr, job.task, slog.Default().With("job", job.name))
		if errors.Is(err, scheduler.ErrDisabled) {
			continue
		}
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	srv := server.New(svc.workflow(), svc.runner, svc.store, slog.Default())
	addr := viper.GetString("server.addr")

	if !viper.GetBool("server.tls") {
		err = srv.Run(ctx, addr)
	} else {
		manager := certs.NewFileManager(config.ExpandPath(viper.GetString("server.cert_dir")),
			viper.GetStringSlice("server.tls_hosts")...)
		cert, certErr := manager.GetOrCreateCertificate()
		if certErr != nil {
			return fmt.Errorf("failed to prepare certificate: %w", certErr)
		}
		err = srv.RunTLS(ctx, addr, cert)
	}
	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
