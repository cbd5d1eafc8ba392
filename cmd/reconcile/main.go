package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/letsssgooo/progress/internal/app"
	"github.com/letsssgooo/progress/internal/config"
	"github.com/letsssgooo/progress/internal/points"
)

func main() {
	if err := run(); err != nil {
		slog.Error("reconcile failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	cfg.BindFlags(pflag.CommandLine)
	flagDryRun := pflag.Bool("dry-run", false, "report drift without fixing it")
	flagOutput := pflag.String("output", "", "write csv report to file")
	pflag.Parse()

	if err = cfg.ValidateReconcile(); err != nil {
		return err
	}

	log, err := app.SetupLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := points.NewLedger(st).ReconcileAll(ctx, points.ReconcileOptions{
		BatchSize: cfg.ReconcileBatch,
		DryRun:    *flagDryRun,
	})
	if err != nil {
		return err
	}

	slog.Info("reconcile finished",
		"checked", report.Checked,
		"corrections", len(report.Corrections),
		"failures", len(report.Failures),
		"dry_run", report.DryRun,
	)

	data, err := report.ExportCSV()
	if err != nil {
		return err
	}

	if *flagOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}

	return os.WriteFile(*flagOutput, data, 0o644)
}
