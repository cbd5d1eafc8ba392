package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/letsssgooo/progress/internal/app"
	"github.com/letsssgooo/progress/internal/auth"
	"github.com/letsssgooo/progress/internal/certificate"
	"github.com/letsssgooo/progress/internal/config"
	"github.com/letsssgooo/progress/internal/exam"
	"github.com/letsssgooo/progress/internal/httpapi"
	"github.com/letsssgooo/progress/internal/lives"
	"github.com/letsssgooo/progress/internal/points"
)

const timeoutShutdown = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("progress server stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	cfg.BindFlags(pflag.CommandLine)
	pflag.Parse()

	if err = cfg.Validate(); err != nil {
		return err
	}

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	log, err := app.SetupLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(log)
	slog.Info("starting progress server...", "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStorage, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	src, err := app.OpenContent(cfg)
	if err != nil {
		return err
	}

	jwtAuth, err := auth.NewJWTAuth(cfg.JWTSecret, st)
	if err != nil {
		return err
	}

	pointsLedger := points.NewLedger(st)
	engine := exam.NewEngine(
		st,
		src,
		lives.NewLedger(cfg.LivesTotal, cfg.LivesWindow),
		pointsLedger,
		exam.WithPassingScore(cfg.PassingScore),
	)

	server := httpapi.NewServer(httpapi.Deps{
		Exams:        engine,
		Certificates: certificate.NewIssuer(st, src, pointsLedger),
		Points:       pointsLedger,
		Auth:         jwtAuth.Middleware(),
		RateLimit:    cfg.RateLimit,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.HTTPAddr)
	}()

	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeoutShutdown)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
