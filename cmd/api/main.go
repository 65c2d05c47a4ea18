package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/babyresell/babyresell/internal/app"
	"github.com/babyresell/babyresell/internal/auth"
	"github.com/babyresell/babyresell/internal/config"
	"github.com/babyresell/babyresell/internal/database"
	apiHttp "github.com/babyresell/babyresell/internal/http"
	categoryHandler "github.com/babyresell/babyresell/internal/http/category"
	healthHandler "github.com/babyresell/babyresell/internal/http/health"
	itemHandler "github.com/babyresell/babyresell/internal/http/item"
	settingsHandler "github.com/babyresell/babyresell/internal/http/settings"
	themeHandler "github.com/babyresell/babyresell/internal/http/theme"
	txHandler "github.com/babyresell/babyresell/internal/http/transaction"
	userHandler "github.com/babyresell/babyresell/internal/http/user"
	"github.com/babyresell/babyresell/internal/logging"
	"github.com/babyresell/babyresell/internal/scheduler"
)

const escrowJob = "escrow-auto-release"

func main() {
	if err := run(); err != nil {
		slog.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	svc, err := app.New(cfg, db)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(logger)
	if err != nil {
		return err
	}

	if err := sched.Register(scheduler.Job{
		Name:     escrowJob,
		Schedule: cfg.Escrow.Schedule,
		Run:      svc.Transactions.Sweep,
	}); err != nil {
		return err
	}

	sched.Start()

	defer func() {
		if err := sched.Stop(); err != nil {
			slog.Error("failed to stop scheduler", "error", err)
		}
	}()

	router := apiHttp.New(
		apiHttp.Options{Timeout: cfg.Server.Timeout, CORSOrigins: cfg.Server.CORSOrigins},
		auth.New(cfg.Auth.JWTSecret),
		apiHttp.Handlers{
			Health:     healthHandler.NewHandler(db),
			Settings:   settingsHandler.NewHandler(svc.Settings),
			Themes:     themeHandler.NewHandler(svc.Themes),
			Items:      itemHandler.NewHandler(svc.Items, svc.Categories, svc.Settings, svc.Importer),
			Categories: categoryHandler.NewHandler(svc.Categories),
			Payments:   txHandler.NewHandler(svc.Transactions, svc.Statements),
			Users:      userHandler.NewHandler(svc.Users),
		},
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "app", cfg.App.Name, "port", cfg.App.Port, "payment_provider", cfg.Payment.Provider)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
