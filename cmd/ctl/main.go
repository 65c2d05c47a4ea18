// Command ctl is the operator CLI: schema migration, one-off escrow sweeps,
// token issuing and data seeding.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/babyresell/babyresell/internal/app"
	"github.com/babyresell/babyresell/internal/config"
	"github.com/babyresell/babyresell/internal/database"
	"github.com/babyresell/babyresell/internal/logging"
)

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "ctl",
		Short:         "BabyResell operator tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env", config.DefaultEnvFile, "dotenv file to load before the environment")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(themesCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(statementCmd())
	rootCmd.AddCommand(evidenceCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type env struct {
	cfg *config.Config
	db  *sql.DB
	app *app.App
}

func (e *env) Close() error {
	return e.db.Close()
}

// open loads configuration, connects and builds the services. Commands that
// never move money skip the provider checks in config.Validate.
func open(ctx context.Context) (*env, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	logging.Setup(logging.Options{Level: cfg.Log.Level, Format: "text"})

	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	a, err := app.New(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &env{cfg: cfg, db: db, app: a}, nil
}
