package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/babyresell/babyresell/internal/auth"
	"github.com/babyresell/babyresell/internal/config"
	"github.com/babyresell/babyresell/internal/database"
	"github.com/babyresell/babyresell/internal/statement"
	"github.com/babyresell/babyresell/internal/theme"
	"github.com/babyresell/babyresell/internal/transaction"
	"github.com/babyresell/babyresell/internal/user"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}

			db, err := database.New(cmd.Context(), cfg.ConnectionString())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")

			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Release escrowed payments whose grace period has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}

				now = t
			}

			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			report, err := e.app.Transactions.AutoRelease(cmd.Context(), now)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "candidates: %d\nreleased:   %d\nskipped:    %d\nfailed:     %d\n",
				report.Candidates, len(report.Released), report.Skipped, report.Failed)

			for _, id := range report.Released {
				fmt.Fprintf(out, "  %s\n", id)
			}

			if report.Failed > 0 {
				return fmt.Errorf("%d releases failed, see log", report.Failed)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "evaluate the grace period as of this RFC 3339 time")

	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}

			if cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}

			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user: %w", err)
			}

			token, err := auth.New(cfg.Auth.JWTSecret).Issue(id, user.Role(role), ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)

			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID to put in the subject claim")
	cmd.Flags().StringVar(&role, "role", string(user.RoleUser), "user or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func themesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "themes",
		Short: "Manage seasonal themes",
	}

	var file string

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create the preset themes that are missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			presets, err := theme.LoadPresets(f)
			if err != nil {
				return err
			}

			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			created, err := e.app.Themes.Seed(cmd.Context(), presets)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d of %d presets\n", created, len(presets))

			return nil
		},
	}

	seed.Flags().StringVar(&file, "file", "config/themes.yaml", "preset file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List themes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			themes, err := e.app.Themes.List(cmd.Context())
			if err != nil {
				return err
			}

			for _, t := range themes {
				marker := " "
				if t.Active {
					marker = "*"
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s\n", marker, t.ID, t.Name)
			}

			return nil
		},
	}

	activate := &cobra.Command{
		Use:   "activate [id]",
		Short: "Make a theme the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}

			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			t, err := e.app.Themes.Activate(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is now active\n", t.Name)

			return nil
		},
	}

	cmd.AddCommand(seed, list, activate)

	return cmd
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect site settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			s, err := e.app.Settings.Get(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(s)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := e.app.Settings.Reset(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "settings reset to defaults")

			return nil
		},
	})

	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage marketplace accounts",
	}

	var params user.CreateParams

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			u, err := e.app.Users.Create(cmd.Context(), params)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), u.ID)

			return nil
		},
	}

	create.Flags().StringVar(&params.Email, "email", "", "email address")
	create.Flags().StringVar(&params.Name, "name", "", "display name")
	create.Flags().StringVar((*string)(&params.Role), "role", string(user.RoleUser), "user or admin")
	create.Flags().StringVar(&params.StripeAccountID, "stripe-account", "", "Stripe connected account for payouts")
	create.Flags().StringVar(&params.PayPalEmail, "paypal-email", "", "PayPal email for payouts")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)

	return cmd
}

func statementCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "statement [seller-id]",
		Short: "Write a seller's completed sales as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sellerID, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}

			start, err := time.Parse(time.DateOnly, from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}

			end, err := time.Parse(time.DateOnly, to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			st, err := e.app.Statements.Build(cmd.Context(), sellerID, start, end.AddDate(0, 0, 1))
			if err != nil {
				return err
			}

			return statement.WriteCSV(cmd.OutOrStdout(), st)
		},
	}

	now := time.Now()
	cmd.Flags().StringVar(&from, "from", now.AddDate(0, -1, 0).Format(time.DateOnly), "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", now.Format(time.DateOnly), "last day, YYYY-MM-DD")

	return cmd
}

func evidenceCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "evidence [transaction-id]",
		Short: "Download the listing photos of a disputed sale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}

			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			tx, err := e.app.Transactions.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			if tx.Status != transaction.StatusDisputed {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: transaction is %s, not disputed\n", tx.Status)
			}

			it, err := e.app.Items.Get(cmd.Context(), tx.ItemID)
			if err != nil {
				return err
			}

			files, err := statement.NewEvidence().Collect(cmd.Context(), it, filepath.Join(dir, tx.ID.String()))
			if err != nil {
				return err
			}

			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "evidence", "output directory")

	return cmd
}
