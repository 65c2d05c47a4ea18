// Package app wires stores and services from configuration. The API server,
// the operator CLI and the admin console share it.
package app

import (
	"database/sql"
	"fmt"

	"github.com/babyresell/babyresell/internal/category"
	categoryStore "github.com/babyresell/babyresell/internal/category/store"
	"github.com/babyresell/babyresell/internal/config"
	"github.com/babyresell/babyresell/internal/importer"
	"github.com/babyresell/babyresell/internal/item"
	itemStore "github.com/babyresell/babyresell/internal/item/store"
	"github.com/babyresell/babyresell/internal/payment"
	"github.com/babyresell/babyresell/internal/payment/manual"
	"github.com/babyresell/babyresell/internal/payment/paypal"
	"github.com/babyresell/babyresell/internal/payment/stripe"
	"github.com/babyresell/babyresell/internal/settings"
	settingsStore "github.com/babyresell/babyresell/internal/settings/store"
	"github.com/babyresell/babyresell/internal/statement"
	"github.com/babyresell/babyresell/internal/theme"
	themeStore "github.com/babyresell/babyresell/internal/theme/store"
	"github.com/babyresell/babyresell/internal/transaction"
	txStore "github.com/babyresell/babyresell/internal/transaction/store"
	"github.com/babyresell/babyresell/internal/user"
	userStore "github.com/babyresell/babyresell/internal/user/store"
)

type App struct {
	Payments     *payment.Registry
	Users        *user.Service
	Items        *item.Service
	Categories   *category.Service
	Settings     *settings.Service
	Themes       *theme.Service
	Transactions *transaction.Service
	Statements   *statement.Service
	Importer     *importer.Parser
}

// Providers registers every provider the configuration has credentials for.
// The manual provider is always present so offline transactions stay
// releasable.
func Providers(cfg *config.Config) (*payment.Registry, error) {
	providers := []payment.Provider{manual.New()}

	if cfg.Stripe.SecretKey != "" {
		providers = append(providers, stripe.New(cfg.Stripe.SecretKey))
	}

	if cfg.PayPal.ClientID != "" && cfg.PayPal.ClientSecret != "" {
		providers = append(providers, paypal.New(cfg.PayPal.BaseURL, cfg.PayPal.ClientID, cfg.PayPal.ClientSecret))
	}

	registry, err := payment.NewRegistry(cfg.Payment.Provider, providers...)
	if err != nil {
		return nil, fmt.Errorf("configuring payment providers: %w", err)
	}

	return registry, nil
}

func New(cfg *config.Config, db *sql.DB) (*App, error) {
	registry, err := Providers(cfg)
	if err != nil {
		return nil, err
	}

	var (
		users      = user.NewService(userStore.New(db))
		items      = item.NewService(itemStore.New(db), cfg.Payment.Currency)
		categories = category.NewService(categoryStore.New(db))
		st         = settings.NewService(settingsStore.New(db))
		themes     = theme.NewService(themeStore.New(db))
	)

	transactions := transaction.NewService(txStore.New(db), items, users, st, registry,
		transaction.WithWorkers(cfg.Escrow.Workers))

	return &App{
		Payments:     registry,
		Users:        users,
		Items:        items,
		Categories:   categories,
		Settings:     st,
		Themes:       themes,
		Transactions: transactions,
		Statements:   statement.NewService(transactions, items),
		Importer:     importer.NewParser(),
	}, nil
}
