package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/babyresell/babyresell/cmd/tui/internal/view"
	"github.com/babyresell/babyresell/internal/activity"
	"github.com/babyresell/babyresell/internal/app"
	"github.com/babyresell/babyresell/internal/config"
	"github.com/babyresell/babyresell/internal/database"
	"github.com/babyresell/babyresell/internal/logging"
)

// The console refreshes in the background only after this much keyboard
// silence.
const idleAfter = 3 * time.Second

type model struct {
	svc     *app.App
	tracker *activity.Tracker

	currentView View

	txView       view.TransactionsModel
	themesView   view.ThemesModel
	settingsView view.SettingsModel
}

type View int

const (
	ViewMenu         View = 0
	ViewTransactions View = 1
	ViewThemes       View = 2
	ViewSettings     View = 3
)

func initialModel() model {
	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// stderr belongs to the terminal UI; logs only go somewhere when a file is configured.
	if cfg.Log.File != "" {
		logging.Setup(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	}

	db, err := database.New(context.Background(), cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	svc, err := app.New(cfg, db)
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	tracker := activity.NewTracker(idleAfter)

	return model{
		svc:          svc,
		tracker:      tracker,
		currentView:  ViewMenu,
		txView:       view.NewTransactionsModel(svc.Transactions),
		themesView:   view.NewThemesModel(svc.Themes, tracker),
		settingsView: view.NewSettingsModel(svc.Settings),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewTransactions
				m.txView = view.NewTransactionsModel(m.svc.Transactions)

				return m, m.txView.Init()
			case "2":
				m.currentView = ViewThemes
				m.themesView = view.NewThemesModel(m.svc.Themes, m.tracker)

				return m, m.themesView.Init()
			case "3":
				m.currentView = ViewSettings
				m.settingsView = view.NewSettingsModel(m.svc.Settings)

				return m, m.settingsView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewTransactions:
		var newModel tea.Model
		newModel, cmd = m.txView.Update(msg)
		m.txView = newModel.(view.TransactionsModel)
	case ViewThemes:
		var newModel tea.Model
		newModel, cmd = m.themesView.Update(msg)
		m.themesView = newModel.(view.ThemesModel)
	case ViewSettings:
		var newModel tea.Model
		newModel, cmd = m.settingsView.Update(msg)
		m.settingsView = newModel.(view.SettingsModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"BabyResell Admin\n\n" +
				"1. Transactions & Disputes\n" +
				"2. Seasonal Themes\n" +
				"3. Payment Settings\n\n" +
				"q. Quit",
		)
	case ViewTransactions:
		return m.txView.View() + "\n" + helpLine(m.txView)
	case ViewThemes:
		return m.themesView.View() + "\n" + helpLine(m.themesView)
	case ViewSettings:
		return m.settingsView.View() + "\n" + helpLine(m.settingsView)
	}

	return "Unknown View"
}

func helpLine(v view.View) string {
	return lipgloss.NewStyle().Faint(true).PaddingLeft(1).Render(v.Title() + " | " + v.ShortHelp())
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
