package view

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/babyresell/babyresell/internal/activity"
	"github.com/babyresell/babyresell/internal/theme"
)

const themePollInterval = 5 * time.Second

// ThemesModel lists seasonal themes and switches the active one. Another
// admin may activate a theme from the web dashboard, so the list is polled,
// but only while the operator is not using the keyboard.
type ThemesModel struct {
	themeService *theme.Service
	tracker      *activity.Tracker

	table  table.Model
	themes []*theme.Theme
	active *theme.Theme

	loading bool
	err     error
	status  string
}

func NewThemesModel(themeSvc *theme.Service, tracker *activity.Tracker) ThemesModel {
	columns := []table.Column{
		{Title: "", Width: 2},
		{Title: "Name", Width: 20},
		{Title: "Primary", Width: 9},
		{Title: "Accent", Width: 9},
		{Title: "Updated", Width: 12},
		{Title: "Description", Width: 36},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return ThemesModel{
		themeService: themeSvc,
		tracker:      tracker,
		table:        t,
		loading:      true,
	}
}

func (m ThemesModel) Title() string { return "Themes" }

func (m ThemesModel) ShortHelp() string {
	return "Esc: back | Enter: activate | x: deactivate | r: refresh"
}

func (m ThemesModel) Init() tea.Cmd {
	return tea.Batch(m.loadThemesCmd(), pollThemes())
}

func (m ThemesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadThemesMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.themes = msg.themes
		m.active = msg.active
		m.refreshTable()

		return m, nil

	case themePollMsg:
		if !m.tracker.Idle(time.Time(msg)) {
			return m, pollThemes()
		}

		return m, tea.Batch(m.loadThemesCmd(), pollThemes())

	case themeChangedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.status = msg.status

		return m, m.loadThemesCmd()

	case tea.KeyMsg:
		m.tracker.Touch(time.Now())

		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			return m, m.loadThemesCmd()
		case "enter":
			if t := m.selected(); t != nil {
				return m, m.activateCmd(t)
			}

			return m, nil
		case "x":
			if t := m.selected(); t != nil {
				return m, m.deactivateCmd(t)
			}

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m ThemesModel) selected() *theme.Theme {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.themes) {
		return nil
	}

	return m.themes[idx]
}

func (m ThemesModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading themes...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	activeName := faint("default")
	if m.active != nil {
		activeName = activeStyle(m.active.Name)
	}

	header := fmt.Sprintf("Active theme: %s", activeName)
	if m.active != nil {
		header += "  " + swatches(m.active.Palette)
	}

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.status != "" {
		content = faint(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func swatches(p theme.Palette) string {
	var out string
	for _, c := range []string{p.Primary, p.Secondary, p.Accent, p.Background, p.Surface, p.Text} {
		out += lipgloss.NewStyle().Background(lipgloss.Color(c)).Render("   ")
	}

	return out
}

func (m *ThemesModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.themes))
	for _, t := range m.themes {
		marker := ""
		if t.Active {
			marker = "*"
		}

		rows = append(rows, table.Row{
			marker,
			t.Name,
			t.Palette.Primary,
			t.Palette.Accent,
			FormatDate(t.UpdatedAt),
			t.Description,
		})
	}

	m.table.SetRows(rows)
}

// Messages

type themePollMsg time.Time

func pollThemes() tea.Cmd {
	return tea.Tick(themePollInterval, func(t time.Time) tea.Msg {
		return themePollMsg(t)
	})
}

type loadThemesMsg struct {
	themes []*theme.Theme
	active *theme.Theme
	err    error
}

func (m ThemesModel) loadThemesCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		themes, err := m.themeService.List(ctx)
		if err != nil {
			return loadThemesMsg{err: err}
		}

		active, err := m.themeService.Active(ctx)
		if err != nil && !errors.Is(err, theme.ErrNoActiveTheme) {
			return loadThemesMsg{err: err}
		}

		return loadThemesMsg{themes: themes, active: active}
	}
}

type themeChangedMsg struct {
	status string
	err    error
}

func (m ThemesModel) activateCmd(t *theme.Theme) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if _, err := m.themeService.Activate(ctx, t.ID); err != nil {
			return themeChangedMsg{err: err}
		}

		return themeChangedMsg{status: fmt.Sprintf("%q is now live.", t.Name)}
	}
}

func (m ThemesModel) deactivateCmd(t *theme.Theme) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if _, err := m.themeService.Deactivate(ctx, t.ID); err != nil {
			return themeChangedMsg{err: err}
		}

		return themeChangedMsg{status: fmt.Sprintf("%q deactivated; the storefront uses the default look.", t.Name)}
	}
}
