package view

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/babyresell/babyresell/internal/settings"
)

// SettingsModel edits the payments section: the marketplace fee, how long
// escrow waits after delivery, and the cheapest allowed listing.
type SettingsModel struct {
	settingsService *settings.Service

	form    *huh.Form
	current *settings.Settings

	loading bool
	err     error
	status  string

	// Form bindings
	formFee      string
	formGrace    string
	formMinPrice string
}

func NewSettingsModel(settingsSvc *settings.Service) SettingsModel {
	return SettingsModel{
		settingsService: settingsSvc,
		loading:         true,
	}
}

func (m SettingsModel) Title() string { return "Settings" }

func (m SettingsModel) ShortHelp() string {
	return "Navigate form | Esc: back"
}

func (m SettingsModel) Init() tea.Cmd {
	return m.loadSettingsCmd()
}

func (m SettingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadSettingsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.current = msg.settings
		m.buildForm()

		return m, m.form.Init()

	case saveSettingsMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error saving: %v", msg.err)
		} else {
			m.status = "Payments settings saved."
			m.current = msg.settings
		}

		m.buildForm()

		return m, m.form.Init()

	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m, Back
		}
	}

	if m.form == nil {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		if m.form.GetBool("confirm") {
			return m, m.saveCmd()
		}

		m.status = "Discarded changes."
		m.buildForm()

		return m, m.form.Init()
	case huh.StateAborted:
		return m, Back
	}

	return m, cmd
}

func (m *SettingsModel) buildForm() {
	p := m.current.Payments

	m.formFee = strconv.FormatFloat(p.PlatformFeePercent, 'f', -1, 64)
	m.formGrace = strconv.Itoa(p.EscrowGraceHours)
	m.formMinPrice = decimal.New(p.MinItemPrice, -2).StringFixed(2)

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("fee").
				Title("Platform fee (%)").
				Value(&m.formFee).
				Validate(validatePercent),

			huh.NewInput().
				Key("grace").
				Title("Escrow grace period (hours)").
				Value(&m.formGrace).
				Validate(validateHours),

			huh.NewInput().
				Key("minPrice").
				Title("Minimum listing price").
				Value(&m.formMinPrice).
				Validate(func(s string) error {
					_, err := parsePrice(s)
					return err
				}),

			huh.NewConfirm().
				Key("confirm").
				Title("Save?").
				Affirmative("Yes").
				Negative("No"),
		),
	).WithWidth(50).WithShowHelp(false)
}

func validatePercent(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 || v > 100 {
		return fmt.Errorf("enter a percentage between 0 and 100")
	}

	return nil
}

func validateHours(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return fmt.Errorf("enter a whole number of hours")
	}

	return nil
}

// parsePrice turns "12.50" into minor units.
func parsePrice(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return 0, fmt.Errorf("enter a price like 12.50")
	}

	return d.Shift(2).Round(0).IntPart(), nil
}

func (m SettingsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading settings...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	header := fmt.Sprintf("%s payments | last saved %s",
		activeStyle(m.current.General.SiteName),
		FormatDate(m.current.UpdatedAt),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Render(m.form.View()),
	)

	if m.status != "" {
		content = faint(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

// Messages

type loadSettingsMsg struct {
	settings *settings.Settings
	err      error
}

func (m SettingsModel) loadSettingsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		s, err := m.settingsService.Get(ctx)

		return loadSettingsMsg{settings: s, err: err}
	}
}

type saveSettingsMsg struct {
	settings *settings.Settings
	err      error
}

func (m SettingsModel) saveCmd() tea.Cmd {
	// Inputs were validated by the form; read them back from it rather than
	// from this copy's bindings.
	fee, _ := strconv.ParseFloat(strings.TrimSpace(m.form.GetString("fee")), 64)
	grace, _ := strconv.Atoi(strings.TrimSpace(m.form.GetString("grace")))
	minPrice, _ := parsePrice(m.form.GetString("minPrice"))

	patch := map[string]any{
		"platformFeePercent": fee,
		"escrowGraceHours":   grace,
		"minItemPrice":       minPrice,
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		s, err := m.settingsService.UpdateSection(ctx, settings.SectionPayments, patch)

		return saveSettingsMsg{settings: s, err: err}
	}
}
