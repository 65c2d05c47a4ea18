package view

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/babyresell/babyresell/internal/transaction"
)

const sweepTimeout = 2 * time.Minute

type txState int

const (
	txStateBrowse txState = iota
	txStateResolve
)

var statusFilters = []*transaction.Status{
	nil,
	new(transaction.StatusPending),
	new(transaction.StatusShipped),
	new(transaction.StatusDelivered),
	new(transaction.StatusDisputed),
	new(transaction.StatusCompleted),
	new(transaction.StatusRefunded),
}

// TransactionsModel lets an admin browse escrows, settle disputes and run
// the auto-release sweep by hand.
type TransactionsModel struct {
	txService *transaction.Service

	state txState
	table table.Model
	txs   []*transaction.Transaction
	form  *huh.Form

	statusFilterIdx int
	timeframe       Timeframe

	loading bool
	err     error
	status  string

	// Form bindings
	formOutcome string
	formNote    string
}

func NewTransactionsModel(txSvc *transaction.Service) TransactionsModel {
	columns := []table.Column{
		{Title: "Created", Width: 12},
		{Title: "Status", Width: 10},
		{Title: "Amount", Width: 14},
		{Title: "Fee", Width: 12},
		{Title: "Provider", Width: 8},
		{Title: "Delivered", Width: 12},
		{Title: "Dispute", Width: 30},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
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

	return TransactionsModel{
		txService: txSvc,
		table:     t,
		loading:   true,
	}
}

func (m TransactionsModel) Title() string { return "Transactions" }

func (m TransactionsModel) ShortHelp() string {
	if m.state == txStateResolve {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | Enter: resolve dispute | s: status | d: completed | a: auto-release | r: refresh"
}

func (m TransactionsModel) Init() tea.Cmd {
	return m.loadTxsCmd()
}

func (m TransactionsModel) filter() transaction.ListFilter {
	filter := transaction.ListFilter{Status: statusFilters[m.statusFilterIdx], Limit: 500}

	if start, end, ok := m.timeframe.Range(time.Now()); ok {
		filter.CompletedFrom = &start
		filter.CompletedTo = &end
	}

	return filter
}

func (m TransactionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadTxsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.txs = msg.txs
		m.refreshTable()

		return m, nil

	case resolveResultMsg:
		m.state = txStateBrowse
		m.form = nil
		m.table.Focus()

		if msg.err != nil {
			m.status = fmt.Sprintf("Error resolving: %v", msg.err)
			return m, nil
		}

		m.status = fmt.Sprintf("Transaction %s is now %s.", msg.tx.ID, msg.tx.Status)

		return m, m.loadTxsCmd()

	case sweepResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Sweep failed: %v", msg.err)
			return m, nil
		}

		m.status = fmt.Sprintf("Sweep: %d due, %d released, %d skipped, %d failed.",
			msg.report.Candidates, len(msg.report.Released), msg.report.Skipped, msg.report.Failed)

		return m, m.loadTxsCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case txStateBrowse:
		return m.updateBrowse(msg)
	case txStateResolve:
		return m.updateResolve(msg)
	}

	return m, nil
}

func (m TransactionsModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadTxsCmd()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % len(statusFilters)
			return m, m.loadTxsCmd()
		case "d":
			m.timeframe = m.timeframe.Next()
			return m, m.loadTxsCmd()
		case "a":
			m.status = "Running auto-release..."
			return m, m.sweepCmd()
		case "enter":
			return m.enterResolveMode()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m TransactionsModel) selected() *transaction.Transaction {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.txs) {
		return nil
	}

	return m.txs[idx]
}

func (m TransactionsModel) enterResolveMode() (tea.Model, tea.Cmd) {
	tx := m.selected()
	if tx == nil {
		return m, nil
	}

	if tx.Status != transaction.StatusDisputed {
		m.status = fmt.Sprintf("Only disputed transactions can be resolved (this one is %s).", tx.Status)
		return m, nil
	}

	m.formOutcome = string(transaction.OutcomeRelease)
	m.formNote = ""

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("outcome").
				Title("Outcome").
				Options(
					huh.NewOption("Release to seller", string(transaction.OutcomeRelease)),
					huh.NewOption("Refund buyer", string(transaction.OutcomeRefund)),
				).
				Value(&m.formOutcome),

			huh.NewText().
				Key("note").
				Title("Resolution note").
				Value(&m.formNote).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("a note is required")
					}
					return nil
				}),

			huh.NewConfirm().
				Key("confirm").
				Title("Move the money now?").
				Affirmative("Yes").
				Negative("No"),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = txStateResolve
	m.table.Blur()

	return m, m.form.Init()
}

func (m TransactionsModel) updateResolve(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = txStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		if m.form.GetBool("confirm") {
			return m, m.resolveCmd()
		}

		fallthrough
	case huh.StateAborted:
		m.state = txStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	return m, cmd
}

func (m TransactionsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading transactions...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	statusLabel := "All"
	if s := statusFilters[m.statusFilterIdx]; s != nil {
		statusLabel = string(*s)
	}

	header := fmt.Sprintf(
		"Filter: [s] Status: %s | [d] Completed: %s | %d shown",
		activeStyle(statusLabel),
		activeStyle(m.timeframe.String()),
		len(m.txs),
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.state == txStateResolve && m.form != nil {
		if tx := m.selected(); tx != nil {
			panel := lipgloss.NewStyle().
				Padding(1, 2).
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("63")).
				Width(48).
				Render(fmt.Sprintf("Resolve dispute\n\nReason: %s\n%s\n\nSeller gets %s\n\n%s",
					tx.DisputeReason,
					faint(tx.DisputeDetails),
					FormatAmount(tx.SellerEarnings, tx.Currency),
					m.form.View(),
				))

			content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
		}
	}

	if m.status != "" {
		content = faint(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *TransactionsModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.txs))
	for _, tx := range m.txs {
		rows = append(rows, table.Row{
			FormatDate(tx.CreatedAt),
			string(tx.Status),
			FormatAmount(tx.Amount, tx.Currency),
			FormatAmount(tx.PlatformFee, tx.Currency),
			tx.Provider,
			FormatOptionalDate(tx.DeliveredAt),
			tx.DisputeReason,
		})
	}

	m.table.SetRows(rows)
}

// Messages

type loadTxsMsg struct {
	txs []*transaction.Transaction
	err error
}

func (m TransactionsModel) loadTxsCmd() tea.Cmd {
	filter := m.filter()

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		txs, err := m.txService.List(ctx, filter)

		return loadTxsMsg{txs: txs, err: err}
	}
}

type resolveResultMsg struct {
	tx  *transaction.Transaction
	err error
}

func (m TransactionsModel) resolveCmd() tea.Cmd {
	tx := m.selected()
	if tx == nil {
		return nil
	}

	// The form's bindings point at the model copy that built it, so read the
	// answers back from the form itself.
	res := transaction.Resolution{
		Outcome: transaction.Outcome(m.form.GetString("outcome")),
		Note:    strings.TrimSpace(m.form.GetString("note")),
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		updated, err := m.txService.ResolveDispute(ctx, tx.ID, res)

		return resolveResultMsg{tx: updated, err: err}
	}
}

type sweepResultMsg struct {
	report *transaction.SweepReport
	err    error
}

func (m TransactionsModel) sweepCmd() tea.Cmd {
	return func() tea.Msg {
		// Each release calls out to the payment provider.
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		report, err := m.txService.AutoRelease(ctx, time.Now())

		return sweepResultMsg{report: report, err: err}
	}
}
