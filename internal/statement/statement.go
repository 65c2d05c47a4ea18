package statement

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/babyresell/babyresell/internal/item"
	"github.com/babyresell/babyresell/internal/transaction"
)

type Transactions interface {
	List(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error)
}

type Items interface {
	Get(ctx context.Context, id uuid.UUID) (*item.Item, error)
}

// Line is one completed sale.
type Line struct {
	TransactionID  uuid.UUID
	ItemID         uuid.UUID
	ItemTitle      string
	CompletedAt    time.Time
	Amount         int64
	PlatformFee    int64
	SellerEarnings int64
	Currency       string
	AutoReleased   bool
}

type Totals struct {
	Sales    int
	Amount   int64
	Fees     int64
	Earnings int64
}

// Statement lists a seller's completed sales in [From, To).
type Statement struct {
	SellerID uuid.UUID
	From     time.Time
	To       time.Time
	Lines    []Line
	Totals   Totals
}

type Service struct {
	transactions Transactions
	items        Items
}

func NewService(transactions Transactions, items Items) *Service {
	return &Service{transactions: transactions, items: items}
}

func (s *Service) Build(ctx context.Context, sellerID uuid.UUID, from, to time.Time) (*Statement, error) {
	status := transaction.StatusCompleted

	txs, err := s.transactions.List(ctx, transaction.ListFilter{
		SellerID:      &sellerID,
		Status:        &status,
		CompletedFrom: &from,
		CompletedTo:   &to,
	})
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}

	st := &Statement{SellerID: sellerID, From: from, To: to, Lines: make([]Line, 0, len(txs))}

	for _, tx := range txs {
		title := "(deleted listing)"

		it, err := s.items.Get(ctx, tx.ItemID)
		switch {
		case err == nil:
			title = it.Title
		case !errors.Is(err, item.ErrNotFound):
			return nil, fmt.Errorf("loading item %s: %w", tx.ItemID, err)
		}

		line := Line{
			TransactionID:  tx.ID,
			ItemID:         tx.ItemID,
			ItemTitle:      title,
			Amount:         tx.Amount,
			PlatformFee:    tx.PlatformFee,
			SellerEarnings: tx.SellerEarnings,
			Currency:       tx.Currency,
			AutoReleased:   tx.AutoReleased,
		}

		if tx.CompletedAt != nil {
			line.CompletedAt = *tx.CompletedAt
		}

		st.Lines = append(st.Lines, line)
		st.Totals.Sales++
		st.Totals.Amount += tx.Amount
		st.Totals.Fees += tx.PlatformFee
		st.Totals.Earnings += tx.SellerEarnings
	}

	sort.SliceStable(st.Lines, func(i, j int) bool {
		return st.Lines[i].CompletedAt.Before(st.Lines[j].CompletedAt)
	})

	return st, nil
}

func money(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

var csvHeader = []string{"date", "transaction_id", "item", "amount", "platform_fee", "earnings", "currency", "auto_released"}

func WriteCSV(w io.Writer, st *Statement) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, l := range st.Lines {
		record := []string{
			l.CompletedAt.Format(time.DateOnly),
			l.TransactionID.String(),
			l.ItemTitle,
			money(l.Amount),
			money(l.PlatformFee),
			money(l.SellerEarnings),
			strings.ToUpper(l.Currency),
			strconv.FormatBool(l.AutoReleased),
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// Summary renders the statement as plain text for an email body.
func Summary(st *Statement) string {
	var sb strings.Builder

	for _, l := range st.Lines {
		released := "confirmed"
		if l.AutoReleased {
			released = "auto-released"
		}

		fmt.Fprintf(&sb, "* %s | %s | %s %s | fee %s | you earned %s | %s\n",
			l.CompletedAt.Format(time.DateOnly), l.ItemTitle,
			money(l.Amount), strings.ToUpper(l.Currency),
			money(l.PlatformFee), money(l.SellerEarnings), released)
	}

	fmt.Fprintf(&sb, "\n%d sales, %s gross, %s fees, %s earned\n",
		st.Totals.Sales, money(st.Totals.Amount), money(st.Totals.Fees), money(st.Totals.Earnings))

	return sb.String()
}
