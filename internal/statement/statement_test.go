package statement_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babyresell/babyresell/internal/item"
	"github.com/babyresell/babyresell/internal/statement"
	"github.com/babyresell/babyresell/internal/transaction"
)

type fakeTransactions struct {
	listFunc func(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error)
}

func (f *fakeTransactions) List(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	return f.listFunc(ctx, filter)
}

type fakeItems map[uuid.UUID]*item.Item

func (f fakeItems) Get(_ context.Context, id uuid.UUID) (*item.Item, error) {
	it, ok := f[id]
	if !ok {
		return nil, item.ErrNotFound
	}

	return it, nil
}

func completed(itemID uuid.UUID, amount, fee int64, at time.Time, auto bool) *transaction.Transaction {
	return &transaction.Transaction{
		ID:             uuid.New(),
		ItemID:         itemID,
		Amount:         amount,
		PlatformFee:    fee,
		SellerEarnings: amount - fee,
		Currency:       "usd",
		Status:         transaction.StatusCompleted,
		AutoReleased:   auto,
		CompletedAt:    &at,
	}
}

func TestService_Build(t *testing.T) {
	seller := uuid.New()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	stroller := &item.Item{ID: uuid.New(), Title: "Stroller"}
	crib := &item.Item{ID: uuid.New(), Title: "Crib"}
	gone := uuid.New()

	txs := &fakeTransactions{
		listFunc: func(_ context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
			require.NotNil(t, filter.SellerID)
			assert.Equal(t, seller, *filter.SellerID)
			require.NotNil(t, filter.Status)
			assert.Equal(t, transaction.StatusCompleted, *filter.Status)
			assert.Equal(t, from, *filter.CompletedFrom)
			assert.Equal(t, to, *filter.CompletedTo)

			return []*transaction.Transaction{
				completed(crib.ID, 5000, 400, from.Add(48*time.Hour), true),
				completed(stroller.ID, 10000, 800, from.Add(24*time.Hour), false),
				completed(gone, 1000, 80, from.Add(72*time.Hour), false),
			}, nil
		},
	}

	svc := statement.NewService(txs, fakeItems{stroller.ID: stroller, crib.ID: crib})

	st, err := svc.Build(context.Background(), seller, from, to)
	require.NoError(t, err)

	require.Len(t, st.Lines, 3)
	assert.Equal(t, "Stroller", st.Lines[0].ItemTitle)
	assert.Equal(t, "Crib", st.Lines[1].ItemTitle)
	assert.Equal(t, "(deleted listing)", st.Lines[2].ItemTitle)

	assert.Equal(t, statement.Totals{Sales: 3, Amount: 16000, Fees: 1280, Earnings: 14720}, st.Totals)
}

func TestService_Build_ListError(t *testing.T) {
	txs := &fakeTransactions{
		listFunc: func(context.Context, transaction.ListFilter) ([]*transaction.Transaction, error) {
			return nil, errors.New("db down")
		},
	}

	_, err := statement.NewService(txs, fakeItems{}).Build(context.Background(), uuid.New(), time.Now(), time.Now())
	assert.Error(t, err)
}

func sample() *statement.Statement {
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	return &statement.Statement{
		Lines: []statement.Line{
			{
				TransactionID:  uuid.MustParse("0b5b3c8e-8a59-4e0e-9a1c-5d0f4f7c2a10"),
				ItemTitle:      "Stroller, barely used",
				CompletedAt:    at,
				Amount:         10000,
				PlatformFee:    800,
				SellerEarnings: 9200,
				Currency:       "usd",
			},
		},
		Totals: statement.Totals{Sales: 1, Amount: 10000, Fees: 800, Earnings: 9200},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, statement.WriteCSV(&buf, sample()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "date", records[0][0])
	assert.Equal(t, []string{
		"2026-03-02", "0b5b3c8e-8a59-4e0e-9a1c-5d0f4f7c2a10", "Stroller, barely used",
		"100.00", "8.00", "92.00", "USD", "false",
	}, records[1])
}

func TestSummary(t *testing.T) {
	got := statement.Summary(sample())

	assert.Contains(t, got, "* 2026-03-02 | Stroller, barely used | 100.00 USD | fee 8.00 | you earned 92.00 | confirmed")
	assert.Contains(t, got, "1 sales, 100.00 gross, 8.00 fees, 92.00 earned")
}

func TestEvidence_Collect(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/front.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("png-bytes"))
		case "/side":
			w.Header().Set("Content-Disposition", `attachment; filename="side view.jpg"`)
			w.Write([]byte("jpg-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	dir := t.TempDir()
	it := &item.Item{ID: uuid.New(), ImageURLs: []string{ts.URL + "/front.png", ts.URL + "/side"}}

	paths, err := statement.NewEvidence().Collect(context.Background(), it, dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	assert.Equal(t, ".png", filepath.Ext(paths[0]))
	assert.True(t, strings.HasPrefix(filepath.Base(paths[0]), it.ID.String()+"_01"))
	assert.Equal(t, it.ID.String()+"_02_side_view.jpg", filepath.Base(paths[1]))

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "jpg-bytes", string(data))
}

func TestEvidence_Collect_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	it := &item.Item{ID: uuid.New(), ImageURLs: []string{ts.URL + "/missing.jpg"}}

	_, err := statement.NewEvidence().Collect(context.Background(), it, t.TempDir())
	assert.ErrorContains(t, err, "unexpected status code 404")
}
