package transaction_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/babyresell/babyresell/internal/item"
	"github.com/babyresell/babyresell/internal/payment"
	"github.com/babyresell/babyresell/internal/payment/manual"
	"github.com/babyresell/babyresell/internal/settings"
	"github.com/babyresell/babyresell/internal/transaction"
	"github.com/babyresell/babyresell/internal/user"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func policy() *settings.EscrowPolicy {
	return &settings.EscrowPolicy{
		FeePercent: decimal.NewFromInt(8),
		Grace:      72 * time.Hour,
		MinPrice:   100,
	}
}

// memRepo is an in-memory Repository with the same compare-and-set
// semantics as the PostgreSQL store.
type memRepo struct {
	mu  sync.Mutex
	txs map[uuid.UUID]transaction.Transaction
}

func newMemRepo(txs ...*transaction.Transaction) *memRepo {
	r := &memRepo{txs: make(map[uuid.UUID]transaction.Transaction)}
	for _, tx := range txs {
		r.txs[tx.ID] = *tx
	}

	return r
}

func (r *memRepo) CreateTransaction(_ context.Context, tx *transaction.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.txs {
		if existing.PaymentIntentID == tx.PaymentIntentID {
			return transaction.ErrDuplicateIntent
		}
	}

	tx.ID = uuid.New()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	r.txs[tx.ID] = *tx

	return nil
}

func (r *memRepo) GetTransaction(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.txs[id]
	if !ok {
		return nil, transaction.ErrNotFound
	}

	return &tx, nil
}

func (r *memRepo) GetTransactionByIntent(_ context.Context, intentID string) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tx := range r.txs {
		if tx.PaymentIntentID == intentID {
			return &tx, nil
		}
	}

	return nil, transaction.ErrNotFound
}

func (r *memRepo) ListTransactions(_ context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*transaction.Transaction

	for _, tx := range r.txs {
		if filter.Status != nil && tx.Status != *filter.Status {
			continue
		}

		out = append(out, &tx)
	}

	return out, nil
}

func (r *memRepo) ListReleasable(_ context.Context, cutoff time.Time) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*transaction.Transaction

	for _, tx := range r.txs {
		if tx.Status == transaction.StatusDelivered && tx.DeliveredAt != nil && tx.DeliveredAt.Before(cutoff) {
			out = append(out, &tx)
		}
	}

	return out, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, tx *transaction.Transaction, from transaction.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.txs[tx.ID]
	if !ok || stored.Status != from {
		return transaction.ErrInvalidTransition
	}

	tx.UpdatedAt = now
	r.txs[tx.ID] = *tx

	return nil
}

func (r *memRepo) get(id uuid.UUID) transaction.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.txs[id]
}

type fixture struct {
	items    *transaction.MockItems
	users    *transaction.MockUsers
	policies *transaction.MockPolicies
	provider *manual.Provider
}

// newFixture wires a service around the manual provider with permissive
// collaborator mocks.
func newFixture(t *testing.T, repo transaction.Repository) (*transaction.Service, *fixture) {
	t.Helper()

	ctrl := gomock.NewController(t)

	f := &fixture{
		items:    transaction.NewMockItems(ctrl),
		users:    transaction.NewMockUsers(ctrl),
		policies: transaction.NewMockPolicies(ctrl),
		provider: manual.New(),
	}

	f.policies.EXPECT().EscrowPolicy(gomock.Any()).Return(policy(), nil).AnyTimes()
	f.users.EXPECT().Get(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id uuid.UUID) (*user.User, error) {
			return &user.User{ID: id}, nil
		}).AnyTimes()

	reg, err := payment.NewRegistry(manual.Name, f.provider)
	require.NoError(t, err)

	svc := transaction.NewService(repo, f.items, f.users, f.policies, reg,
		transaction.WithClock(func() time.Time { return now }),
		transaction.WithWorkers(2),
	)

	return svc, f
}

func seeded(status transaction.Status, deliveredAgo time.Duration) *transaction.Transaction {
	tx := &transaction.Transaction{
		ID:              uuid.New(),
		BuyerID:         uuid.New(),
		SellerID:        uuid.New(),
		ItemID:          uuid.New(),
		Amount:          10000,
		PlatformFee:     800,
		SellerEarnings:  9200,
		Currency:        "usd",
		Status:          status,
		Provider:        manual.Name,
		PaymentIntentID: "man_pi_" + uuid.NewString(),
	}

	if deliveredAgo > 0 {
		at := now.Add(-deliveredAgo)
		tx.DeliveredAt = &at
	}

	return tx
}

func TestService_CreatePaymentIntent(t *testing.T) {
	buyer := uuid.New()

	tests := []struct {
		name    string
		item    *item.Item
		wantErr error
	}{
		{
			name: "Success",
			item: &item.Item{ID: uuid.New(), SellerID: uuid.New(), Price: 10000, Currency: "usd", Status: item.StatusAvailable},
		},
		{
			name:    "OwnItem",
			item:    &item.Item{ID: uuid.New(), SellerID: buyer, Price: 10000, Currency: "usd", Status: item.StatusAvailable},
			wantErr: transaction.ErrForbidden,
		},
		{
			name:    "Reserved",
			item:    &item.Item{ID: uuid.New(), SellerID: uuid.New(), Price: 10000, Currency: "usd", Status: item.StatusReserved},
			wantErr: transaction.ErrItemUnavailable,
		},
		{
			name:    "BelowMinimumPrice",
			item:    &item.Item{ID: uuid.New(), SellerID: uuid.New(), Price: 99, Currency: "usd", Status: item.StatusAvailable},
			wantErr: transaction.ErrItemUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, f := newFixture(t, newMemRepo())
			f.items.EXPECT().Get(gomock.Any(), tt.item.ID).Return(tt.item, nil)

			got, err := svc.CreatePaymentIntent(context.Background(), buyer, tt.item.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, got.IntentID)
			assert.NotEmpty(t, got.ClientSecret)
			assert.Equal(t, manual.Name, got.Provider)
			assert.Equal(t, int64(10000), got.Amount)
			assert.Equal(t, int64(800), got.PlatformFee)
			assert.Equal(t, int64(9200), got.SellerEarnings)
		})
	}
}

func TestService_CreatePaymentIntent_ProviderError(t *testing.T) {
	ctrl := gomock.NewController(t)

	provider := payment.NewMockProvider(ctrl)
	provider.EXPECT().Name().Return("stripe").AnyTimes()
	provider.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).
		Return(nil, errors.Join(payment.ErrProvider, errors.New("card network down")))

	reg, err := payment.NewRegistry("stripe", provider)
	require.NoError(t, err)

	items := transaction.NewMockItems(ctrl)
	policies := transaction.NewMockPolicies(ctrl)
	policies.EXPECT().EscrowPolicy(gomock.Any()).Return(policy(), nil)

	it := &item.Item{ID: uuid.New(), SellerID: uuid.New(), Price: 5000, Currency: "usd", Status: item.StatusAvailable}
	items.EXPECT().Get(gomock.Any(), it.ID).Return(it, nil)

	svc := transaction.NewService(transaction.NewMockRepository(ctrl), items, transaction.NewMockUsers(ctrl), policies, reg)

	_, err = svc.CreatePaymentIntent(context.Background(), uuid.New(), it.ID)
	assert.ErrorIs(t, err, payment.ErrProvider)
}

func TestService_Create(t *testing.T) {
	buyer := uuid.New()

	t.Run("Success", func(t *testing.T) {
		repo := newMemRepo()
		svc, f := newFixture(t, repo)

		it := &item.Item{ID: uuid.New(), SellerID: uuid.New(), Price: 10000, Currency: "usd", Status: item.StatusAvailable}
		f.items.EXPECT().Get(gomock.Any(), it.ID).Return(it, nil).Times(2)
		f.items.EXPECT().Reserve(gomock.Any(), it.ID).Return(nil)

		checkout, err := svc.CreatePaymentIntent(context.Background(), buyer, it.ID)
		require.NoError(t, err)

		tx, err := svc.Create(context.Background(), transaction.CreateParams{
			BuyerID:         buyer,
			ItemID:          it.ID,
			PaymentIntentID: checkout.IntentID,
		})
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, tx.ID)
		assert.Equal(t, transaction.StatusPending, tx.Status)
		assert.Equal(t, int64(10000), tx.Amount)
		assert.Equal(t, int64(800), tx.PlatformFee)
		assert.Equal(t, int64(9200), tx.SellerEarnings)
		assert.Equal(t, it.SellerID, tx.SellerID)
		assert.Equal(t, manual.Name, tx.Provider)
		assert.Equal(t, transaction.StatusPending, repo.get(tx.ID).Status)
	})

	t.Run("DuplicateIntent", func(t *testing.T) {
		existing := seeded(transaction.StatusPending, 0)
		svc, _ := newFixture(t, newMemRepo(existing))

		_, err := svc.Create(context.Background(), transaction.CreateParams{
			BuyerID:         buyer,
			ItemID:          existing.ItemID,
			PaymentIntentID: existing.PaymentIntentID,
		})
		assert.ErrorIs(t, err, transaction.ErrDuplicateIntent)
	})

	t.Run("UnknownIntent", func(t *testing.T) {
		svc, f := newFixture(t, newMemRepo())

		it := &item.Item{ID: uuid.New(), SellerID: uuid.New(), Price: 10000, Currency: "usd", Status: item.StatusAvailable}
		f.items.EXPECT().Get(gomock.Any(), it.ID).Return(it, nil)

		_, err := svc.Create(context.Background(), transaction.CreateParams{
			BuyerID:         buyer,
			ItemID:          it.ID,
			PaymentIntentID: "man_pi_missing",
		})
		assert.ErrorIs(t, err, payment.ErrProvider)
	})

	t.Run("ReservedConcurrently", func(t *testing.T) {
		repo := newMemRepo()
		svc, f := newFixture(t, repo)

		it := &item.Item{ID: uuid.New(), SellerID: uuid.New(), Price: 10000, Currency: "usd", Status: item.StatusAvailable}
		f.items.EXPECT().Get(gomock.Any(), it.ID).Return(it, nil).Times(2)
		f.items.EXPECT().Reserve(gomock.Any(), it.ID).Return(item.ErrStatusChanged)

		checkout, err := svc.CreatePaymentIntent(context.Background(), buyer, it.ID)
		require.NoError(t, err)

		_, err = svc.Create(context.Background(), transaction.CreateParams{
			BuyerID:         buyer,
			ItemID:          it.ID,
			PaymentIntentID: checkout.IntentID,
		})
		assert.ErrorIs(t, err, transaction.ErrItemUnavailable)
		assert.Empty(t, repo.txs)
	})
}

func TestService_Create_IntentChecks(t *testing.T) {
	it := &item.Item{ID: uuid.New(), SellerID: uuid.New(), Price: 10000, Currency: "usd", Status: item.StatusAvailable}
	buyer := uuid.New()

	meta := func(itemID, buyerID uuid.UUID) map[string]string {
		return map[string]string{"item_id": itemID.String(), "buyer_id": buyerID.String()}
	}

	tests := []struct {
		name    string
		intent  *payment.Intent
		wantErr error
	}{
		{
			name:    "NotFunded",
			intent:  &payment.Intent{ID: "pi_1", Amount: 10000, Currency: "usd", Status: payment.IntentRequiresPayment, Metadata: meta(it.ID, buyer)},
			wantErr: transaction.ErrNotFunded,
		},
		{
			name:    "AmountMismatch",
			intent:  &payment.Intent{ID: "pi_1", Amount: 100, Currency: "usd", Status: payment.IntentSucceeded, Metadata: meta(it.ID, buyer)},
			wantErr: transaction.ErrIntentMismatch,
		},
		{
			name:    "CurrencyMismatch",
			intent:  &payment.Intent{ID: "pi_1", Amount: 10000, Currency: "eur", Status: payment.IntentSucceeded, Metadata: meta(it.ID, buyer)},
			wantErr: transaction.ErrIntentMismatch,
		},
		{
			name:    "PaidForAnotherItem",
			intent:  &payment.Intent{ID: "pi_1", Amount: 10000, Currency: "usd", Status: payment.IntentSucceeded, Metadata: meta(uuid.New(), buyer)},
			wantErr: transaction.ErrIntentMismatch,
		},
		{
			name:    "PaidByAnotherBuyer",
			intent:  &payment.Intent{ID: "pi_1", Amount: 10000, Currency: "usd", Status: payment.IntentSucceeded, Metadata: meta(it.ID, uuid.New())},
			wantErr: transaction.ErrIntentMismatch,
		},
		{
			name:    "NoMetadata",
			intent:  &payment.Intent{ID: "pi_1", Amount: 10000, Currency: "usd", Status: payment.IntentSucceeded},
			wantErr: transaction.ErrIntentMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			provider := payment.NewMockProvider(ctrl)
			provider.EXPECT().Name().Return("stripe").AnyTimes()
			provider.EXPECT().GetIntent(gomock.Any(), "pi_1").Return(tt.intent, nil)

			reg, err := payment.NewRegistry("stripe", provider)
			require.NoError(t, err)

			repo := transaction.NewMockRepository(ctrl)
			repo.EXPECT().GetTransactionByIntent(gomock.Any(), "pi_1").Return(nil, transaction.ErrNotFound)

			items := transaction.NewMockItems(ctrl)
			items.EXPECT().Get(gomock.Any(), it.ID).Return(it, nil)

			policies := transaction.NewMockPolicies(ctrl)
			policies.EXPECT().EscrowPolicy(gomock.Any()).Return(policy(), nil)

			svc := transaction.NewService(repo, items, transaction.NewMockUsers(ctrl), policies, reg)

			_, err = svc.Create(context.Background(), transaction.CreateParams{
				BuyerID:         buyer,
				ItemID:          it.ID,
				PaymentIntentID: "pi_1",
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_Create_RelistsWhenInsertFails(t *testing.T) {
	ctrl := gomock.NewController(t)

	provider := payment.NewMockProvider(ctrl)
	provider.EXPECT().Name().Return("stripe").AnyTimes()
	it := &item.Item{ID: uuid.New(), SellerID: uuid.New(), Price: 10000, Currency: "usd", Status: item.StatusAvailable}
	buyer := uuid.New()

	provider.EXPECT().GetIntent(gomock.Any(), "pi_1").
		Return(&payment.Intent{
			ID:       "pi_1",
			Amount:   10000,
			Currency: "usd",
			Status:   payment.IntentSucceeded,
			Metadata: map[string]string{"item_id": it.ID.String(), "buyer_id": buyer.String()},
		}, nil)

	reg, err := payment.NewRegistry("stripe", provider)
	require.NoError(t, err)

	repo := transaction.NewMockRepository(ctrl)
	repo.EXPECT().GetTransactionByIntent(gomock.Any(), "pi_1").Return(nil, transaction.ErrNotFound)
	repo.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).Return(transaction.ErrDuplicateIntent)

	items := transaction.NewMockItems(ctrl)
	items.EXPECT().Get(gomock.Any(), it.ID).Return(it, nil)
	gomock.InOrder(
		items.EXPECT().Reserve(gomock.Any(), it.ID).Return(nil),
		items.EXPECT().Relist(gomock.Any(), it.ID).Return(nil),
	)

	policies := transaction.NewMockPolicies(ctrl)
	policies.EXPECT().EscrowPolicy(gomock.Any()).Return(policy(), nil)

	svc := transaction.NewService(repo, items, transaction.NewMockUsers(ctrl), policies, reg)

	_, err = svc.Create(context.Background(), transaction.CreateParams{
		BuyerID:         buyer,
		ItemID:          it.ID,
		PaymentIntentID: "pi_1",
	})
	assert.ErrorIs(t, err, transaction.ErrDuplicateIntent)
}

func TestService_HappyPath(t *testing.T) {
	tx := seeded(transaction.StatusPending, 0)
	repo := newMemRepo(tx)
	svc, f := newFixture(t, repo)

	f.items.EXPECT().MarkSold(gomock.Any(), tx.ItemID).Return(nil)

	ctx := context.Background()

	got, err := svc.MarkShipped(ctx, tx.SellerID, tx.ID, transaction.Shipment{Carrier: "UPS", TrackingNumber: "1Z999"})
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusShipped, got.Status)
	assert.Equal(t, "UPS", got.Carrier)
	require.NotNil(t, got.ShippedAt)

	got, err = svc.MarkDelivered(ctx, tx.SellerID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusDelivered, got.Status)
	require.NotNil(t, got.DeliveredAt)

	got, err = svc.ConfirmDelivery(ctx, tx.BuyerID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCompleted, got.Status)
	assert.NotEmpty(t, got.PayoutID)
	assert.False(t, got.AutoReleased)
	require.NotNil(t, got.CompletedAt)

	stored := repo.get(tx.ID)
	assert.Equal(t, transaction.StatusCompleted, stored.Status)
	assert.Equal(t, 1, f.provider.Payouts())
}

func TestService_ConfirmDelivery_FromShipped(t *testing.T) {
	tx := seeded(transaction.StatusShipped, 0)
	repo := newMemRepo(tx)
	svc, f := newFixture(t, repo)

	f.items.EXPECT().MarkSold(gomock.Any(), tx.ItemID).Return(nil)

	got, err := svc.ConfirmDelivery(context.Background(), tx.BuyerID, tx.ID)
	require.NoError(t, err)

	assert.Equal(t, transaction.StatusCompleted, got.Status)
	require.NotNil(t, got.DeliveredAt)
	assert.Equal(t, now, *got.DeliveredAt)
}

func TestService_PendingCannotComplete(t *testing.T) {
	tx := seeded(transaction.StatusPending, 0)
	repo := newMemRepo(tx)
	svc, f := newFixture(t, repo)

	_, err := svc.ConfirmDelivery(context.Background(), tx.BuyerID, tx.ID)
	assert.ErrorIs(t, err, transaction.ErrInvalidTransition)

	assert.Equal(t, transaction.StatusPending, repo.get(tx.ID).Status)
	assert.Zero(t, f.provider.Payouts())
}

func TestService_Roles(t *testing.T) {
	stranger := uuid.New()

	tests := []struct {
		name   string
		status transaction.Status
		call   func(svc *transaction.Service, tx *transaction.Transaction) error
	}{
		{
			name:   "BuyerCannotShip",
			status: transaction.StatusPending,
			call: func(svc *transaction.Service, tx *transaction.Transaction) error {
				_, err := svc.MarkShipped(context.Background(), tx.BuyerID, tx.ID, transaction.Shipment{})
				return err
			},
		},
		{
			name:   "BuyerCannotMarkDelivered",
			status: transaction.StatusShipped,
			call: func(svc *transaction.Service, tx *transaction.Transaction) error {
				_, err := svc.MarkDelivered(context.Background(), tx.BuyerID, tx.ID)
				return err
			},
		},
		{
			name:   "SellerCannotConfirm",
			status: transaction.StatusDelivered,
			call: func(svc *transaction.Service, tx *transaction.Transaction) error {
				_, err := svc.ConfirmDelivery(context.Background(), tx.SellerID, tx.ID)
				return err
			},
		},
		{
			name:   "StrangerCannotDispute",
			status: transaction.StatusDelivered,
			call: func(svc *transaction.Service, tx *transaction.Transaction) error {
				_, err := svc.CreateDispute(context.Background(), stranger, tx.ID, transaction.Dispute{Reason: "spam"})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := seeded(tt.status, 0)
			repo := newMemRepo(tx)
			svc, _ := newFixture(t, repo)

			err := tt.call(svc, tx)
			assert.ErrorIs(t, err, transaction.ErrForbidden)
			assert.Equal(t, tt.status, repo.get(tx.ID).Status)
		})
	}
}

func TestService_Dispute(t *testing.T) {
	tx := seeded(transaction.StatusDelivered, 100*time.Hour)
	repo := newMemRepo(tx)
	svc, f := newFixture(t, repo)

	got, err := svc.CreateDispute(context.Background(), tx.BuyerID, tx.ID, transaction.Dispute{
		Reason:  "not as described",
		Details: "stain on the seat",
	})
	require.NoError(t, err)

	assert.Equal(t, transaction.StatusDisputed, got.Status)
	assert.Equal(t, "not as described", got.DisputeReason)
	require.NotNil(t, got.DisputedBy)
	assert.Equal(t, tx.BuyerID, *got.DisputedBy)

	report, err := svc.AutoRelease(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, report.Candidates)
	assert.Equal(t, transaction.StatusDisputed, repo.get(tx.ID).Status)
	assert.Zero(t, f.provider.Payouts())

	_, err = svc.CreateDispute(context.Background(), tx.SellerID, tx.ID, transaction.Dispute{Reason: "again"})
	assert.ErrorIs(t, err, transaction.ErrInvalidTransition)
}

func TestService_ResolveDispute(t *testing.T) {
	tests := []struct {
		name       string
		outcome    transaction.Outcome
		setupItems func(m *transaction.MockItems, tx *transaction.Transaction)
		wantStatus transaction.Status
		wantErr    error
	}{
		{
			name:    "Release",
			outcome: transaction.OutcomeRelease,
			setupItems: func(m *transaction.MockItems, tx *transaction.Transaction) {
				m.EXPECT().MarkSold(gomock.Any(), tx.ItemID).Return(nil)
			},
			wantStatus: transaction.StatusCompleted,
		},
		{
			name:    "Refund",
			outcome: transaction.OutcomeRefund,
			setupItems: func(m *transaction.MockItems, tx *transaction.Transaction) {
				m.EXPECT().Relist(gomock.Any(), tx.ItemID).Return(nil)
			},
			wantStatus: transaction.StatusRefunded,
		},
		{
			name:       "UnknownOutcome",
			outcome:    transaction.Outcome("split"),
			wantStatus: transaction.StatusDisputed,
			wantErr:    transaction.ErrInvalidOutcome,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := seeded(transaction.StatusDisputed, 0)
			repo := newMemRepo(tx)
			svc, f := newFixture(t, repo)

			if tt.setupItems != nil {
				tt.setupItems(f.items, tx)
			}

			got, err := svc.ResolveDispute(context.Background(), tx.ID, transaction.Resolution{
				Outcome: tt.outcome,
				Note:    "checked photos",
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.wantStatus, repo.get(tx.ID).Status)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, "checked photos", got.Resolution)
			assert.Equal(t, tt.wantStatus, repo.get(tx.ID).Status)
		})
	}
}

func TestService_ResolveDispute_NotDisputed(t *testing.T) {
	tx := seeded(transaction.StatusPending, 0)
	svc, _ := newFixture(t, newMemRepo(tx))

	_, err := svc.ResolveDispute(context.Background(), tx.ID, transaction.Resolution{Outcome: transaction.OutcomeRelease})
	assert.ErrorIs(t, err, transaction.ErrInvalidTransition)
}

func TestService_Refund(t *testing.T) {
	t.Run("Pending", func(t *testing.T) {
		tx := seeded(transaction.StatusPending, 0)
		repo := newMemRepo(tx)
		svc, f := newFixture(t, repo)

		f.items.EXPECT().Relist(gomock.Any(), tx.ItemID).Return(nil)

		got, err := svc.Refund(context.Background(), tx.ID, "seller cancelled")
		require.NoError(t, err)

		assert.Equal(t, transaction.StatusRefunded, got.Status)
		assert.NotEmpty(t, got.RefundID)
		require.NotNil(t, got.RefundedAt)
	})

	t.Run("Shipped", func(t *testing.T) {
		tx := seeded(transaction.StatusShipped, 0)
		svc, _ := newFixture(t, newMemRepo(tx))

		_, err := svc.Refund(context.Background(), tx.ID, "")
		assert.ErrorIs(t, err, transaction.ErrInvalidTransition)
	})
}

func TestService_Release_ProviderError(t *testing.T) {
	ctrl := gomock.NewController(t)

	tx := seeded(transaction.StatusDelivered, 0)
	tx.Provider = "stripe"
	repo := newMemRepo(tx)

	provider := payment.NewMockProvider(ctrl)
	provider.EXPECT().Name().Return("stripe").AnyTimes()
	provider.EXPECT().Release(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params payment.PayoutParams) (*payment.Payout, error) {
			assert.Equal(t, "release-"+tx.ID.String(), params.IdempotencyKey)
			assert.Equal(t, int64(9200), params.Amount)
			assert.Equal(t, "acct_seller", params.Destination)

			return nil, payment.ErrProvider
		})

	reg, err := payment.NewRegistry("stripe", provider)
	require.NoError(t, err)

	users := transaction.NewMockUsers(ctrl)
	users.EXPECT().Get(gomock.Any(), tx.SellerID).Return(&user.User{ID: tx.SellerID, StripeAccountID: "acct_seller"}, nil)

	svc := transaction.NewService(repo, transaction.NewMockItems(ctrl), users, transaction.NewMockPolicies(ctrl), reg)

	_, err = svc.ConfirmDelivery(context.Background(), tx.BuyerID, tx.ID)
	assert.ErrorIs(t, err, payment.ErrProvider)

	// The claim is rolled back so the next attempt can retry.
	stored := repo.get(tx.ID)
	assert.Equal(t, transaction.StatusDelivered, stored.Status)
	assert.Nil(t, stored.CompletedAt)
}

func TestService_AutoRelease(t *testing.T) {
	due := seeded(transaction.StatusDelivered, 100*time.Hour)
	recent := seeded(transaction.StatusDelivered, 10*time.Hour)
	shipped := seeded(transaction.StatusShipped, 0)
	disputed := seeded(transaction.StatusDisputed, 200*time.Hour)
	completed := seeded(transaction.StatusCompleted, 200*time.Hour)

	repo := newMemRepo(due, recent, shipped, disputed, completed)
	svc, f := newFixture(t, repo)

	f.items.EXPECT().MarkSold(gomock.Any(), due.ItemID).Return(nil)

	report, err := svc.AutoRelease(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, []uuid.UUID{due.ID}, report.Released)
	assert.Zero(t, report.Failed)

	released := repo.get(due.ID)
	assert.Equal(t, transaction.StatusCompleted, released.Status)
	assert.True(t, released.AutoReleased)

	for _, untouched := range []*transaction.Transaction{recent, shipped, disputed, completed} {
		assert.Equal(t, *untouched, repo.get(untouched.ID), "transaction %s changed", untouched.Status)
	}
}

func TestService_AutoRelease_CountsFailures(t *testing.T) {
	ctrl := gomock.NewController(t)

	first := seeded(transaction.StatusDelivered, 100*time.Hour)
	second := seeded(transaction.StatusDelivered, 90*time.Hour)
	first.Provider, second.Provider = "stripe", "stripe"
	repo := newMemRepo(first, second)

	provider := payment.NewMockProvider(ctrl)
	provider.EXPECT().Name().Return("stripe").AnyTimes()
	provider.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil, payment.ErrNoDestination).Times(2)

	reg, err := payment.NewRegistry("stripe", provider)
	require.NoError(t, err)

	users := transaction.NewMockUsers(ctrl)
	users.EXPECT().Get(gomock.Any(), gomock.Any()).Return(&user.User{}, nil).Times(2)

	policies := transaction.NewMockPolicies(ctrl)
	policies.EXPECT().EscrowPolicy(gomock.Any()).Return(policy(), nil)

	svc := transaction.NewService(repo, transaction.NewMockItems(ctrl), users, policies, reg)

	report, err := svc.AutoRelease(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Candidates)
	assert.Empty(t, report.Released)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, transaction.StatusDelivered, repo.get(first.ID).Status)
}

func TestService_ConfirmRacesSweep(t *testing.T) {
	for range 20 {
		tx := seeded(transaction.StatusDelivered, 100*time.Hour)
		repo := newMemRepo(tx)
		svc, f := newFixture(t, repo)

		f.items.EXPECT().MarkSold(gomock.Any(), tx.ItemID).Return(nil)

		var (
			wg         sync.WaitGroup
			confirmErr error
			report     *transaction.SweepReport
		)

		wg.Add(2)

		go func() {
			defer wg.Done()
			_, confirmErr = svc.ConfirmDelivery(context.Background(), tx.BuyerID, tx.ID)
		}()

		go func() {
			defer wg.Done()

			var err error
			report, err = svc.AutoRelease(context.Background(), now)
			assert.NoError(t, err)
		}()

		wg.Wait()

		wins := len(report.Released)
		if confirmErr == nil {
			wins++
		} else {
			assert.ErrorIs(t, confirmErr, transaction.ErrInvalidTransition)
		}

		assert.Equal(t, 1, wins)
		assert.Equal(t, 1, f.provider.Payouts())
		assert.Equal(t, transaction.StatusCompleted, repo.get(tx.ID).Status)
	}
}

// disputeAfterListing moves every listed escrow to disputed as soon as the
// sweep has read it, the way a buyer's dispute can land mid-run.
type disputeAfterListing struct {
	*memRepo
}

func (r disputeAfterListing) ListReleasable(ctx context.Context, cutoff time.Time) ([]*transaction.Transaction, error) {
	txs, err := r.memRepo.ListReleasable(ctx, cutoff)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tx := range txs {
		stored := r.txs[tx.ID]
		stored.Status = transaction.StatusDisputed
		r.txs[tx.ID] = stored
	}

	return txs, err
}

func TestService_AutoRelease_DisputedAfterListing(t *testing.T) {
	tx := seeded(transaction.StatusDelivered, 100*time.Hour)
	repo := newMemRepo(tx)
	svc, f := newFixture(t, disputeAfterListing{repo})

	report, err := svc.AutoRelease(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Candidates)
	assert.Empty(t, report.Released)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.Zero(t, f.provider.Payouts())
	assert.Equal(t, transaction.StatusDisputed, repo.get(tx.ID).Status)

	// The buyer can still get the money back; the seller was never paid.
	f.items.EXPECT().Relist(gomock.Any(), tx.ItemID).Return(nil)

	got, err := svc.ResolveDispute(context.Background(), tx.ID, transaction.Resolution{Outcome: transaction.OutcomeRefund})
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusRefunded, got.Status)
	assert.NotEmpty(t, got.RefundID)
	assert.Equal(t, got.RefundID, repo.get(tx.ID).RefundID)
	assert.Zero(t, f.provider.Payouts())
}

func TestService_ConfirmDelivery_OnlyShippedOrDelivered(t *testing.T) {
	for _, status := range []transaction.Status{
		transaction.StatusPending,
		transaction.StatusDisputed,
		transaction.StatusCompleted,
		transaction.StatusRefunded,
	} {
		t.Run(string(status), func(t *testing.T) {
			tx := seeded(status, 100*time.Hour)
			repo := newMemRepo(tx)
			svc, f := newFixture(t, repo)

			_, err := svc.ConfirmDelivery(context.Background(), tx.BuyerID, tx.ID)
			assert.ErrorIs(t, err, transaction.ErrInvalidTransition)

			assert.Equal(t, status, repo.get(tx.ID).Status)
			assert.Zero(t, f.provider.Payouts())
		})
	}
}

func TestService_ConfirmDelivery_SellerDispute(t *testing.T) {
	tx := seeded(transaction.StatusDelivered, time.Hour)
	repo := newMemRepo(tx)
	svc, f := newFixture(t, repo)

	_, err := svc.CreateDispute(context.Background(), tx.SellerID, tx.ID, transaction.Dispute{Reason: "buyer wants a discount"})
	require.NoError(t, err)

	_, err = svc.ConfirmDelivery(context.Background(), tx.BuyerID, tx.ID)
	assert.ErrorIs(t, err, transaction.ErrInvalidTransition)
	assert.Equal(t, transaction.StatusDisputed, repo.get(tx.ID).Status)
	assert.Zero(t, f.provider.Payouts())
}

func TestService_Sweep(t *testing.T) {
	due := seeded(transaction.StatusDelivered, 73*time.Hour)
	repo := newMemRepo(due)
	svc, f := newFixture(t, repo)

	f.items.EXPECT().MarkSold(gomock.Any(), due.ItemID).Return(nil)

	require.NoError(t, svc.Sweep(context.Background()))
	assert.Equal(t, transaction.StatusCompleted, repo.get(due.ID).Status)
}
