package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/babyresell/babyresell/internal/item"
	"github.com/babyresell/babyresell/internal/payment"
	"github.com/babyresell/babyresell/internal/settings"
	"github.com/babyresell/babyresell/internal/user"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=transaction
type Repository interface {
	// CreateTransaction returns ErrDuplicateIntent when the payment intent
	// is already recorded.
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetTransactionByIntent(ctx context.Context, intentID string) (*Transaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error)
	// ListReleasable returns delivered transactions whose delivery happened
	// before cutoff.
	ListReleasable(ctx context.Context, cutoff time.Time) ([]*Transaction, error)
	// UpdateStatus persists tx only if the stored status is still from,
	// returning ErrInvalidTransition otherwise.
	UpdateStatus(ctx context.Context, tx *Transaction, from Status) error
}

type Items interface {
	Get(ctx context.Context, id uuid.UUID) (*item.Item, error)
	Reserve(ctx context.Context, id uuid.UUID) error
	MarkSold(ctx context.Context, id uuid.UUID) error
	Relist(ctx context.Context, id uuid.UUID) error
}

type Users interface {
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type Policies interface {
	EscrowPolicy(ctx context.Context) (*settings.EscrowPolicy, error)
}

type Service struct {
	repo     Repository
	items    Items
	users    Users
	policies Policies
	payments *payment.Registry
	workers  int
	now      func() time.Time
}

type Option func(*Service)

// WithWorkers bounds how many releases the sweep runs at once.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, items Items, users Users, policies Policies, payments *payment.Registry, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		items:    items,
		users:    users,
		policies: policies,
		payments: payments,
		workers:  4,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type ListFilter struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	// PartyID matches either side of the sale.
	PartyID       *uuid.UUID
	Status        *Status
	CompletedFrom *time.Time
	CompletedTo   *time.Time
	Limit         int
}

// Checkout is what a buyer's client needs to collect the payment.
type Checkout struct {
	IntentID       string
	ClientSecret   string
	Provider       string
	Amount         int64
	Currency       string
	PlatformFee    int64
	SellerEarnings int64
}

type CreateParams struct {
	BuyerID         uuid.UUID
	ItemID          uuid.UUID
	PaymentIntentID string
}

type Shipment struct {
	Carrier        string
	TrackingNumber string
}

type Dispute struct {
	Reason  string
	Details string
}

type Resolution struct {
	Outcome Outcome
	Note    string
}

// SweepReport summarises one auto-release run.
type SweepReport struct {
	Candidates int
	Released   []uuid.UUID
	// Skipped counts escrows that left the delivered state before they
	// could be claimed.
	Skipped int
	Failed  int
}

func (s *Service) purchasable(ctx context.Context, buyerID, itemID uuid.UUID) (*item.Item, *settings.EscrowPolicy, error) {
	it, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}

	if it.SellerID == buyerID {
		return nil, nil, fmt.Errorf("%w: buyer is the seller", ErrForbidden)
	}

	if it.Status != item.StatusAvailable {
		return nil, nil, fmt.Errorf("%w: item is %s", ErrItemUnavailable, it.Status)
	}

	policy, err := s.policies.EscrowPolicy(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading escrow policy: %w", err)
	}

	if it.Price <= 0 || it.Price < policy.MinPrice {
		return nil, nil, fmt.Errorf("%w: price %d below minimum %d", ErrItemUnavailable, it.Price, policy.MinPrice)
	}

	return it, policy, nil
}

func (s *Service) CreatePaymentIntent(ctx context.Context, buyerID, itemID uuid.UUID) (*Checkout, error) {
	it, policy, err := s.purchasable(ctx, buyerID, itemID)
	if err != nil {
		return nil, err
	}

	provider := s.payments.Default()

	intent, err := provider.CreateIntent(ctx, payment.IntentParams{
		Amount:   it.Price,
		Currency: it.Currency,
		Metadata: map[string]string{
			"item_id":   it.ID.String(),
			"buyer_id":  buyerID.String(),
			"seller_id": it.SellerID.String(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating payment intent: %w", err)
	}

	fee, earnings := SplitFee(it.Price, policy.FeePercent)

	return &Checkout{
		IntentID:       intent.ID,
		ClientSecret:   intent.ClientSecret,
		Provider:       provider.Name(),
		Amount:         it.Price,
		Currency:       it.Currency,
		PlatformFee:    fee,
		SellerEarnings: earnings,
	}, nil
}

// Create records a funded payment as a pending escrow and reserves the item.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Transaction, error) {
	if _, err := s.repo.GetTransactionByIntent(ctx, params.PaymentIntentID); err == nil {
		return nil, ErrDuplicateIntent
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	it, policy, err := s.purchasable(ctx, params.BuyerID, params.ItemID)
	if err != nil {
		return nil, err
	}

	provider := s.payments.Default()

	intent, err := provider.GetIntent(ctx, params.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("verifying payment intent: %w", err)
	}

	if !intent.Status.Funded() {
		return nil, fmt.Errorf("%w: intent is %s", ErrNotFunded, intent.Status)
	}

	if intent.Amount != it.Price || !strings.EqualFold(intent.Currency, it.Currency) {
		return nil, fmt.Errorf("%w: intent %d %s, item %d %s",
			ErrIntentMismatch, intent.Amount, intent.Currency, it.Price, it.Currency)
	}

	// An intent paid for one item or buyer cannot be replayed against another.
	if intent.Metadata["item_id"] != it.ID.String() || intent.Metadata["buyer_id"] != params.BuyerID.String() {
		return nil, fmt.Errorf("%w: intent was created for item %q buyer %q",
			ErrIntentMismatch, intent.Metadata["item_id"], intent.Metadata["buyer_id"])
	}

	fee, earnings := SplitFee(it.Price, policy.FeePercent)

	tx := &Transaction{
		BuyerID:         params.BuyerID,
		SellerID:        it.SellerID,
		ItemID:          it.ID,
		Amount:          it.Price,
		PlatformFee:     fee,
		SellerEarnings:  earnings,
		Currency:        it.Currency,
		Status:          StatusPending,
		Provider:        provider.Name(),
		PaymentIntentID: intent.ID,
	}

	if err := s.items.Reserve(ctx, it.ID); err != nil {
		if errors.Is(err, item.ErrStatusChanged) {
			return nil, fmt.Errorf("%w: item was reserved by another buyer", ErrItemUnavailable)
		}

		return nil, fmt.Errorf("reserving item: %w", err)
	}

	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		if relistErr := s.items.Relist(ctx, it.ID); relistErr != nil {
			slog.Error("failed to relist item after aborted checkout", "item_id", it.ID, "error", relistErr)
		}

		return nil, err
	}

	return tx, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

// advance applies mutate and persists the move from the status that was read.
func (s *Service) advance(ctx context.Context, tx *Transaction, to Status, mutate func(tx *Transaction, now time.Time)) error {
	from := tx.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}

	mutate(tx, s.now())
	tx.Status = to

	if err := s.repo.UpdateStatus(ctx, tx, from); err != nil {
		tx.Status = from
		return err
	}

	return nil
}

func (s *Service) MarkShipped(ctx context.Context, actor, id uuid.UUID, shipment Shipment) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.SellerID != actor {
		return nil, fmt.Errorf("%w: only the seller can ship", ErrForbidden)
	}

	err = s.advance(ctx, tx, StatusShipped, func(tx *Transaction, now time.Time) {
		tx.Carrier = shipment.Carrier
		tx.TrackingNumber = shipment.TrackingNumber
		tx.ShippedAt = &now
	})
	if err != nil {
		return nil, err
	}

	return tx, nil
}

func markDelivered(tx *Transaction, now time.Time) {
	tx.DeliveredAt = &now
}

// MarkDelivered records the carrier's delivery and starts the grace window
// after which the sweep releases the payment.
func (s *Service) MarkDelivered(ctx context.Context, actor, id uuid.UUID) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.SellerID != actor {
		return nil, fmt.Errorf("%w: only the seller can mark delivery", ErrForbidden)
	}

	if err := s.advance(ctx, tx, StatusDelivered, markDelivered); err != nil {
		return nil, err
	}

	return tx, nil
}

// ConfirmDelivery is the buyer accepting the item, which pays the seller.
func (s *Service) ConfirmDelivery(ctx context.Context, actor, id uuid.UUID) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.BuyerID != actor {
		return nil, fmt.Errorf("%w: only the buyer can confirm delivery", ErrForbidden)
	}

	// A disputed escrow is settled by an admin, never by either party.
	if tx.Status != StatusShipped && tx.Status != StatusDelivered {
		return nil, fmt.Errorf("%w: cannot confirm a %s transaction", ErrInvalidTransition, tx.Status)
	}

	if tx.Status == StatusShipped {
		if err := s.advance(ctx, tx, StatusDelivered, markDelivered); err != nil {
			return nil, err
		}
	}

	if err := s.release(ctx, tx, false); err != nil {
		return nil, err
	}

	return tx, nil
}

func (s *Service) CreateDispute(ctx context.Context, actor, id uuid.UUID, dispute Dispute) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if !tx.IsParty(actor) {
		return nil, fmt.Errorf("%w: only the buyer or seller can dispute", ErrForbidden)
	}

	err = s.advance(ctx, tx, StatusDisputed, func(tx *Transaction, now time.Time) {
		tx.DisputeReason = dispute.Reason
		tx.DisputeDetails = dispute.Details
		tx.DisputedBy = &actor
		tx.DisputedAt = &now
	})
	if err != nil {
		return nil, err
	}

	return tx, nil
}

// ResolveDispute settles a disputed escrow in favour of the seller (release)
// or the buyer (refund). Callers must have checked the admin role.
func (s *Service) ResolveDispute(ctx context.Context, id uuid.UUID, res Resolution) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.Status != StatusDisputed {
		return nil, fmt.Errorf("%w: transaction is %s, not disputed", ErrInvalidTransition, tx.Status)
	}

	tx.Resolution = res.Note

	switch res.Outcome {
	case OutcomeRelease:
		err = s.release(ctx, tx, false)
	case OutcomeRefund:
		err = s.refund(ctx, tx)
	default:
		err = fmt.Errorf("%w: %q", ErrInvalidOutcome, res.Outcome)
	}

	if err != nil {
		return nil, err
	}

	return tx, nil
}

// Refund returns the buyer's money for an order that has not shipped.
func (s *Service) Refund(ctx context.Context, id uuid.UUID, note string) (*Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.Status != StatusPending {
		return nil, fmt.Errorf("%w: only pending transactions can be refunded directly", ErrInvalidTransition)
	}

	tx.Resolution = note

	if err := s.refund(ctx, tx); err != nil {
		return nil, err
	}

	return tx, nil
}

func payoutDestination(provider string, seller *user.User) string {
	switch provider {
	case "stripe":
		return seller.StripeAccountID
	case "paypal":
		return seller.PayPalEmail
	default:
		return seller.ID.String()
	}
}

// unclaim returns a claimed escrow to the state it was read in after the
// provider refused to move the money.
func (s *Service) unclaim(ctx context.Context, tx *Transaction, prev Transaction) {
	claimed := tx.Status
	*tx = prev

	if err := s.repo.UpdateStatus(ctx, tx, claimed); err != nil {
		slog.Error("failed to roll back escrow claim", "transaction_id", tx.ID, "status", claimed, "error", err)
	}
}

// release pays the seller and completes the escrow. The row is moved to
// completed before the provider is called, so a dispute or a competing
// settlement that commits first stops the payout. The payout key is derived
// from the transaction ID, so a retry after a lost response cannot pay twice.
func (s *Service) release(ctx context.Context, tx *Transaction, auto bool) error {
	if !CanTransition(tx.Status, StatusCompleted) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, tx.Status, StatusCompleted)
	}

	provider, err := s.payments.Get(tx.Provider)
	if err != nil {
		return err
	}

	seller, err := s.users.Get(ctx, tx.SellerID)
	if err != nil {
		return fmt.Errorf("loading seller: %w", err)
	}

	prev := *tx

	err = s.advance(ctx, tx, StatusCompleted, func(tx *Transaction, now time.Time) {
		tx.CompletedAt = &now
		tx.AutoReleased = auto
	})
	if err != nil {
		return err
	}

	payout, err := provider.Release(ctx, payment.PayoutParams{
		Amount:         tx.SellerEarnings,
		Currency:       tx.Currency,
		Destination:    payoutDestination(provider.Name(), seller),
		Reference:      tx.ID.String(),
		IdempotencyKey: "release-" + tx.ID.String(),
	})
	if err != nil {
		s.unclaim(ctx, tx, prev)
		return fmt.Errorf("releasing payment: %w", err)
	}

	tx.PayoutID = payout.ID
	if err := s.repo.UpdateStatus(ctx, tx, StatusCompleted); err != nil {
		slog.Error("failed to record payout", "transaction_id", tx.ID, "payout_id", payout.ID, "error", err)
	}

	if err := s.items.MarkSold(ctx, tx.ItemID); err != nil {
		slog.Error("failed to mark item sold", "item_id", tx.ItemID, "transaction_id", tx.ID, "error", err)
	}

	return nil
}

// refund claims the escrow the same way release does before returning the
// buyer's money.
func (s *Service) refund(ctx context.Context, tx *Transaction) error {
	if !CanTransition(tx.Status, StatusRefunded) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, tx.Status, StatusRefunded)
	}

	provider, err := s.payments.Get(tx.Provider)
	if err != nil {
		return err
	}

	prev := *tx

	err = s.advance(ctx, tx, StatusRefunded, func(tx *Transaction, now time.Time) {
		tx.RefundedAt = &now
	})
	if err != nil {
		return err
	}

	refund, err := provider.Refund(ctx, payment.RefundParams{
		IntentID:       tx.PaymentIntentID,
		Amount:         tx.Amount,
		IdempotencyKey: "refund-" + tx.ID.String(),
	})
	if err != nil {
		s.unclaim(ctx, tx, prev)
		return fmt.Errorf("refunding payment: %w", err)
	}

	tx.RefundID = refund.ID
	if err := s.repo.UpdateStatus(ctx, tx, StatusRefunded); err != nil {
		slog.Error("failed to record refund", "transaction_id", tx.ID, "refund_id", refund.ID, "error", err)
	}

	if err := s.items.Relist(ctx, tx.ItemID); err != nil {
		slog.Error("failed to relist refunded item", "item_id", tx.ItemID, "transaction_id", tx.ID, "error", err)
	}

	return nil
}

// AutoRelease pays sellers whose deliveries have gone unchallenged for the
// configured grace period. Failures are counted and left for the next run.
func (s *Service) AutoRelease(ctx context.Context, now time.Time) (*SweepReport, error) {
	policy, err := s.policies.EscrowPolicy(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading escrow policy: %w", err)
	}

	cutoff := now.Add(-policy.Grace)

	candidates, err := s.repo.ListReleasable(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing releasable transactions: %w", err)
	}

	report := &SweepReport{}
	if len(candidates) == 0 {
		return report, nil
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, fmt.Errorf("creating sweep pool: %w", err)
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	record := func(id uuid.UUID, err error) {
		mu.Lock()
		defer mu.Unlock()

		// Disputed or confirmed after it was listed; nothing was paid.
		if errors.Is(err, ErrInvalidTransition) {
			report.Skipped++
			slog.Info("skipped auto-release", "transaction_id", id, "reason", err)

			return
		}

		if err != nil {
			report.Failed++
			slog.Error("failed to auto-release payment", "transaction_id", id, "error", err)

			return
		}

		report.Released = append(report.Released, id)
	}

	for _, tx := range candidates {
		if !tx.Releasable(cutoff) {
			continue
		}

		report.Candidates++

		wg.Add(1)

		if err := pool.Submit(func() {
			defer wg.Done()
			record(tx.ID, s.release(ctx, tx, true))
		}); err != nil {
			wg.Done()
			record(tx.ID, fmt.Errorf("submitting release: %w", err))
		}
	}

	wg.Wait()

	return report, nil
}

// Sweep is AutoRelease as a scheduled job.
func (s *Service) Sweep(ctx context.Context) error {
	report, err := s.AutoRelease(ctx, s.now())
	if err != nil {
		return err
	}

	slog.Info("escrow sweep finished",
		"candidates", report.Candidates,
		"released", len(report.Released),
		"skipped", report.Skipped,
		"failed", report.Failed,
	)

	return nil
}
