package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/babyresell/babyresell/internal/transaction"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Expected column order matches selectTransactionColumns.
func scanTransaction(s scanner) (*transaction.Transaction, error) {
	var (
		tx     transaction.Transaction
		status string
	)

	if err := s.Scan(
		&tx.ID, &tx.BuyerID, &tx.SellerID, &tx.ItemID,
		&tx.Amount, &tx.PlatformFee, &tx.SellerEarnings, &tx.Currency,
		&status, &tx.Provider, &tx.PaymentIntentID, &tx.PayoutID, &tx.RefundID,
		&tx.Carrier, &tx.TrackingNumber,
		&tx.DisputeReason, &tx.DisputeDetails, &tx.DisputedBy, &tx.Resolution, &tx.AutoReleased,
		&tx.ShippedAt, &tx.DeliveredAt, &tx.DisputedAt, &tx.CompletedAt, &tx.RefundedAt,
		&tx.CreatedAt, &tx.UpdatedAt,
	); err != nil {
		return nil, err
	}

	tx.Status = transaction.Status(status)

	return &tx, nil
}

const selectTransactionColumns = `
	id, buyer_id, seller_id, item_id,
	amount, platform_fee, seller_earnings, currency,
	status, provider, payment_intent_id, payout_id, refund_id,
	carrier, tracking_number,
	dispute_reason, dispute_details, disputed_by, resolution, auto_released,
	shipped_at, delivered_at, disputed_at, completed_at, refunded_at,
	created_at, updated_at
`

func (s *Store) CreateTransaction(ctx context.Context, tx *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (
			buyer_id, seller_id, item_id, amount, platform_fee, seller_earnings,
			currency, status, provider, payment_intent_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		tx.BuyerID,
		tx.SellerID,
		tx.ItemID,
		tx.Amount,
		tx.PlatformFee,
		tx.SellerEarnings,
		tx.Currency,
		tx.Status,
		tx.Provider,
		tx.PaymentIntentID,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return transaction.ErrDuplicateIntent
		}

		return fmt.Errorf("creating transaction: %w", err)
	}

	return nil
}

func (s *Store) getOne(ctx context.Context, where string, arg any) (*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + ` FROM transactions WHERE ` + where

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return s.getOne(ctx, "id = $1", id)
}

func (s *Store) GetTransactionByIntent(ctx context.Context, intentID string) (*transaction.Transaction, error) {
	return s.getOne(ctx, "payment_intent_id = $1", intentID)
}

func (s *Store) ListTransactions(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM transactions
		WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.BuyerID != nil {
		query += fmt.Sprintf(" AND buyer_id = $%d", argIdx)

		args = append(args, *filter.BuyerID)
		argIdx++
	}

	if filter.SellerID != nil {
		query += fmt.Sprintf(" AND seller_id = $%d", argIdx)

		args = append(args, *filter.SellerID)
		argIdx++
	}

	if filter.PartyID != nil {
		query += fmt.Sprintf(" AND (buyer_id = $%d OR seller_id = $%d)", argIdx, argIdx)

		args = append(args, *filter.PartyID)
		argIdx++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.CompletedFrom != nil {
		query += fmt.Sprintf(" AND completed_at >= $%d", argIdx)

		args = append(args, *filter.CompletedFrom)
		argIdx++
	}

	if filter.CompletedTo != nil {
		query += fmt.Sprintf(" AND completed_at < $%d", argIdx)

		args = append(args, *filter.CompletedTo)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
	}

	return s.list(ctx, query, args...)
}

func (s *Store) ListReleasable(ctx context.Context, cutoff time.Time) ([]*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM transactions
		WHERE status = $1 AND delivered_at < $2
		ORDER BY delivered_at ASC`

	return s.list(ctx, query, transaction.StatusDelivered, cutoff)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*transaction.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	return txs, nil
}

// UpdateStatus writes every mutable escrow field, guarded by the status the
// caller read. A concurrent writer that got there first leaves zero rows to
// update.
func (s *Store) UpdateStatus(ctx context.Context, tx *transaction.Transaction, from transaction.Status) error {
	query := `
		UPDATE transactions
		SET status = $3,
			payout_id = $4, refund_id = $5,
			carrier = $6, tracking_number = $7,
			dispute_reason = $8, dispute_details = $9, disputed_by = $10,
			resolution = $11, auto_released = $12,
			shipped_at = $13, delivered_at = $14, disputed_at = $15,
			completed_at = $16, refunded_at = $17,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		tx.ID, from, tx.Status,
		tx.PayoutID, tx.RefundID,
		tx.Carrier, tx.TrackingNumber,
		tx.DisputeReason, tx.DisputeDetails, tx.DisputedBy,
		tx.Resolution, tx.AutoReleased,
		tx.ShippedAt, tx.DeliveredAt, tx.DisputedAt,
		tx.CompletedAt, tx.RefundedAt,
	).Scan(&tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: transaction %s is no longer %s", transaction.ErrInvalidTransition, tx.ID, from)
		}

		return fmt.Errorf("updating transaction status: %w", err)
	}

	return nil
}
