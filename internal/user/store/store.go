package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/babyresell/babyresell/internal/user"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (email, name, role, stripe_account_id, paypal_email, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		u.Email, u.Name, u.Role, u.StripeAccountID, u.PayPalEmail,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `
		SELECT id, email, name, role, stripe_account_id, paypal_email, created_at
		FROM users
		WHERE id = $1
	`

	var (
		u    user.User
		role string
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Name, &role, &u.StripeAccountID, &u.PayPalEmail, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}

		return nil, fmt.Errorf("getting user: %w", err)
	}

	u.Role = user.Role(role)

	return &u, nil
}

func (s *Store) UpdatePayout(ctx context.Context, id uuid.UUID, stripeAccountID, paypalEmail string) error {
	query := `
		UPDATE users
		SET stripe_account_id = $1, paypal_email = $2
		WHERE id = $3
	`

	res, err := s.db.ExecContext(ctx, query, stripeAccountID, paypalEmail, id)
	if err != nil {
		return fmt.Errorf("updating payout accounts: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}

	return nil
}
