package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("user not found")

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the marketplace account as this service sees it. Credentials live
// with the identity provider that issues bearer tokens.
type User struct {
	ID              uuid.UUID
	Email           string
	Name            string
	Role            Role
	StripeAccountID string
	PayPalEmail     string
	CreatedAt       time.Time
}

//go:generate mockgen -source=user.go -destination=repository_mock.go -package=user
type Repository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	UpdatePayout(ctx context.Context, id uuid.UUID, stripeAccountID, paypalEmail string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	Email           string
	Name            string
	Role            Role
	StripeAccountID string
	PayPalEmail     string
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*User, error) {
	role := params.Role
	if role == "" {
		role = RoleUser
	}

	u := &User{
		Email:           params.Email,
		Name:            params.Name,
		Role:            role,
		StripeAccountID: params.StripeAccountID,
		PayPalEmail:     params.PayPalEmail,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// SetPayoutAccounts records where a seller's escrow releases are paid.
func (s *Service) SetPayoutAccounts(ctx context.Context, id uuid.UUID, stripeAccountID, paypalEmail string) error {
	return s.repo.UpdatePayout(ctx, id, stripeAccountID, paypalEmail)
}
