package transaction

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("not allowed for this party")
	ErrItemUnavailable   = errors.New("item is not available for purchase")
	ErrDuplicateIntent   = errors.New("payment intent already has a transaction")
	ErrIntentMismatch    = errors.New("payment intent does not match the item")
	ErrNotFunded         = errors.New("payment intent is not funded")
	ErrInvalidOutcome    = errors.New("unknown dispute outcome")
)

// Status represents the escrow state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusDisputed  Status = "disputed"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusShipped, StatusDisputed, StatusRefunded},
	StatusShipped:   {StatusDelivered, StatusDisputed},
	StatusDelivered: {StatusCompleted, StatusDisputed},
	StatusDisputed:  {StatusCompleted, StatusRefunded},
}

// CanTransition reports whether an escrow may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}

	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRefunded
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok || s.Terminal()
}

// Outcome is how an admin settles a dispute.
type Outcome string

const (
	OutcomeRelease Outcome = "release"
	OutcomeRefund  Outcome = "refund"
)

// Transaction is the escrow record of one purchase. Money fields are minor
// units of Currency; PlatformFee and SellerEarnings are fixed at creation.
type Transaction struct {
	ID              uuid.UUID
	BuyerID         uuid.UUID
	SellerID        uuid.UUID
	ItemID          uuid.UUID
	Amount          int64
	PlatformFee     int64
	SellerEarnings  int64
	Currency        string
	Status          Status
	Provider        string
	PaymentIntentID string
	PayoutID        string
	RefundID        string
	Carrier         string
	TrackingNumber  string
	DisputeReason   string
	DisputeDetails  string
	DisputedBy      *uuid.UUID
	Resolution      string
	AutoReleased    bool
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	DisputedAt      *time.Time
	CompletedAt     *time.Time
	RefundedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (t *Transaction) IsParty(id uuid.UUID) bool {
	return t.BuyerID == id || t.SellerID == id
}

// Releasable reports whether the sweep may pay the seller without the
// buyer's confirmation.
func (t *Transaction) Releasable(cutoff time.Time) bool {
	return t.Status == StatusDelivered && t.DeliveredAt != nil && t.DeliveredAt.Before(cutoff)
}
