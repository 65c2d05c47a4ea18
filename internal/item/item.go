package item

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("item not found")
	ErrStatusChanged = errors.New("item status changed concurrently")
	ErrForbidden     = errors.New("item belongs to another seller")
)

// Status tracks whether a listing can still be bought.
type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusSold      Status = "sold"
)

type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like_new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
)

// Item is a listing. Price is in minor units of Currency.
type Item struct {
	ID          uuid.UUID
	SellerID    uuid.UUID
	Title       string
	Description string
	Category    string
	Condition   Condition
	Price       int64
	Currency    string
	Status      Status
	ImageURLs   []string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
}
