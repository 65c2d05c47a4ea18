package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrProvider wraps every failure reported by an external provider.
	ErrProvider        = errors.New("payment provider error")
	ErrUnknownProvider = errors.New("unknown payment provider")
	ErrNoDestination   = errors.New("seller has no payout account for this provider")
)

// IntentStatus is the provider-neutral state of a payment intent.
type IntentStatus string

const (
	IntentRequiresPayment IntentStatus = "requires_payment"
	IntentProcessing      IntentStatus = "processing"
	IntentSucceeded       IntentStatus = "succeeded"
	IntentCanceled        IntentStatus = "canceled"
)

// Funded reports whether the buyer's money is (or is about to be) held.
func (s IntentStatus) Funded() bool {
	return s == IntentSucceeded || s == IntentProcessing
}

type IntentParams struct {
	Amount   int64
	Currency string
	Metadata map[string]string
}

type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       IntentStatus
	// Metadata echoes what was attached at creation (item_id, buyer_id).
	Metadata     map[string]string
}

// PayoutParams moves escrowed funds to a seller. Destination is the
// provider-specific account (Stripe connected account, PayPal email).
type PayoutParams struct {
	Amount         int64
	Currency       string
	Destination    string
	Reference      string
	IdempotencyKey string
}

type Payout struct {
	ID string
}

type RefundParams struct {
	IntentID       string
	Amount         int64
	IdempotencyKey string
}

type Refund struct {
	ID string
}

//go:generate mockgen -source=payment.go -destination=provider_mock.go -package=payment
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	Release(ctx context.Context, params PayoutParams) (*Payout, error)
	Refund(ctx context.Context, params RefundParams) (*Refund, error)
}

// Registry resolves providers by name. New intents go to the default
// provider; later calls use the provider recorded on the transaction.
type Registry struct {
	providers map[string]Provider
	def       string
}

func NewRegistry(def string, providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(providers)), def: def}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}

	if _, ok := r.providers[def]; !ok {
		return nil, fmt.Errorf("%w: default %q not registered", ErrUnknownProvider, def)
	}

	return r, nil
}

func (r *Registry) Default() Provider {
	return r.providers[r.def]
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
