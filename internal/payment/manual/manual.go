// Package manual is an offline payment provider. Intents are funded as soon
// as they are created and payouts and refunds always succeed, which makes it
// suitable for local development and for tests of the escrow flow.
package manual

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/babyresell/babyresell/internal/payment"
)

const Name = "manual"

type Provider struct {
	mu      sync.Mutex
	intents map[string]*payment.Intent
	payouts map[string]*payment.Payout
	refunds map[string]*payment.Refund
}

func New() *Provider {
	return &Provider{
		intents: make(map[string]*payment.Intent),
		payouts: make(map[string]*payment.Payout),
		refunds: make(map[string]*payment.Refund),
	}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) CreateIntent(_ context.Context, params payment.IntentParams) (*payment.Intent, error) {
	id := "man_pi_" + uuid.NewString()
	in := &payment.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       params.Amount,
		Currency:     params.Currency,
		Status:       payment.IntentSucceeded,
		Metadata:     params.Metadata,
	}

	p.mu.Lock()
	p.intents[id] = in
	p.mu.Unlock()

	out := *in

	return &out, nil
}

func (p *Provider) GetIntent(_ context.Context, id string) (*payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	in, ok := p.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: intent %s not found", payment.ErrProvider, id)
	}

	out := *in

	return &out, nil
}

// Release is idempotent on IdempotencyKey, like the real providers.
func (p *Provider) Release(_ context.Context, params payment.PayoutParams) (*payment.Payout, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if po, ok := p.payouts[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		return po, nil
	}

	po := &payment.Payout{ID: "man_po_" + uuid.NewString()}
	p.payouts[params.IdempotencyKey] = po

	return po, nil
}

func (p *Provider) Refund(_ context.Context, params payment.RefundParams) (*payment.Refund, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rf, ok := p.refunds[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		return rf, nil
	}

	if in, ok := p.intents[params.IntentID]; ok {
		in.Status = payment.IntentCanceled
	}

	rf := &payment.Refund{ID: "man_re_" + uuid.NewString()}
	p.refunds[params.IdempotencyKey] = rf

	return rf, nil
}

// Payouts returns how many distinct payouts were made.
func (p *Provider) Payouts() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.payouts)
}
