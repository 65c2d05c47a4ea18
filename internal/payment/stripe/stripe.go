// Package stripe implements escrow payments on Stripe Connect: the buyer pays
// the platform through a PaymentIntent, the seller is paid with a Transfer to
// their connected account, and refunds go back against the PaymentIntent.
package stripe

import (
	"context"
	"fmt"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/babyresell/babyresell/internal/payment"
)

const Name = "stripe"

type Provider struct {
	api *client.API
}

type Option func(*options)

type options struct {
	backendURL string
}

// WithBackendURL points the client at another API host, e.g. stripe-mock.
func WithBackendURL(url string) Option {
	return func(o *options) { o.backendURL = url }
}

func New(secretKey string, opts ...Option) *Provider {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	api := &client.API{}

	if o.backendURL == "" {
		api.Init(secretKey, nil)
		return &Provider{api: api}
	}

	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		URL:               stripego.String(o.backendURL),
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelNull},
	})
	api.Init(secretKey, &stripego.Backends{API: backend, Connect: backend, Uploads: backend})

	return &Provider{api: api}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) CreateIntent(ctx context.Context, params payment.IntentParams) (*payment.Intent, error) {
	sp := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(params.Amount),
		Currency: stripego.String(params.Currency),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	sp.Context = ctx

	for k, v := range params.Metadata {
		sp.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(sp)
	if err != nil {
		return nil, fmt.Errorf("%w: creating payment intent: %w", payment.ErrProvider, err)
	}

	return toIntent(pi), nil
}

func (p *Provider) GetIntent(ctx context.Context, id string) (*payment.Intent, error) {
	sp := &stripego.PaymentIntentParams{}
	sp.Context = ctx

	pi, err := p.api.PaymentIntents.Get(id, sp)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieving payment intent %s: %w", payment.ErrProvider, id, err)
	}

	return toIntent(pi), nil
}

func (p *Provider) Release(ctx context.Context, params payment.PayoutParams) (*payment.Payout, error) {
	if params.Destination == "" {
		return nil, payment.ErrNoDestination
	}

	sp := &stripego.TransferParams{
		Amount:        stripego.Int64(params.Amount),
		Currency:      stripego.String(params.Currency),
		Destination:   stripego.String(params.Destination),
		TransferGroup: stripego.String(params.Reference),
	}
	sp.Context = ctx

	if params.IdempotencyKey != "" {
		sp.SetIdempotencyKey(params.IdempotencyKey)
	}

	tr, err := p.api.Transfers.New(sp)
	if err != nil {
		return nil, fmt.Errorf("%w: creating transfer: %w", payment.ErrProvider, err)
	}

	return &payment.Payout{ID: tr.ID}, nil
}

func (p *Provider) Refund(ctx context.Context, params payment.RefundParams) (*payment.Refund, error) {
	sp := &stripego.RefundParams{
		PaymentIntent: stripego.String(params.IntentID),
	}
	sp.Context = ctx

	if params.Amount > 0 {
		sp.Amount = stripego.Int64(params.Amount)
	}

	if params.IdempotencyKey != "" {
		sp.SetIdempotencyKey(params.IdempotencyKey)
	}

	rf, err := p.api.Refunds.New(sp)
	if err != nil {
		return nil, fmt.Errorf("%w: creating refund: %w", payment.ErrProvider, err)
	}

	return &payment.Refund{ID: rf.ID}, nil
}

func toIntent(pi *stripego.PaymentIntent) *payment.Intent {
	return &payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       intentStatus(pi.Status),
		Metadata:     pi.Metadata,
	}
}

func intentStatus(s stripego.PaymentIntentStatus) payment.IntentStatus {
	switch s {
	case stripego.PaymentIntentStatusSucceeded:
		return payment.IntentSucceeded
	case stripego.PaymentIntentStatusProcessing, stripego.PaymentIntentStatusRequiresCapture:
		return payment.IntentProcessing
	case stripego.PaymentIntentStatusCanceled:
		return payment.IntentCanceled
	default:
		return payment.IntentRequiresPayment
	}
}
