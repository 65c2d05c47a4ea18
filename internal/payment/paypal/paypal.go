// Package paypal implements escrow payments on PayPal: checkout orders stand
// in for payment intents, sellers are paid through the Payouts API and
// refunds go against the order's capture.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/babyresell/babyresell/internal/payment"
)

const Name = "paypal"

type Provider struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

func New(baseURL, clientID, clientSecret string) *Provider {
	return &Provider{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
	}
}

func (p *Provider) Name() string { return Name }

type money struct {
	CurrencyCode string `json:"currency_code,omitempty"`
	Currency     string `json:"currency,omitempty"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Amount      money  `json:"amount"`
	Payments    *struct {
		Captures []struct {
			ID string `json:"id"`
		} `json:"captures"`
	} `json:"payments,omitempty"`
}

type order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

func (p *Provider) CreateIntent(ctx context.Context, params payment.IntentParams) (*payment.Intent, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []purchaseUnit{{
			ReferenceID: params.Metadata["item_id"],
			CustomID:    params.Metadata["buyer_id"],
			Amount: money{
				CurrencyCode: strings.ToUpper(params.Currency),
				Value:        formatAmount(params.Amount),
			},
		}},
	}

	var o order
	if err := p.do(ctx, http.MethodPost, "/v2/checkout/orders", "", body, &o); err != nil {
		return nil, fmt.Errorf("%w: creating order: %w", payment.ErrProvider, err)
	}

	return &payment.Intent{
		ID:           o.ID,
		ClientSecret: o.ID,
		Amount:       params.Amount,
		Currency:     params.Currency,
		Status:       orderStatus(o.Status),
	}, nil
}

// GetIntent reports the order's state. An approved order holds no money
// until it is captured, so approved orders are captured here first.
func (p *Provider) GetIntent(ctx context.Context, id string) (*payment.Intent, error) {
	o, err := p.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.Status == "APPROVED" {
		if err := p.capture(ctx, id); err != nil {
			return nil, err
		}

		if o, err = p.getOrder(ctx, id); err != nil {
			return nil, err
		}
	}

	in := &payment.Intent{ID: o.ID, ClientSecret: o.ID, Status: orderStatus(o.Status)}

	if len(o.PurchaseUnits) > 0 {
		pu := o.PurchaseUnits[0]
		in.Metadata = map[string]string{"item_id": pu.ReferenceID, "buyer_id": pu.CustomID}

		amt := pu.Amount
		in.Currency = strings.ToLower(amt.CurrencyCode)

		cents, err := parseAmount(amt.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: order %s amount %q: %w", payment.ErrProvider, id, amt.Value, err)
		}

		in.Amount = cents
	}

	return in, nil
}

// capture is keyed on the order ID so a repeated capture replays PayPal's
// first response instead of failing.
func (p *Provider) capture(ctx context.Context, id string) error {
	var o order
	if err := p.do(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(id)+"/capture", "capture-"+id, map[string]any{}, &o); err != nil {
		return fmt.Errorf("%w: capturing order %s: %w", payment.ErrProvider, id, err)
	}

	return nil
}

func (p *Provider) Release(ctx context.Context, params payment.PayoutParams) (*payment.Payout, error) {
	if params.Destination == "" {
		return nil, payment.ErrNoDestination
	}

	body := map[string]any{
		"sender_batch_header": map[string]string{
			"sender_batch_id": params.IdempotencyKey,
			"email_subject":   "You have a payout from BabyResell",
		},
		"items": []map[string]any{{
			"recipient_type": "EMAIL",
			"receiver":       params.Destination,
			"sender_item_id": params.Reference,
			"amount": money{
				Currency: strings.ToUpper(params.Currency),
				Value:    formatAmount(params.Amount),
			},
		}},
	}

	var resp struct {
		BatchHeader struct {
			PayoutBatchID string `json:"payout_batch_id"`
		} `json:"batch_header"`
	}

	if err := p.do(ctx, http.MethodPost, "/v1/payments/payouts", params.IdempotencyKey, body, &resp); err != nil {
		return nil, fmt.Errorf("%w: creating payout: %w", payment.ErrProvider, err)
	}

	return &payment.Payout{ID: resp.BatchHeader.PayoutBatchID}, nil
}

func (p *Provider) Refund(ctx context.Context, params payment.RefundParams) (*payment.Refund, error) {
	o, err := p.getOrder(ctx, params.IntentID)
	if err != nil {
		return nil, err
	}

	captureID := ""
	if len(o.PurchaseUnits) > 0 && o.PurchaseUnits[0].Payments != nil && len(o.PurchaseUnits[0].Payments.Captures) > 0 {
		captureID = o.PurchaseUnits[0].Payments.Captures[0].ID
	}

	if captureID == "" {
		return nil, fmt.Errorf("%w: order %s has no capture to refund", payment.ErrProvider, params.IntentID)
	}

	body := map[string]any{}
	if params.Amount > 0 && len(o.PurchaseUnits) > 0 {
		body["amount"] = money{
			CurrencyCode: o.PurchaseUnits[0].Amount.CurrencyCode,
			Value:        formatAmount(params.Amount),
		}
	}

	var resp struct {
		ID string `json:"id"`
	}

	path := "/v2/payments/captures/" + url.PathEscape(captureID) + "/refund"
	if err := p.do(ctx, http.MethodPost, path, params.IdempotencyKey, body, &resp); err != nil {
		return nil, fmt.Errorf("%w: refunding capture %s: %w", payment.ErrProvider, captureID, err)
	}

	return &payment.Refund{ID: resp.ID}, nil
}

func (p *Provider) getOrder(ctx context.Context, id string) (*order, error) {
	var o order
	if err := p.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(id), "", nil, &o); err != nil {
		return nil, fmt.Errorf("%w: retrieving order %s: %w", payment.ErrProvider, id, err)
	}

	return &o, nil
}

func (p *Provider) do(ctx context.Context, method, path, requestID string, in, out any) error {
	token, err := p.accessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}

		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// accessToken returns a cached OAuth token, fetching a new one a minute
// before the old one expires.
func (p *Provider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}

	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: requesting token: %w", payment.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", payment.ErrProvider, resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: decoding token: %w", payment.ErrProvider, err)
	}

	p.token = tok.AccessToken
	p.tokenExpiry = p.now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)

	return p.token, nil
}

func orderStatus(s string) payment.IntentStatus {
	switch s {
	case "COMPLETED":
		return payment.IntentSucceeded
	case "VOIDED":
		return payment.IntentCanceled
	default:
		return payment.IntentRequiresPayment
	}
}

func formatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func parseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}

	return d.Shift(2).Round(0).IntPart(), nil
}
