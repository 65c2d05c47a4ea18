package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/babyresell/babyresell/internal/statement"
	"github.com/babyresell/babyresell/internal/transaction"
)

type transactionResponse struct {
	ID              uuid.UUID          `json:"id"`
	BuyerID         uuid.UUID          `json:"buyerId"`
	SellerID        uuid.UUID          `json:"sellerId"`
	ItemID          uuid.UUID          `json:"itemId"`
	Amount          int64              `json:"amount"`
	PlatformFee     int64              `json:"platformFee"`
	SellerEarnings  int64              `json:"sellerEarnings"`
	Currency        string             `json:"currency"`
	Status          transaction.Status `json:"status"`
	Provider        string             `json:"provider"`
	PaymentIntentID string             `json:"paymentIntentId"`
	PayoutID        string             `json:"payoutId,omitempty"`
	RefundID        string             `json:"refundId,omitempty"`
	Shipping        *shippingResponse  `json:"shipping,omitempty"`
	Dispute         *disputeResponse   `json:"dispute,omitempty"`
	AutoReleased    bool               `json:"autoReleased"`
	DeliveredAt     *time.Time         `json:"deliveredAt,omitempty"`
	CompletedAt     *time.Time         `json:"completedAt,omitempty"`
	RefundedAt      *time.Time         `json:"refundedAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

type shippingResponse struct {
	Carrier        string     `json:"carrier"`
	TrackingNumber string     `json:"trackingNumber"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
}

type disputeResponse struct {
	Reason     string     `json:"reason"`
	Details    string     `json:"details,omitempty"`
	OpenedBy   *uuid.UUID `json:"openedBy,omitempty"`
	OpenedAt   *time.Time `json:"openedAt,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
}

func toResponse(tx *transaction.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:              tx.ID,
		BuyerID:         tx.BuyerID,
		SellerID:        tx.SellerID,
		ItemID:          tx.ItemID,
		Amount:          tx.Amount,
		PlatformFee:     tx.PlatformFee,
		SellerEarnings:  tx.SellerEarnings,
		Currency:        tx.Currency,
		Status:          tx.Status,
		Provider:        tx.Provider,
		PaymentIntentID: tx.PaymentIntentID,
		PayoutID:        tx.PayoutID,
		RefundID:        tx.RefundID,
		AutoReleased:    tx.AutoReleased,
		DeliveredAt:     tx.DeliveredAt,
		CompletedAt:     tx.CompletedAt,
		RefundedAt:      tx.RefundedAt,
		CreatedAt:       tx.CreatedAt,
		UpdatedAt:       tx.UpdatedAt,
	}

	if tx.ShippedAt != nil {
		resp.Shipping = &shippingResponse{
			Carrier:        tx.Carrier,
			TrackingNumber: tx.TrackingNumber,
			ShippedAt:      tx.ShippedAt,
		}
	}

	if tx.DisputedAt != nil {
		resp.Dispute = &disputeResponse{
			Reason:     tx.DisputeReason,
			Details:    tx.DisputeDetails,
			OpenedBy:   tx.DisputedBy,
			OpenedAt:   tx.DisputedAt,
			Resolution: tx.Resolution,
		}
	}

	return resp
}

func toResponses(txs []*transaction.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toResponse(tx))
	}

	return out
}

type checkoutResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Provider        string `json:"provider"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PlatformFee     int64  `json:"platformFee"`
	SellerEarnings  int64  `json:"sellerEarnings"`
}

func toCheckoutResponse(c *transaction.Checkout) checkoutResponse {
	return checkoutResponse{
		ClientSecret:    c.ClientSecret,
		PaymentIntentID: c.IntentID,
		Provider:        c.Provider,
		Amount:          c.Amount,
		Currency:        c.Currency,
		PlatformFee:     c.PlatformFee,
		SellerEarnings:  c.SellerEarnings,
	}
}

type sweepResponse struct {
	Candidates int         `json:"candidates"`
	Released   []uuid.UUID `json:"released"`
	Skipped    int         `json:"skipped"`
	Failed     int         `json:"failed"`
}

type statementLine struct {
	TransactionID  uuid.UUID `json:"transactionId"`
	ItemID         uuid.UUID `json:"itemId"`
	ItemTitle      string    `json:"itemTitle"`
	CompletedAt    time.Time `json:"completedAt"`
	Amount         int64     `json:"amount"`
	PlatformFee    int64     `json:"platformFee"`
	SellerEarnings int64     `json:"sellerEarnings"`
	Currency       string    `json:"currency"`
	AutoReleased   bool      `json:"autoReleased"`
}

type statementResponse struct {
	From   time.Time       `json:"from"`
	To     time.Time       `json:"to"`
	Lines  []statementLine `json:"lines"`
	Totals struct {
		Sales    int   `json:"sales"`
		Amount   int64 `json:"amount"`
		Fees     int64 `json:"fees"`
		Earnings int64 `json:"earnings"`
	} `json:"totals"`
}

func toStatementResponse(st *statement.Statement) statementResponse {
	resp := statementResponse{
		From:  st.From,
		To:    st.To,
		Lines: make([]statementLine, 0, len(st.Lines)),
	}

	for _, l := range st.Lines {
		resp.Lines = append(resp.Lines, statementLine(l))
	}

	resp.Totals.Sales = st.Totals.Sales
	resp.Totals.Amount = st.Totals.Amount
	resp.Totals.Fees = st.Totals.Fees
	resp.Totals.Earnings = st.Totals.Earnings

	return resp
}
