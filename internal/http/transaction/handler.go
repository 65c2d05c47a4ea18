package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/babyresell/babyresell/internal/auth"
	"github.com/babyresell/babyresell/internal/http/respond"
	"github.com/babyresell/babyresell/internal/statement"
	"github.com/babyresell/babyresell/internal/transaction"
)

const dateLayout = "2006-01-02"

type Handler struct {
	txSvc        *transaction.Service
	statementSvc *statement.Service
	now          func() time.Time
}

func NewHandler(txSvc *transaction.Service, statementSvc *statement.Service) *Handler {
	return &Handler{txSvc: txSvc, statementSvc: statementSvc, now: time.Now}
}

// Routes mounts the buyer and seller endpoints. The caller must install the
// auth middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/create-payment-intent", h.createPaymentIntent)
	r.Get("/statement", h.statement)

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/ship", h.ship)
			r.Put("/deliver", h.deliver)
			r.Put("/confirm", h.confirm)
			r.Post("/dispute", h.dispute)
		})
	})
}

// AdminRoutes mounts the operator endpoints. The caller must install
// auth.RequireAdmin.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/transactions", h.adminList)
	r.Post("/transactions/{id}/resolve", h.resolve)
	r.Post("/transactions/{id}/refund", h.refund)
	r.Post("/auto-release", h.autoRelease)
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid transaction id", respond.ErrBadRequest)
	}

	return id, nil
}

func statusParam(r *http.Request) (*transaction.Status, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}

	status := transaction.Status(raw)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", respond.ErrBadRequest, raw)
	}

	return &status, nil
}

type intentRequest struct {
	ItemID string `json:"itemId" validate:"required,uuid"`
}

func (h *Handler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	checkout, err := h.txSvc.CreatePaymentIntent(r.Context(), identity(r).UserID, uuid.MustParse(req.ItemID))
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toCheckoutResponse(checkout))
}

type createRequest struct {
	ItemID          string `json:"itemId" validate:"required,uuid"`
	PaymentIntentID string `json:"paymentIntentId" validate:"required,max=255"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	tx, err := h.txSvc.Create(r.Context(), transaction.CreateParams{
		BuyerID:         identity(r).UserID,
		ItemID:          uuid.MustParse(req.ItemID),
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.Created(w, toResponse(tx))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	status, err := statusParam(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	caller := identity(r).UserID
	filter := transaction.ListFilter{Status: status}

	switch role := r.URL.Query().Get("role"); role {
	case "buyer":
		filter.BuyerID = &caller
	case "seller":
		filter.SellerID = &caller
	case "":
		filter.PartyID = &caller
	default:
		respond.Err(w, r, fmt.Errorf("%w: role must be buyer or seller", respond.ErrBadRequest))
		return
	}

	txs, err := h.txSvc.List(r.Context(), filter)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponses(txs))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	tx, err := h.txSvc.Get(r.Context(), id)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	caller := identity(r)
	if !caller.Admin() && !tx.IsParty(caller.UserID) {
		respond.Err(w, r, transaction.ErrForbidden)
		return
	}

	respond.OK(w, toResponse(tx))
}

type shipRequest struct {
	Carrier        string `json:"carrier" validate:"required,max=100"`
	TrackingNumber string `json:"trackingNumber" validate:"required,max=100"`
}

func (h *Handler) ship(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	var req shipRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	tx, err := h.txSvc.MarkShipped(r.Context(), identity(r).UserID, id, transaction.Shipment{
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(tx))
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.txSvc.MarkDelivered)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.txSvc.ConfirmDelivery)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID, uuid.UUID) (*transaction.Transaction, error)) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	tx, err := fn(r.Context(), identity(r).UserID, id)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(tx))
}

type disputeRequest struct {
	Reason  string `json:"reason" validate:"required,max=200"`
	Details string `json:"details" validate:"max=2000"`
}

func (h *Handler) dispute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	var req disputeRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	tx, err := h.txSvc.CreateDispute(r.Context(), identity(r).UserID, id, transaction.Dispute{
		Reason:  req.Reason,
		Details: req.Details,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(tx))
}

// statement serves the caller's completed sales, as CSV when the client
// accepts text/csv. The range defaults to the current month.
func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			respond.Err(w, r, fmt.Errorf("%w: from must be YYYY-MM-DD", respond.ErrBadRequest))
			return
		}

		from = t
	}

	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			respond.Err(w, r, fmt.Errorf("%w: to must be YYYY-MM-DD", respond.ErrBadRequest))
			return
		}

		to = t.AddDate(0, 0, 1)
	}

	if !from.Before(to) {
		respond.Err(w, r, fmt.Errorf("%w: from must be before to", respond.ErrBadRequest))
		return
	}

	st, err := h.statementSvc.Build(r.Context(), identity(r).UserID, from, to)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/csv") {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement_%s_%s.csv"`,
			from.Format(dateLayout), to.AddDate(0, 0, -1).Format(dateLayout)))

		if err := statement.WriteCSV(w, st); err != nil {
			slog.Error("failed to write statement", "error", err)
		}

		return
	}

	respond.OK(w, toStatementResponse(st))
}

func (h *Handler) adminList(w http.ResponseWriter, r *http.Request) {
	status, err := statusParam(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	txs, err := h.txSvc.List(r.Context(), transaction.ListFilter{Status: status})
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponses(txs))
}

type resolveRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=release refund"`
	Note    string `json:"note" validate:"max=2000"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	var req resolveRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	tx, err := h.txSvc.ResolveDispute(r.Context(), id, transaction.Resolution{
		Outcome: transaction.Outcome(req.Outcome),
		Note:    req.Note,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(tx))
}

type refundRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	var req refundRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	tx, err := h.txSvc.Refund(r.Context(), id, req.Note)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(tx))
}

func (h *Handler) autoRelease(w http.ResponseWriter, r *http.Request) {
	report, err := h.txSvc.AutoRelease(r.Context(), h.now())
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	released := report.Released
	if released == nil {
		released = []uuid.UUID{}
	}

	respond.OK(w, sweepResponse{
		Candidates: report.Candidates,
		Released:   released,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
	})
}
