package user

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/babyresell/babyresell/internal/auth"
	"github.com/babyresell/babyresell/internal/http/respond"
	"github.com/babyresell/babyresell/internal/user"
)

type Handler struct {
	svc *user.Service
}

func NewHandler(svc *user.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/me", h.me)
	r.Put("/me/payout", h.setPayout)
}

type userResponse struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Role            user.Role `json:"role"`
	StripeAccountID string    `json:"stripeAccountId,omitempty"`
	PayPalEmail     string    `json:"paypalEmail,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toResponse(u *user.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Role:            u.Role,
		StripeAccountID: u.StripeAccountID,
		PayPalEmail:     u.PayPalEmail,
		CreatedAt:       u.CreatedAt,
	}
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	u, err := h.svc.Get(r.Context(), id.UserID)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(u))
}

type payoutRequest struct {
	StripeAccountID string `json:"stripeAccountId" validate:"omitempty,startswith=acct_"`
	PayPalEmail     string `json:"paypalEmail" validate:"omitempty,email"`
}

func (h *Handler) setPayout(w http.ResponseWriter, r *http.Request) {
	var req payoutRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	id, _ := auth.FromContext(r.Context())

	if err := h.svc.SetPayoutAccounts(r.Context(), id.UserID, req.StripeAccountID, req.PayPalEmail); err != nil {
		respond.Err(w, r, err)
		return
	}

	u, err := h.svc.Get(r.Context(), id.UserID)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(u))
}
