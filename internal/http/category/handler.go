package category

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/babyresell/babyresell/internal/category"
	"github.com/babyresell/babyresell/internal/http/respond"
)

type Handler struct {
	svc *category.Service
}

func NewHandler(svc *category.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/suggest", h.suggest)
}

// Routes mounts the admin endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/mappings", h.learn)
}

type suggestResponse struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		respond.Err(w, r, fmt.Errorf("%w: title query parameter is required", respond.ErrBadRequest))
		return
	}

	suggested, err := h.svc.Suggest(r.Context(), title)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, suggestResponse{Title: title, Category: suggested})
}

type learnRequest struct {
	Keyword  string `json:"keyword" validate:"required,max=100"`
	Category string `json:"category" validate:"required,max=100"`
}

func (h *Handler) learn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	if err := h.svc.Learn(r.Context(), req.Keyword, req.Category); err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.Message(w, http.StatusCreated, "mapping saved")
}
