package settings

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/babyresell/babyresell/internal/http/respond"
	"github.com/babyresell/babyresell/internal/settings"
)

type Handler struct {
	svc *settings.Service
}

func NewHandler(svc *settings.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/public", h.public)
}

// Routes mounts the admin endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.update)
	r.Post("/reset", h.reset)
	r.Put("/{section}", h.updateSection)
}

func (h *Handler) public(w http.ResponseWriter, r *http.Request) {
	pub, err := h.svc.Public(r.Context())
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, pub)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(r.Context())
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, s)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := respond.DecodeJSON(r, &patch); err != nil {
		respond.Err(w, r, err)
		return
	}

	s, err := h.svc.Update(r.Context(), patch)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, s)
}

func (h *Handler) updateSection(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := respond.DecodeJSON(r, &patch); err != nil {
		respond.Err(w, r, err)
		return
	}

	s, err := h.svc.UpdateSection(r.Context(), chi.URLParam(r, "section"), patch)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, s)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Reset(r.Context())
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, s)
}
