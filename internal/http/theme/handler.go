package theme

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/babyresell/babyresell/internal/http/respond"
	"github.com/babyresell/babyresell/internal/theme"
)

type Handler struct {
	svc *theme.Service
}

func NewHandler(svc *theme.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/active", h.active)
}

// Routes mounts the admin endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Put("/activate", h.activate)
		r.Put("/deactivate", h.deactivate)
	})
}

type themeResponse struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Palette     theme.Palette `json:"palette"`
	Active      bool          `json:"active"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func toResponse(t *theme.Theme) themeResponse {
	return themeResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Palette:     t.Palette,
		Active:      t.Active,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid theme id", respond.ErrBadRequest)
	}

	return id, nil
}

// active is polled by clients, so it answers conditional requests with 304.
func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Active(r.Context())
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	etag := t.ETag()
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	respond.OK(w, toResponse(t))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	themes, err := h.svc.List(r.Context())
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	out := make([]themeResponse, 0, len(themes))
	for _, t := range themes {
		out = append(out, toResponse(t))
	}

	respond.OK(w, out)
}

type createRequest struct {
	Name        string        `json:"name" validate:"required,max=80"`
	Description string        `json:"description" validate:"max=500"`
	Palette     theme.Palette `json:"palette"`
	Active      bool          `json:"active"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	t, err := h.svc.Create(r.Context(), theme.CreateParams{
		Name:        req.Name,
		Description: req.Description,
		Palette:     req.Palette,
		Active:      req.Active,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.Created(w, toResponse(t))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(t))
}

type updateRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=1,max=80"`
	Description *string        `json:"description" validate:"omitempty,max=500"`
	Palette     *theme.Palette `json:"palette" validate:"-"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	var req updateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	t, err := h.svc.Update(r.Context(), id, theme.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
		Palette:     req.Palette,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(t))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.Message(w, http.StatusOK, "theme deleted")
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	t, err := h.svc.Activate(r.Context(), id)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(t))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	t, err := h.svc.Deactivate(r.Context(), id)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(t))
}
