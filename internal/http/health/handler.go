package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/babyresell/babyresell/internal/http/respond"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	db Pinger
}

func NewHandler(db Pinger) *Handler {
	return &Handler{db: db}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.test)
	r.Get("/health", h.health)
}

func (h *Handler) test(w http.ResponseWriter, _ *http.Request) {
	respond.Message(w, http.StatusOK, "API is working correctly")
}

type healthResponse struct {
	Database string `json:"database"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"message": "database unreachable",
			"data":    healthResponse{Database: "down"},
		})

		return
	}

	respond.OK(w, healthResponse{Database: "up"})
}
