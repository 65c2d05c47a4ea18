package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/babyresell/babyresell/internal/auth"
	"github.com/babyresell/babyresell/internal/http/category"
	"github.com/babyresell/babyresell/internal/http/health"
	"github.com/babyresell/babyresell/internal/http/item"
	"github.com/babyresell/babyresell/internal/http/respond"
	"github.com/babyresell/babyresell/internal/http/settings"
	"github.com/babyresell/babyresell/internal/http/theme"
	"github.com/babyresell/babyresell/internal/http/transaction"
	"github.com/babyresell/babyresell/internal/http/user"
)

type Options struct {
	Timeout     time.Duration
	CORSOrigins []string
}

type Handlers struct {
	Health     *health.Handler
	Settings   *settings.Handler
	Themes     *theme.Handler
	Items      *item.Handler
	Categories *category.Handler
	Payments   *transaction.Handler
	Users      *user.Handler
}

func New(opts Options, authn *auth.Authenticator, h Handlers) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"ETag", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if opts.Timeout > 0 {
		router.Use(middleware.Timeout(opts.Timeout))
	}

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusNotFound, "route not found")
	})

	router.Route("/api", func(r chi.Router) {
		r.Route("/test", h.Health.Routes)

		r.Route("/settings", func(r chi.Router) {
			h.Settings.PublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(authn.Middleware, auth.RequireAdmin)
				r.Use(middleware.AllowContentType("application/json"))
				h.Settings.Routes(r)
			})
		})

		r.Route("/themes", func(r chi.Router) {
			h.Themes.PublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(authn.Middleware, auth.RequireAdmin)
				r.Use(middleware.AllowContentType("application/json"))
				h.Themes.Routes(r)
			})
		})

		r.Route("/items", func(r chi.Router) {
			h.Items.PublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(authn.Middleware)
				r.Use(middleware.AllowContentType("application/json", "multipart/form-data"))
				h.Items.Routes(r)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			h.Categories.PublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(authn.Middleware, auth.RequireAdmin)
				h.Categories.Routes(r)
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Use(authn.Middleware)
			r.Use(middleware.AllowContentType("application/json"))

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				h.Payments.AdminRoutes(r)
			})

			h.Payments.Routes(r)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authn.Middleware)
			h.Users.Routes(r)
		})
	})

	return router
}
