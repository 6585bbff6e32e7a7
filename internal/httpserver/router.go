package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"bookmatch-gateway/internal/handlers"
	"bookmatch-gateway/internal/metrics"
	"bookmatch-gateway/internal/middleware"
)

// Options tunes the middleware stack.
type Options struct {
	AllowedOrigins []string
	RatePerMinute  int // <= 0 disables rate limiting
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func (o Options) withDefaults() Options {
	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if o.RequestTimeout <= 0 {
		// External extraction may spend ~20s per attempt plus backoff.
		o.RequestTimeout = 60 * time.Second
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 512 * 1024
	}
	return o
}

// Handlers bundles everything the router mounts.
type Handlers struct {
	Preferences  *handlers.PreferenceHandler
	Books        *handlers.BookHandler
	Requests     *handlers.RequestHandler
	ConfigStatus http.Handler
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, opts Options, h Handlers) {
	opts = opts.withDefaults()

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Get("/health", handlers.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RatePerMinute))
		r.Use(middleware.Timeout(opts.RequestTimeout))
		r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

		r.Post("/parse", h.Preferences.Parse)
		r.Post("/recommend", h.Preferences.Recommend)
		r.Post("/concierge", h.Preferences.Chat)

		r.Get("/books/search", h.Books.Search)
		r.Get("/books/lookup", h.Books.Lookup)

		r.Post("/requests", h.Requests.Create)

		r.Route("/admin", func(r chi.Router) {
			r.Handle("/config-status", h.ConfigStatus)

			r.Get("/books", h.Books.List)
			r.Post("/books", h.Books.Create)
			r.Put("/books/{id}/inventory", h.Books.SetInventory)
			r.Get("/books/{id}/summary", h.Books.Summary)

			r.Get("/requests", h.Requests.List)
			r.Post("/requests/{id}/status", h.Requests.UpdateStatus)
			r.Get("/requests/{id}/picklist", h.Requests.Picklist)
		})
	})
}
