/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zerolog request log line
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the cellar UI
  5. httprate:   Per-client request limit

ROUTE GROUPS:
  /healthz              Liveness
  /readyz               Store reachable
  /metrics              Prometheus exposition
  /api/containers/*     Containers and container operations
  /api/transfers        Transfers
  /api/entries/*        Transaction log, undo, remove
  /api/products/*       Products
  /api/batches/*        Production batches
  /api/scenarios/*      Demo scenarios
  /api/*                Catalog, consistency, events, admin

SECURITY NOTE:
  No authentication middleware. Run behind an authenticating proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
)

// RouterOptions configures the outer surface of the router.
type RouterOptions struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Ready reports whether the store is reachable.
	Ready func(ctx context.Context) error
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	if opts.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimitPerMinute, time.Minute))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready(req.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/containers", func(r chi.Router) {
			r.Get("/", h.ListContainers)
			r.Post("/", h.CreateContainer)
			r.Post("/import", h.ImportContainers)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetContainer)
				r.Patch("/", h.UpdateContainer)
				r.Delete("/", h.DeleteContainer)
				r.Post("/fill", h.FillContainer)
				r.Post("/account", h.ChangeAccount)
				r.Post("/adjust", h.AdjustContainer)
				r.Post("/bottle", h.BottleContainer)
				r.Post("/proof-down", h.ProofDown)
				r.Get("/entries", h.ContainerEntries)
			})
		})

		r.Post("/transfers", h.Transfer)

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Get("/{id}", h.GetEntry)
			r.Get("/{id}/eligibility", h.EntryEligibility)
			r.Post("/{id}/undo", h.UndoEntry)
			r.Delete("/{id}", h.RemoveEntry)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})

		r.Route("/batches", func(r chi.Router) {
			r.Get("/", h.ListBatches)
			r.Post("/fermentation", h.RecordFermentation)
			r.Post("/distillation", h.RecordDistillation)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		r.Get("/catalog", h.GetCatalog)
		r.Get("/consistency", h.CheckConsistency)
		r.Get("/consistency/last", h.LastConsistency)
		r.Get("/events", h.RecentEvents)
		r.Post("/admin/seed", h.SeedProducts)
	})

	return r
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		})
	}
}
