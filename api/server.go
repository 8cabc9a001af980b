/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, included in request logs
  2. Logger:     zerolog request logging (logging.Middleware)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Timeout:    Bounds every request, including availability retries
  5. CORS:       Cross-origin requests for the quote form frontend

ROUTE GROUPS:
  /api/providers/*      Provider configuration, calendar, availability
  /api/templates/*      Offers, stateless quotes, coupons, session creation
  /api/sessions/*       Quote sessions
  /api/scenarios/*      Demo scenarios
  /api/reset            Database reset (dev only)
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/quote-engine/logging"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	// DevRoutes enables scenario loading and reset.
	DevRoutes bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logging.Middleware(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Provider routes
		r.Route("/providers", func(r chi.Router) {
			r.Post("/", h.LoadProvider)
			r.Get("/{id}/calendar", h.GetCalendar)
			r.Get("/{id}/availability", h.GetAvailability)
		})

		// Template routes
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Get("/{id}", h.GetTemplate)
			r.Post("/{id}/quote", h.Quote)
			r.Post("/{id}/coupons/validate", h.ValidateCoupon)
			r.Post("/{id}/sessions", h.OpenSession)
		})

		// Session routes
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.CloseSession)
			r.Put("/date", h.SetDate)
			r.Put("/items", h.SetItems)
			r.Put("/location", h.SetLocation)
			r.Put("/payment", h.SetPayment)
			r.Put("/contact", h.SetContact)
			r.Post("/coupon", h.ApplyCoupon)
			r.Delete("/coupon", h.RemoveCoupon)
			r.Post("/submit", h.Submit)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			if opts.DevRoutes {
				r.Post("/load", h.LoadScenario)
			}
		})

		if opts.DevRoutes {
			r.Post("/reset", h.Reset)
		}
	})

	return r
}
