/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the family app

ROUTE GROUPS:
  /api/rpc/{name}       Economy RPCs
  /api/families/*       Members, rewards, wishlist
  /api/members/*        Ledger operations and reads
  /api/rewards/*        Wishlist decisions
  /api/admin/*          Admin operations
  /api/scenarios/*      Demo scenarios
  /health               Liveness
  /metrics              Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. Deploy behind an authenticating proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultAllowedOrigins are the dev frontends.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/rpc/{name}", h.RPC)

		// Family routes
		r.Route("/families/{familyID}", func(r chi.Router) {
			r.Get("/members", h.ListMembers)
			r.Post("/members", h.SaveMember)
			r.Get("/rewards", h.ListRewards)
			r.Post("/rewards", h.CreateReward)
			r.Post("/wishlist", h.ProposeReward)
		})

		// Member routes
		r.Route("/members/{memberID}", func(r chi.Router) {
			r.Get("/balance", h.GetBalance)
			r.Get("/level", h.GetLevel)
			r.Get("/transactions", h.GetTransactions)
			r.Get("/badges", h.GetBadges)
			r.Post("/earn", h.Earn)
			r.Post("/penalty", h.Penalize)
			r.Post("/transfer", h.Transfer)
			r.Post("/complete-task", h.CompleteTask)
			r.Post("/redeem", h.Redeem)
		})

		// Wishlist decisions
		r.Route("/rewards/{id}", func(r chi.Router) {
			r.Post("/approve", h.ApproveReward)
			r.Post("/reject", h.RejectReward)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/transactions/delete", h.DeleteTransactions)
		})

		r.Get("/catalog", h.GetCatalog)
		r.Get("/tasks", h.ListTasks)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
