package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the aggregation endpoints and, when rev is non-nil, the
// revenue repair endpoints. secret guards /api/* when non-empty.
func NewRouter(h *HTTPHandler, rev *RevenueHandler, secret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(CronAuthMiddleware(secret))
		r.Post("/cron/aggregate", h.HandleAggregate)
		r.Get("/cron/aggregate", h.HandleAggregateStatus)
		r.Get("/runs/incomplete", h.HandleIncompleteRuns)
		if rev != nil {
			r.Post("/revenue/sellers/{id}/recompute", rev.HandleSellerRecompute)
			r.Post("/revenue/projects/{id}/recompute", rev.HandleProjectRecompute)
		}
	})

	return r
}
