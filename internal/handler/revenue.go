package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/analytics/internal/apperrors"
	"github.com/gosight/gosight/analytics/internal/saleledger"
)

// RevenueRepairer rebuilds cumulative revenue totals from the sale ledger.
type RevenueRepairer interface {
	RecomputeSellerRevenue(ctx context.Context, ownerID string) (saleledger.Revenue, error)
	RecomputeProjectRevenue(ctx context.Context, projectID string) (saleledger.Revenue, error)
}

type RevenueHandler struct {
	repairer RevenueRepairer
}

func NewRevenueHandler(r RevenueRepairer) *RevenueHandler {
	return &RevenueHandler{repairer: r}
}

func (h *RevenueHandler) HandleSellerRecompute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.respond(r.Context(), w, "seller", id, h.repairer.RecomputeSellerRevenue)
}

func (h *RevenueHandler) HandleProjectRecompute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.respond(r.Context(), w, "project", id, h.repairer.RecomputeProjectRevenue)
}

func (h *RevenueHandler) respond(ctx context.Context, w http.ResponseWriter, scope, id string, recompute func(context.Context, string) (saleledger.Revenue, error)) {
	rev, err := recompute(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("scope", scope).Str("id", id).Msg("Failed to recompute revenue")
		status := http.StatusInternalServerError
		if apperrors.IsNotFound(err) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"scope":       scope,
		"id":          id,
		"total":       rev.Total.StringFixed(2),
		"sales_count": rev.Sales,
	})
}
