package saleledger

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/gosight/gosight/analytics/internal/listings"
)

// Store persists ledger entries and revenue totals. Execute applies a plan
// atomically and returns a RECONCILIATION error when another writer
// inserted an entry for the same listing first.
type Store interface {
	GetEntry(ctx context.Context, listingID string) (*Entry, error)
	ListEntries(ctx context.Context, listingIDs []string) ([]Entry, error)
	Execute(ctx context.Context, plan Plan) error
	SetSellerRevenue(ctx context.Context, ownerID string, rev Revenue) error
	SetProjectRevenue(ctx context.Context, projectID string, rev Revenue) error
}

// ListingSource provides the scoped listing queries used to rebuild
// revenue totals.
type ListingSource interface {
	ListByOwner(ctx context.Context, ownerID string) ([]listings.Snapshot, error)
	ListByProject(ctx context.Context, projectID string) ([]listings.Snapshot, error)
}

// Revenue is a cumulative total.
type Revenue struct {
	Total decimal.Decimal `json:"total"`
	Sales int             `json:"sales"`
}

type Reconciler struct {
	store    Store
	listings ListingSource
	now      func() time.Time
}

func NewReconciler(store Store, src ListingSource) *Reconciler {
	return &Reconciler{store: store, listings: src, now: time.Now}
}

// Reconcile brings the ledger in line with listing moving from the status
// fromStatus to listing.Status.
func (r *Reconciler) Reconcile(ctx context.Context, listing listings.Snapshot, fromStatus string) (Plan, error) {
	existing, err := r.store.GetEntry(ctx, listing.ID)
	if err != nil {
		return Plan{}, err
	}

	plan, err := PlanTransition(listing, fromStatus, listing.Status, existing, r.now())
	if err != nil {
		return plan, err
	}

	if plan.Action == ActionNone {
		if listings.NormalizeStatus(listing.Status) == listings.StatusAvailable &&
			listings.NormalizeStatus(fromStatus) != listings.StatusAvailable {
			log.Warn().Str("listing_id", listing.ID).Str("from", fromStatus).Msg("No ledger entry to remove")
		}
		return plan, nil
	}

	if err := r.store.Execute(ctx, plan); err != nil {
		return plan, err
	}

	log.Info().
		Str("listing_id", listing.ID).
		Str("action", string(plan.Action)).
		Str("revenue_delta", plan.RevenueDelta.String()).
		Msg("Sale ledger updated")
	return plan, nil
}

// RecomputeSellerRevenue rebuilds the owner's total from the ledger
// entries of their listings.
func (r *Reconciler) RecomputeSellerRevenue(ctx context.Context, ownerID string) (Revenue, error) {
	ls, err := r.listings.ListByOwner(ctx, ownerID)
	if err != nil {
		return Revenue{}, err
	}
	rev, err := r.sum(ctx, ls)
	if err != nil {
		return Revenue{}, err
	}
	return rev, r.store.SetSellerRevenue(ctx, ownerID, rev)
}

// RecomputeProjectRevenue rebuilds the project's total from the ledger
// entries of its listings.
func (r *Reconciler) RecomputeProjectRevenue(ctx context.Context, projectID string) (Revenue, error) {
	ls, err := r.listings.ListByProject(ctx, projectID)
	if err != nil {
		return Revenue{}, err
	}
	rev, err := r.sum(ctx, ls)
	if err != nil {
		return Revenue{}, err
	}
	return rev, r.store.SetProjectRevenue(ctx, projectID, rev)
}

func (r *Reconciler) sum(ctx context.Context, ls []listings.Snapshot) (Revenue, error) {
	rev := Revenue{Total: decimal.Zero}
	if len(ls) == 0 {
		return rev, nil
	}

	ids := make([]string, len(ls))
	for i, l := range ls {
		ids[i] = l.ID
	}
	entries, err := r.store.ListEntries(ctx, ids)
	if err != nil {
		return rev, err
	}
	for _, e := range entries {
		rev.Total = rev.Total.Add(e.SalePrice)
		rev.Sales++
	}
	return rev, nil
}
