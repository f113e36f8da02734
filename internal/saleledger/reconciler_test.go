package saleledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/analytics/internal/apperrors"
	"github.com/gosight/gosight/analytics/internal/listings"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func listing(id, status string, revenue float64) listings.Snapshot {
	return listings.Snapshot{
		ID:               id,
		OwnerID:          "seller-1",
		ProjectID:        "project-1",
		Status:           status,
		Currency:         "NGN",
		EstimatedRevenue: revenue,
	}
}

type stubListings struct {
	byOwner   map[string][]listings.Snapshot
	byProject map[string][]listings.Snapshot
}

func (s stubListings) ListByOwner(_ context.Context, id string) ([]listings.Snapshot, error) {
	return s.byOwner[id], nil
}

func (s stubListings) ListByProject(_ context.Context, id string) ([]listings.Snapshot, error) {
	return s.byProject[id], nil
}

func newReconciler() (*Reconciler, *MemoryStore) {
	store := NewMemoryStore()
	r := NewReconciler(store, stubListings{})
	r.now = func() time.Time { return now }
	return r, store
}

func TestPlanTransition(t *testing.T) {
	existing := &Entry{ListingID: "L1", SaleType: "rented", SalePrice: decimal.NewFromInt(500), OwnerID: "seller-1"}

	tests := []struct {
		name     string
		from, to string
		existing *Entry
		action   Action
		delta    string
		sales    int
		wantErr  bool
	}{
		{"available to sold", "available", "sold", nil, ActionInsert, "750", 1, false},
		{"available to rented", "available", "rented", nil, ActionInsert, "750", 1, false},
		{"double sale rejected", "available", "sold", existing, ActionNone, "0", 0, true},
		{"rented to sold relabels", "rented", "sold", existing, ActionRelabel, "0", 0, false},
		{"sold to rented relabels", "sold", "rented", existing, ActionRelabel, "0", 0, false},
		{"sold to available deletes", "sold", "available", existing, ActionDelete, "-500", -1, false},
		{"available without entry", "rented", "available", nil, ActionNone, "0", 0, false},
		{"relabel without entry inserts", "rented", "sold", nil, ActionInsert, "750", 1, false},
		{"unchanged", "sold", "sold", existing, ActionNone, "0", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := listing("L1", tt.to, 750)
			plan, err := PlanTransition(l, tt.from, tt.to, tt.existing, now)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsReconciliation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.action, plan.Action)
			assert.Equal(t, tt.delta, plan.RevenueDelta.String())
			assert.Equal(t, tt.sales, plan.SalesDelta)
		})
	}
}

func TestReconcile_DoubleSaleGuard(t *testing.T) {
	ctx := context.Background()
	r, store := newReconciler()

	_, err := r.Reconcile(ctx, listing("L1", "sold", 1000), "available")
	require.NoError(t, err)
	assert.Equal(t, "1000", store.SellerRevenue("seller-1").Total.String())
	assert.Equal(t, 1, store.SellerRevenue("seller-1").Sales)
	assert.Equal(t, "1000", store.ProjectRevenue("project-1").Total.String())

	_, err = r.Reconcile(ctx, listing("L1", "sold", 1000), "available")
	require.Error(t, err)
	assert.True(t, apperrors.IsReconciliation(err))
	assert.Equal(t, "1000", store.SellerRevenue("seller-1").Total.String())
	assert.Equal(t, 1, store.SellerRevenue("seller-1").Sales)
}

func TestReconcile_RentedToSoldKeepsRevenue(t *testing.T) {
	ctx := context.Background()
	r, store := newReconciler()

	_, err := r.Reconcile(ctx, listing("L1", "rented", 500), "available")
	require.NoError(t, err)

	plan, err := r.Reconcile(ctx, listing("L1", "sold", 900), "rented")
	require.NoError(t, err)
	assert.Equal(t, ActionRelabel, plan.Action)

	entry, err := store.GetEntry(ctx, "L1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "sold", entry.SaleType)
	assert.Equal(t, "500", entry.SalePrice.String())
	assert.Equal(t, "500", store.SellerRevenue("seller-1").Total.String())
}

func TestReconcile_BackToAvailableRemovesRevenue(t *testing.T) {
	ctx := context.Background()
	r, store := newReconciler()

	_, err := r.Reconcile(ctx, listing("L1", "sold", 1200.5), "available")
	require.NoError(t, err)
	_, err = r.Reconcile(ctx, listing("L2", "sold", 300), "available")
	require.NoError(t, err)

	_, err = r.Reconcile(ctx, listing("L1", "available", 1200.5), "sold")
	require.NoError(t, err)

	entry, err := store.GetEntry(ctx, "L1")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, "300", store.SellerRevenue("seller-1").Total.String())
	assert.Equal(t, 1, store.SellerRevenue("seller-1").Sales)
}

func TestRecomputeRevenue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	src := stubListings{
		byOwner: map[string][]listings.Snapshot{
			"seller-1": {listing("L1", "sold", 0), listing("L2", "available", 0), listing("L3", "rented", 0)},
		},
		byProject: map[string][]listings.Snapshot{
			"project-1": {listing("L3", "rented", 0)},
		},
	}
	r := NewReconciler(store, src)

	for id, price := range map[string]int64{"L1": 100, "L3": 250} {
		require.NoError(t, store.Execute(ctx, Plan{
			Action: ActionInsert,
			Entry:  Entry{ListingID: id, SaleType: "sold", SalePrice: decimal.NewFromInt(price)},
		}))
	}
	require.NoError(t, store.SetSellerRevenue(ctx, "seller-1", Revenue{Total: decimal.NewFromInt(99999), Sales: 7}))

	rev, err := r.RecomputeSellerRevenue(ctx, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, "350", rev.Total.String())
	assert.Equal(t, 2, rev.Sales)
	assert.Equal(t, rev, store.SellerRevenue("seller-1"))

	rev, err = r.RecomputeProjectRevenue(ctx, "project-1")
	require.NoError(t, err)
	assert.Equal(t, "250", rev.Total.String())
	assert.Equal(t, 1, rev.Sales)
}
