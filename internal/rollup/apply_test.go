package rollup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/analytics/internal/listings"
)

var today = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func snapshot(id, category, status string, price, normalized float64) *listings.Snapshot {
	return &listings.Snapshot{
		ID:              id,
		OwnerID:         "owner-" + id,
		OwnerRole:       "agent",
		Categories:      listings.Categories{Purpose: "sale", Category: category},
		Location:        listings.Location{Country: "NG", State: "Lagos", City: "Ikeja"},
		Status:          status,
		Price:           price,
		NormalizedPrice: normalized,
	}
}

func mustApply(t *testing.T, r DailyRollup, m Mutation) DailyRollup {
	t.Helper()
	next, err := Apply(r, m)
	require.NoError(t, err)
	return next
}

func TestApply_CreateSoldThenSecondCategory(t *testing.T) {
	r := mustApply(t, New(today), Mutation{Op: OpCreate, New: snapshot("L1", "C", "sold", 1000, 900)})

	c := r.Categories.Category["C"]
	require.NotNil(t, c)
	assert.Equal(t, 1, c.TotalListings)
	assert.Equal(t, 1, c.TotalSold)
	assert.Equal(t, 1000.0, c.SalesValue)
	assert.Equal(t, 900.0, c.SalesAmount)
	assert.Equal(t, 100.0, c.Percentage)

	r = mustApply(t, r, Mutation{Op: OpCreate, New: snapshot("L2", "D", "sold", 1000, 900)})
	assert.Equal(t, 50.0, r.Categories.Category["C"].Percentage)
	assert.Equal(t, 50.0, r.Categories.Category["D"].Percentage)
	assert.Equal(t, 100.0, r.Categories.Purpose["sale"].Percentage)
	assert.Equal(t, 2, r.Sales.Total)
	assert.Equal(t, 1000.0, r.Sales.AvgSalePrice)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	base := mustApply(t, New(today), Mutation{Op: OpCreate, New: snapshot("L1", "C", "available", 100, 90)})
	_ = mustApply(t, base, Mutation{Op: OpCreate, New: snapshot("L2", "C", "available", 100, 90)})

	assert.Equal(t, 1, base.Categories.Category["C"].TotalListings)
	assert.Len(t, base.Locations.Country, 1)
	assert.Equal(t, 1, base.Locations.Country[0].TotalListings)
}

func TestApply_CreateDeleteRoundTrip(t *testing.T) {
	before := mustApply(t, New(today), Mutation{Op: OpCreate, New: snapshot("L0", "C", "available", 500, 450)})
	l := snapshot("L1", "D", "sold", 1234.56, 1100.1)

	after := mustApply(t, before, Mutation{Op: OpCreate, New: l})
	after = mustApply(t, after, Mutation{Op: OpDelete, New: l})

	assert.Equal(t, before.Categories.Category["C"].TotalListings, after.Categories.Category["C"].TotalListings)
	assert.Equal(t, 100.0, after.Categories.Category["C"].Percentage)

	d := after.Categories.Category["D"]
	require.NotNil(t, d)
	assert.Equal(t, 0, d.TotalListings)
	assert.Equal(t, 0, d.TotalSold)
	assert.InDelta(t, 0, d.SalesValue, 1e-6)
	assert.InDelta(t, 0, d.SalesAmount, 1e-6)
	assert.Equal(t, 0.0, d.Percentage)

	assert.Equal(t, before.Locations.City[0].TotalListings, after.Locations.City[0].TotalListings)
	assert.Equal(t, 0, after.Sales.Total)
	assert.Equal(t, 0.0, after.Sales.AvgSalePrice)
}

func TestApply_DeleteClampsAtZero(t *testing.T) {
	r := mustApply(t, New(today), Mutation{Op: OpDelete, Old: snapshot("L1", "C", "sold", 1000, 900)})

	c := r.Categories.Category["C"]
	require.NotNil(t, c)
	assert.Equal(t, 0, c.TotalListings)
	assert.Equal(t, 0, c.TotalSold)
	assert.Equal(t, 0.0, c.SalesValue)
	assert.Equal(t, 0, r.Roles["agent"].Listings)
}

func TestApply_RentedAddsValueWithoutSale(t *testing.T) {
	r := mustApply(t, New(today), Mutation{Op: OpCreate, New: snapshot("L1", "C", "rented", 300, 270)})

	c := r.Categories.Category["C"]
	assert.Equal(t, 0, c.TotalSold)
	assert.Equal(t, 300.0, c.SalesValue)
	assert.Equal(t, 0.0, c.SalesAmount)
	assert.Equal(t, 0, r.Sales.Total)
}

func TestApply_UpdateCategoryIsFullSwap(t *testing.T) {
	old := snapshot("L1", "C", "sold", 1000, 900)
	r := mustApply(t, New(today), Mutation{Op: OpCreate, New: old})

	moved := *old
	moved.Categories.Category = "D"
	moved.Location.City = "Lekki"
	r = mustApply(t, r, Mutation{Op: OpUpdate, Old: old, New: &moved})

	assert.Equal(t, 0, r.Categories.Category["C"].TotalListings)
	assert.Equal(t, 0.0, r.Categories.Category["C"].SalesValue)
	assert.Equal(t, 1, r.Categories.Category["D"].TotalListings)
	assert.Equal(t, 100.0, r.Categories.Category["D"].Percentage)
	assert.Equal(t, 1, r.Categories.Purpose["sale"].TotalListings)

	require.Len(t, r.Locations.City, 2)
	assert.Equal(t, "Ikeja", r.Locations.City[0].Name)
	assert.Equal(t, 0, r.Locations.City[0].TotalListings)
	assert.Equal(t, "Lekki", r.Locations.City[1].Name)
	assert.Equal(t, []string{"NG", "Lagos"}, r.Locations.City[1].Parent)
	assert.Equal(t, 100.0, r.Locations.City[1].Percentage)
	assert.Equal(t, 1, r.Locations.Country[0].TotalListings)
}

func TestApply_UpdateStatusAppliesDifference(t *testing.T) {
	old := snapshot("L1", "C", "available", 1000, 900)
	r := mustApply(t, New(today), Mutation{Op: OpCreate, New: old})

	sold := *old
	sold.Status = "sold"
	r = mustApply(t, r, Mutation{Op: OpUpdate, Old: old, New: &sold})

	c := r.Categories.Category["C"]
	assert.Equal(t, 1, c.TotalListings)
	assert.Equal(t, 1, c.TotalSold)
	assert.Equal(t, 1000.0, c.SalesValue)
	assert.Equal(t, 1, r.Sales.Total)

	repriced := sold
	repriced.Price = 1200
	repriced.NormalizedPrice = 1080
	r = mustApply(t, r, Mutation{Op: OpUpdate, Old: &sold, New: &repriced})

	c = r.Categories.Category["C"]
	assert.Equal(t, 1, c.TotalListings)
	assert.Equal(t, 1200.0, c.SalesValue)
	assert.Equal(t, 1080.0, c.SalesAmount)
	assert.Equal(t, 1200.0, r.Roles["agent"].SalesValue)
	assert.Equal(t, 1200.0, r.Sales.AvgSalePrice)
}

func TestApply_Validation(t *testing.T) {
	_, err := Apply(New(today), Mutation{Op: OpCreate})
	assert.Error(t, err)
	_, err = Apply(New(today), Mutation{Op: OpUpdate, New: snapshot("L1", "C", "sold", 1, 1)})
	assert.Error(t, err)
	_, err = Apply(New(today), Mutation{Op: "upsert", New: snapshot("L1", "C", "sold", 1, 1)})
	assert.Error(t, err)
}

func TestApplyEngagement(t *testing.T) {
	r := ApplyEngagement(New(today), Engagement{Views: 3, Leads: 2, LeadsByKind: map[string]int{"phone": 2}, ActiveSeekers: 1})
	r = ApplyEngagement(r, Engagement{Views: 1, LeadsByKind: map[string]int{"email": 1}})

	assert.Equal(t, 4, r.Engagement.Views)
	assert.Equal(t, 2, r.Engagement.Leads)
	assert.Equal(t, map[string]int{"phone": 2, "email": 1}, r.Engagement.LeadsByKind)
}
