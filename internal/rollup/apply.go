package rollup

import (
	"fmt"
	"math"

	"github.com/gosight/gosight/analytics/internal/apperrors"
	"github.com/gosight/gosight/analytics/internal/listings"
)

// contribution is what one listing adds to every bucket it belongs to.
type contribution struct {
	Total  int
	Sold   int
	Value  float64
	Amount float64

	// SoldValue is the price counted only for strictly sold listings.
	SoldValue float64
}

func contributionOf(l *listings.Snapshot) contribution {
	c := contribution{Total: 1}
	switch listings.NormalizeStatus(l.Status) {
	case listings.StatusSold:
		c.Sold = 1
		c.Value = l.Price
		c.Amount = l.NormalizedPrice
		c.SoldValue = l.Price
	case listings.StatusRented:
		c.Value = l.Price
	}
	return c
}

func (c contribution) negate() contribution {
	return contribution{Total: -c.Total, Sold: -c.Sold, Value: -c.Value, Amount: -c.Amount, SoldValue: -c.SoldValue}
}

func (c contribution) minus(o contribution) contribution {
	return contribution{
		Total:     c.Total - o.Total,
		Sold:      c.Sold - o.Sold,
		Value:     c.Value - o.Value,
		Amount:    c.Amount - o.Amount,
		SoldValue: c.SoldValue - o.SoldValue,
	}
}

func (c contribution) isZero() bool {
	return c == contribution{}
}

// Apply merges one listing mutation into current and returns the new
// state. current is not modified. Percentages are recomputed from the
// resulting totals.
func Apply(current DailyRollup, m Mutation) (DailyRollup, error) {
	next := current.Clone()

	switch m.Op {
	case OpCreate:
		if m.New == nil {
			return current, apperrors.NewValidationError("create requires the new listing")
		}
		next.add(m.New, contributionOf(m.New))

	case OpDelete:
		snap := m.New
		if snap == nil {
			snap = m.Old
		}
		if snap == nil {
			return current, apperrors.NewValidationError("delete requires a listing snapshot")
		}
		next.add(snap, contributionOf(snap).negate())

	case OpUpdate:
		if m.New == nil || m.Old == nil {
			return current, apperrors.NewValidationError("update requires old and new listings")
		}
		if assignmentChanged(m.Old, m.New) {
			next.add(m.Old, contributionOf(m.Old).negate())
			next.add(m.New, contributionOf(m.New))
		} else if d := contributionOf(m.New).minus(contributionOf(m.Old)); !d.isZero() {
			next.add(m.New, d)
		}

	default:
		return current, apperrors.NewValidationError(fmt.Sprintf("unknown operation %q", m.Op))
	}

	next.recomputePercentages()
	return next, nil
}

// assignmentChanged reports whether the listing moved to different
// buckets, as opposed to changing status or price within them.
func assignmentChanged(old, new *listings.Snapshot) bool {
	return old.Categories != new.Categories ||
		old.Location != new.Location ||
		old.OwnerRole != new.OwnerRole
}

func (r *DailyRollup) add(l *listings.Snapshot, c contribution) {
	for _, b := range r.locationBuckets(l.Location) {
		addTo(b, c)
	}
	for _, b := range r.categoryBuckets(l.Categories) {
		addTo(b, c)
	}

	if l.OwnerRole != "" {
		role, ok := r.Roles[l.OwnerRole]
		if !ok {
			role = &RoleMetrics{}
			r.Roles[l.OwnerRole] = role
		}
		role.Listings = clampInt(role.Listings + c.Total)
		role.Sold = clampInt(role.Sold + c.Sold)
		role.SalesValue = clampFloat(role.SalesValue + c.SoldValue)
	}

	r.Sales.Total = clampInt(r.Sales.Total + c.Sold)
	r.Sales.SalesValue = clampFloat(r.Sales.SalesValue + c.SoldValue)
	r.Sales.AvgSalePrice = round2(divideOrZero(r.Sales.SalesValue, float64(r.Sales.Total)))
}

func addTo(b *Bucket, c contribution) {
	b.TotalListings = clampInt(b.TotalListings + c.Total)
	b.TotalSold = clampInt(b.TotalSold + c.Sold)
	b.SalesValue = clampFloat(b.SalesValue + c.Value)
	b.SalesAmount = clampFloat(b.SalesAmount + c.Amount)
}

// locationBuckets returns the buckets of every non-empty level of loc,
// creating them zeroed on first reference.
func (r *DailyRollup) locationBuckets(loc listings.Location) []*Bucket {
	var out []*Bucket
	levels := []struct {
		list *[]*Bucket
		name string
	}{
		{&r.Locations.Country, loc.Country},
		{&r.Locations.State, loc.State},
		{&r.Locations.City, loc.City},
		{&r.Locations.Town, loc.Town},
	}

	var parent []string
	for _, lvl := range levels {
		if lvl.name == "" {
			break
		}
		out = append(out, findOrCreate(lvl.list, lvl.name, parent))
		parent = append(append([]string(nil), parent...), lvl.name)
	}
	return out
}

func findOrCreate(list *[]*Bucket, name string, parent []string) *Bucket {
	for _, b := range *list {
		if b.Name == name && sameParent(b.Parent, parent) {
			return b
		}
	}
	b := &Bucket{Name: name, Parent: append([]string(nil), parent...)}
	*list = append(*list, b)
	return b
}

func sameParent(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (r *DailyRollup) categoryBuckets(c listings.Categories) []*Bucket {
	var out []*Bucket
	for _, dim := range []struct {
		m  map[string]*Bucket
		id string
	}{
		{r.Categories.Purpose, c.Purpose},
		{r.Categories.Type, c.Type},
		{r.Categories.Category, c.Category},
		{r.Categories.Subtype, c.Subtype},
	} {
		if dim.id == "" {
			continue
		}
		b, ok := dim.m[dim.id]
		if !ok {
			b = &Bucket{Name: dim.id}
			dim.m[dim.id] = b
		}
		out = append(out, b)
	}
	return out
}

// recomputePercentages sets every bucket's share of its dimension's total
// listings.
func (r *DailyRollup) recomputePercentages() {
	for _, list := range [][]*Bucket{r.Locations.Country, r.Locations.State, r.Locations.City, r.Locations.Town} {
		setPercentages(list)
	}
	for _, m := range []map[string]*Bucket{r.Categories.Purpose, r.Categories.Type, r.Categories.Category, r.Categories.Subtype} {
		list := make([]*Bucket, 0, len(m))
		for _, b := range m {
			list = append(list, b)
		}
		setPercentages(list)
	}
}

func setPercentages(list []*Bucket) {
	sum := 0
	for _, b := range list {
		sum += b.TotalListings
	}
	for _, b := range list {
		b.Percentage = round2(divideOrZero(float64(b.TotalListings), float64(sum)) * 100)
	}
}

// ApplyEngagement adds one run's platform activity to current.
func ApplyEngagement(current DailyRollup, e Engagement) DailyRollup {
	next := current.Clone()
	g := &next.Engagement
	g.Views += e.Views
	g.Impressions += e.Impressions
	g.ProfileViews += e.ProfileViews
	g.DevelopmentViews += e.DevelopmentViews
	g.Shares += e.Shares
	g.Saves += e.Saves
	g.VirtualTours += e.VirtualTours
	g.Leads += e.Leads
	g.ActiveSeekers += e.ActiveSeekers
	for k, v := range e.LeadsByKind {
		g.LeadsByKind[k] += v
	}
	return next
}

func clampInt(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// clampFloat also absorbs rounding residue around zero.
func clampFloat(v float64) float64 {
	if v < 1e-9 {
		return 0
	}
	return v
}

func divideOrZero(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
