package aggregator

import (
	"time"

	"github.com/gosight/gosight/analytics/internal/events"
)

// Views counts view events of one entity.
type Views struct {
	Total     int
	LoggedIn  int
	Anonymous int
	BySource  map[string]int
	ByDevice  map[string]int
	ByCountry map[string]int

	visitors map[string]struct{}
}

func newViews() Views {
	return Views{
		BySource:  map[string]int{},
		ByDevice:  map[string]int{},
		ByCountry: map[string]int{},
		visitors:  map[string]struct{}{},
	}
}

func (v *Views) add(visitor events.Visitor, source string) {
	v.Total++
	if visitor.LoggedIn {
		v.LoggedIn++
	} else {
		v.Anonymous++
	}
	if visitor.ID != "" {
		v.visitors[visitor.ID] = struct{}{}
	}
	if source != "" {
		v.BySource[source]++
	}
	if visitor.Device != "" {
		v.ByDevice[visitor.Device]++
	}
	if visitor.Country != "" {
		v.ByCountry[visitor.Country]++
	}
}

// Unique returns the number of distinct visitor ids seen.
func (v Views) Unique() int { return len(v.visitors) }

type Impressions struct {
	Total       int
	ByPlacement map[string]int
}

func (i *Impressions) add(placement string) {
	i.Total++
	if i.ByPlacement == nil {
		i.ByPlacement = map[string]int{}
	}
	i.ByPlacement[placement]++
}

type Engagement struct {
	Shares       int
	Saves        int
	Unsaves      int
	VirtualTours int
}

// Leads counts lead-producing actions and the seekers behind them.
type Leads struct {
	Total  int
	ByKind map[events.LeadKind]int

	seekers map[string]struct{}
}

func newLeads() Leads {
	return Leads{ByKind: map[events.LeadKind]int{}, seekers: map[string]struct{}{}}
}

func (l *Leads) add(kind events.LeadKind, seeker string) {
	l.Total++
	l.ByKind[kind]++
	if seeker != "" {
		l.seekers[seeker] = struct{}{}
	}
}

func (l Leads) UniqueSeekers() int { return len(l.seekers) }

type Sales struct {
	Count int
	Value float64
}

func (s *Sales) add(amount float64) {
	s.Count++
	s.Value += amount
}

type ListingAccumulator struct {
	ListingID     string
	ListerID      string
	ListerType    string
	DevelopmentID string

	Views       Views
	Impressions Impressions
	Engagement  Engagement
	Leads       Leads
	Sales       Sales
}

func newListing(ref events.ListingRef) *ListingAccumulator {
	return &ListingAccumulator{
		ListingID:     ref.ListingID,
		ListerID:      ref.ListerID,
		ListerType:    ref.ListerType,
		DevelopmentID: ref.DevelopmentID,
		Views:         newViews(),
		Leads:         newLeads(),
	}
}

// UserAccumulator holds profile activity plus listing activity attributed
// to the user as lister.
type UserAccumulator struct {
	UserID string

	ProfileViews       Views
	ProfileImpressions int
	ListingViews       int
	ListingImpressions int
	Leads              Leads
	Sales              Sales
}

func newUser(id string) *UserAccumulator {
	return &UserAccumulator{UserID: id, ProfileViews: newViews(), Leads: newLeads()}
}

type DevelopmentAccumulator struct {
	DevelopmentID string

	Views        Views
	Impressions  int
	ListingViews int
	Leads        Leads
	Sales        Sales
}

func newDevelopment(id string) *DevelopmentAccumulator {
	return &DevelopmentAccumulator{DevelopmentID: id, Views: newViews(), Leads: newLeads()}
}

// LeadKey identifies one seeker's interaction with one listing.
type LeadKey struct {
	ListingID string
	SeekerID  string
}

type Action struct {
	Kind      events.LeadKind
	Timestamp time.Time
	Metadata  map[string]string
}

// LeadActivity is every lead action of one seeker on one listing in a run.
type LeadActivity struct {
	ListingID  string
	SeekerID   string
	ListerID   string
	ListerType string
	Actions    []Action
}
