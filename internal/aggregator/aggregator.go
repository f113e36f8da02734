// Package aggregator reduces a window of raw events into per-entity
// accumulators. It performs no I/O.
package aggregator

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/analytics/internal/events"
)

// Known lists the user and development ids allowed to receive
// accumulators. Listing accumulators are created on first sight.
type Known struct {
	UserIDs        []string
	DevelopmentIDs []string
}

type Result struct {
	Listings     map[string]*ListingAccumulator
	Users        map[string]*UserAccumulator
	Developments map[string]*DevelopmentAccumulator
	Leads        map[LeadKey]*LeadActivity

	Processed    int
	Dropped      int
	Unrecognized int
}

// Totals are platform-wide counters for one run.
type Totals struct {
	Views            int
	Impressions      int
	ProfileViews     int
	DevelopmentViews int
	Shares           int
	Saves            int
	VirtualTours     int
	Leads            int
	LeadsByKind      map[events.LeadKind]int
	ActiveSeekers    int
	Sales            int
	SalesValue       float64
}

type Aggregator struct {
	parser *events.Parser
}

func New(parser *events.Parser) *Aggregator {
	if parser == nil {
		parser = events.NewParser(nil)
	}
	return &Aggregator{parser: parser}
}

// Aggregate runs one linear pass over raw. Events without a resolvable
// entity id, or naming a user or development outside known, are dropped.
func (a *Aggregator) Aggregate(raw []events.RawEvent, known Known) *Result {
	res := &Result{
		Listings:     map[string]*ListingAccumulator{},
		Users:        make(map[string]*UserAccumulator, len(known.UserIDs)),
		Developments: make(map[string]*DevelopmentAccumulator, len(known.DevelopmentIDs)),
		Leads:        map[LeadKey]*LeadActivity{},
	}
	for _, id := range known.UserIDs {
		res.Users[id] = newUser(id)
	}
	for _, id := range known.DevelopmentIDs {
		res.Developments[id] = newDevelopment(id)
	}

	for _, r := range raw {
		ev, err := a.parser.Parse(r)
		if err != nil {
			res.Dropped++
			if errors.Is(err, events.ErrMissingEntityID) {
				log.Debug().Str("event", r.Name).Str("distinct_id", r.DistinctID).Msg("Dropping event without entity id")
			}
			continue
		}
		if !res.apply(ev) {
			continue
		}
		res.Processed++
	}

	return res
}

func (res *Result) apply(ev events.Event) bool {
	switch e := ev.(type) {
	case events.ListingView:
		l := res.listing(e.Listing)
		l.Views.add(e.Visitor, e.Source)
		if u := res.Users[e.Listing.ListerID]; u != nil {
			u.ListingViews++
		}
		if d := res.Developments[e.Listing.DevelopmentID]; d != nil {
			d.ListingViews++
		}

	case events.ListingImpression:
		l := res.listing(e.Listing)
		l.Impressions.add(e.Placement)
		if u := res.Users[e.Listing.ListerID]; u != nil {
			u.ListingImpressions++
		}

	case events.ListingEngagement:
		l := res.listing(e.Listing)
		switch e.Name {
		case events.PropertyShare:
			l.Engagement.Shares++
		case events.PropertySave:
			l.Engagement.Saves++
		case events.PropertyUnsave:
			l.Engagement.Unsaves++
		case events.VirtualTourView:
			l.Engagement.VirtualTours++
		}

	case events.LeadAction:
		l := res.listing(e.Listing)
		l.Leads.add(e.Kind, e.SeekerID)
		if u := res.Users[e.Listing.ListerID]; u != nil {
			u.Leads.add(e.Kind, e.SeekerID)
		}
		if d := res.Developments[e.Listing.DevelopmentID]; d != nil {
			d.Leads.add(e.Kind, e.SeekerID)
		}
		res.addLeadAction(l, e)

	case events.Sale:
		l := res.listing(e.Listing)
		l.Sales.add(e.Amount)
		if u := res.Users[e.Listing.ListerID]; u != nil {
			u.Sales.add(e.Amount)
		}
		if d := res.Developments[e.Listing.DevelopmentID]; d != nil {
			d.Sales.add(e.Amount)
		}

	case events.ProfileViewEvent:
		u := res.Users[e.ProfileID]
		if u == nil {
			return res.drop(e.Name, e.ProfileID)
		}
		u.ProfileViews.add(e.Visitor, "")

	case events.ProfileImpressionEvent:
		u := res.Users[e.ProfileID]
		if u == nil {
			return res.drop(e.Name, e.ProfileID)
		}
		u.ProfileImpressions++

	case events.DevelopmentViewEvent:
		d := res.Developments[e.DevelopmentID]
		if d == nil {
			return res.drop(e.Name, e.DevelopmentID)
		}
		d.Views.add(e.Visitor, "")

	case events.DevelopmentImpressionEvent:
		d := res.Developments[e.DevelopmentID]
		if d == nil {
			return res.drop(e.Name, e.DevelopmentID)
		}
		d.Impressions++

	default:
		res.Unrecognized++
		return false
	}
	return true
}

func (res *Result) drop(name events.Name, id string) bool {
	res.Dropped++
	log.Debug().Str("event", string(name)).Str("entity_id", id).Msg("Dropping event for unknown entity")
	return false
}

// listing returns the accumulator for ref, creating it on first sight and
// filling lister details the first event lacked.
func (res *Result) listing(ref events.ListingRef) *ListingAccumulator {
	l, ok := res.Listings[ref.ListingID]
	if !ok {
		l = newListing(ref)
		res.Listings[ref.ListingID] = l
		return l
	}
	if l.ListerID == "" {
		l.ListerID = ref.ListerID
	}
	if l.ListerType == "" {
		l.ListerType = ref.ListerType
	}
	if l.DevelopmentID == "" {
		l.DevelopmentID = ref.DevelopmentID
	}
	return l
}

func (res *Result) addLeadAction(l *ListingAccumulator, e events.LeadAction) {
	if e.SeekerID == "" {
		return
	}

	key := LeadKey{ListingID: l.ListingID, SeekerID: e.SeekerID}
	act, ok := res.Leads[key]
	if !ok {
		act = &LeadActivity{ListingID: l.ListingID, SeekerID: e.SeekerID}
		res.Leads[key] = act
	}
	if act.ListerID == "" {
		act.ListerID = l.ListerID
		act.ListerType = l.ListerType
	}
	act.Actions = append(act.Actions, Action{
		Kind:      e.Kind,
		Timestamp: e.Timestamp,
		Metadata:  e.Metadata,
	})
}

func (res *Result) Totals() Totals {
	t := Totals{LeadsByKind: map[events.LeadKind]int{}}
	seekers := map[string]struct{}{}

	for _, l := range res.Listings {
		t.Views += l.Views.Total
		t.Impressions += l.Impressions.Total
		t.Shares += l.Engagement.Shares
		t.Saves += l.Engagement.Saves
		t.VirtualTours += l.Engagement.VirtualTours
		t.Leads += l.Leads.Total
		for k, n := range l.Leads.ByKind {
			t.LeadsByKind[k] += n
		}
		for s := range l.Leads.seekers {
			seekers[s] = struct{}{}
		}
		t.Sales += l.Sales.Count
		t.SalesValue += l.Sales.Value
	}
	for _, u := range res.Users {
		t.ProfileViews += u.ProfileViews.Total
	}
	for _, d := range res.Developments {
		t.DevelopmentViews += d.Views.Total
	}
	t.ActiveSeekers = len(seekers)
	return t
}
