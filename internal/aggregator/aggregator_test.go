package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/analytics/internal/events"
)

func raw(name events.Name, distinct string, at time.Time, props map[string]interface{}) events.RawEvent {
	return events.RawEvent{Name: string(name), DistinctID: distinct, Timestamp: at, Properties: props}
}

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestAggregate_ListingViews(t *testing.T) {
	res := New(nil).Aggregate([]events.RawEvent{
		raw(events.PropertyView, "u-1", t0, map[string]interface{}{"listing_id": "L1", "viewed_from": "search", "is_logged_in": true}),
		raw(events.PropertyView, "anon-7", t0, map[string]interface{}{"listing_id": "L1", "viewed_from": "search"}),
	}, Known{})

	require.Contains(t, res.Listings, "L1")
	l := res.Listings["L1"]
	assert.Equal(t, 2, l.Views.Total)
	assert.Equal(t, 1, l.Views.LoggedIn)
	assert.Equal(t, 1, l.Views.Anonymous)
	assert.Equal(t, 2, l.Views.BySource[events.SourceSearch])
	assert.Equal(t, 2, l.Views.Unique())
	assert.Equal(t, 0, l.Leads.Total)
	assert.Equal(t, 2, res.Processed)
}

func TestAggregate_UniqueVisitorsIgnoreOrder(t *testing.T) {
	evs := []events.RawEvent{
		raw(events.PropertyView, "a", t0, map[string]interface{}{"listing_id": "L1"}),
		raw(events.PropertyView, "b", t0, map[string]interface{}{"listing_id": "L1"}),
		raw(events.PropertyView, "a", t0, map[string]interface{}{"listing_id": "L1"}),
	}
	reversed := []events.RawEvent{evs[2], evs[1], evs[0]}

	a := New(nil)
	assert.Equal(t, 2, a.Aggregate(evs, Known{}).Listings["L1"].Views.Unique())
	assert.Equal(t, 2, a.Aggregate(reversed, Known{}).Listings["L1"].Views.Unique())
}

func TestAggregate_DropsEventsWithoutEntity(t *testing.T) {
	res := New(nil).Aggregate([]events.RawEvent{
		raw(events.PropertyView, "a", t0, map[string]interface{}{"title": "no id"}),
		raw(events.ProfileView, "a", t0, map[string]interface{}{"profile_id": "stranger"}),
		raw(events.DevelopmentView, "a", t0, map[string]interface{}{"development_id": "D9"}),
		raw("page_scroll", "a", t0, nil),
	}, Known{UserIDs: []string{"U1"}, DevelopmentIDs: []string{"D1"}})

	assert.Empty(t, res.Listings)
	assert.Len(t, res.Users, 1)
	assert.NotContains(t, res.Users, "stranger")
	assert.NotContains(t, res.Developments, "D9")
	assert.Equal(t, 3, res.Dropped)
	assert.Equal(t, 1, res.Unrecognized)
	assert.Equal(t, 0, res.Processed)
}

func TestAggregate_ListingActivityAttributedToKnownEntities(t *testing.T) {
	props := func(extra map[string]interface{}) map[string]interface{} {
		p := map[string]interface{}{"listing_id": "L1", "lister_id": "U1", "development_id": "D1"}
		for k, v := range extra {
			p[k] = v
		}
		return p
	}

	res := New(nil).Aggregate([]events.RawEvent{
		raw(events.PropertyView, "s1", t0, props(nil)),
		raw(events.PropertyImpression, "s1", t0, props(map[string]interface{}{"impression_type": "featured"})),
		raw(events.PhoneReveal, "s1", t0, props(map[string]interface{}{"user_id": "S1"})),
		raw(events.PropertySold, "s1", t0, props(map[string]interface{}{"sale_price": 1000})),
		raw(events.ProfileView, "s2", t0, map[string]interface{}{"profile_id": "U1"}),
		raw(events.DevelopmentImpression, "s2", t0, map[string]interface{}{"projectId": "D1"}),
	}, Known{UserIDs: []string{"U1"}, DevelopmentIDs: []string{"D1"}})

	u := res.Users["U1"]
	assert.Equal(t, 1, u.ListingViews)
	assert.Equal(t, 1, u.ListingImpressions)
	assert.Equal(t, 1, u.Leads.Total)
	assert.Equal(t, 1, u.Leads.UniqueSeekers())
	assert.Equal(t, 1, u.Sales.Count)
	assert.Equal(t, 1000.0, u.Sales.Value)
	assert.Equal(t, 1, u.ProfileViews.Total)

	d := res.Developments["D1"]
	assert.Equal(t, 1, d.ListingViews)
	assert.Equal(t, 1, d.Impressions)
	assert.Equal(t, 1, d.Leads.Total)
	assert.Equal(t, 1, d.Sales.Count)

	l := res.Listings["L1"]
	assert.Equal(t, 1, l.Impressions.ByPlacement[events.PlacementFeatured])
	assert.Equal(t, 1, l.Leads.ByKind[events.LeadPhone])
}

func TestAggregate_LeadsGroupedBySeeker(t *testing.T) {
	res := New(nil).Aggregate([]events.RawEvent{
		raw(events.MessageSent, "d1", t0.Add(time.Minute), map[string]interface{}{"listing_id": "L1", "user_id": "S1", "message_type": "question"}),
		raw(events.PhoneReveal, "d1", t0, map[string]interface{}{"listing_id": "L1", "user_id": "S1", "lister_id": "U1"}),
		raw(events.EmailInquiry, "d2", t0, map[string]interface{}{"listing_id": "L1"}),
	}, Known{})

	require.Len(t, res.Leads, 2)
	act := res.Leads[LeadKey{ListingID: "L1", SeekerID: "S1"}]
	require.NotNil(t, act)
	assert.Len(t, act.Actions, 2)
	assert.Equal(t, "U1", act.ListerID)
	assert.Equal(t, "question", act.Actions[0].Metadata["message_type"])

	anon := res.Leads[LeadKey{ListingID: "L1", SeekerID: "d2"}]
	require.NotNil(t, anon)
	assert.Equal(t, events.LeadEmail, anon.Actions[0].Kind)
}

func TestResult_Totals(t *testing.T) {
	res := New(nil).Aggregate([]events.RawEvent{
		raw(events.PropertyView, "a", t0, map[string]interface{}{"listing_id": "L1"}),
		raw(events.PropertyView, "b", t0, map[string]interface{}{"listing_id": "L2"}),
		raw(events.PropertySave, "b", t0, map[string]interface{}{"listing_id": "L2"}),
		raw(events.PropertyContact, "b", t0, map[string]interface{}{"listing_id": "L1"}),
		raw(events.PropertyContact, "b", t0, map[string]interface{}{"listing_id": "L2"}),
	}, Known{})

	tot := res.Totals()
	assert.Equal(t, 2, tot.Views)
	assert.Equal(t, 1, tot.Saves)
	assert.Equal(t, 2, tot.Leads)
	assert.Equal(t, 2, tot.LeadsByKind[events.LeadContact])
	assert.Equal(t, 1, tot.ActiveSeekers)
}
