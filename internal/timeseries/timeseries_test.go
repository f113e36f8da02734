package timeseries

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/analytics/internal/aggregator"
	"github.com/gosight/gosight/analytics/internal/events"
)

var day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func aggregate(raw ...events.RawEvent) *aggregator.Result {
	return aggregator.New(nil).Aggregate(raw, aggregator.Known{UserIDs: []string{"U1"}, DevelopmentIDs: []string{"D1"}})
}

func view(listing, distinct string, loggedIn bool) events.RawEvent {
	return events.RawEvent{
		Name:       string(events.PropertyView),
		DistinctID: distinct,
		Timestamp:  day.Add(time.Hour),
		Properties: map[string]interface{}{"listing_id": listing, "viewed_from": "search", "is_logged_in": loggedIn},
	}
}

func TestPeriodOf(t *testing.T) {
	p := PeriodOf(time.Date(2021, 1, 3, 15, 4, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC), p.Date)
	assert.Equal(t, uint8(53), p.Week)
	assert.Equal(t, uint8(1), p.Month)
	assert.Equal(t, uint8(1), p.Quarter)
	assert.Equal(t, uint16(2021), p.Year)

	assert.Equal(t, uint8(4), PeriodOf(time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC)).Quarter)
}

func TestBuildRows_ViewScenario(t *testing.T) {
	res := aggregate(view("L1", "a", true), view("L1", "b", false))

	rows := BuildRows("run-1", day, res, Active{}, day)
	require.Len(t, rows.Listings, 1)

	row := rows.Listings[0]
	assert.Equal(t, "L1", row.ListingID)
	assert.Equal(t, uint32(2), row.TotalViews)
	assert.Equal(t, uint32(1), row.LoggedInViews)
	assert.Equal(t, uint32(1), row.AnonymousViews)
	assert.Equal(t, uint32(2), row.ViewsSearch)
	assert.Equal(t, 0.0, row.ConversionRate)
}

func TestBuildRows_ZeroFillsActiveEntities(t *testing.T) {
	res := aggregate(view("L2", "a", false))

	rows := BuildRows("run-1", day, res, Active{
		ListingIDs:     []string{"L3", "L1", "L2"},
		UserIDs:        []string{"U1", "U2"},
		DevelopmentIDs: []string{"D1"},
	}, day)

	require.Len(t, rows.Listings, 3)
	assert.Equal(t, []string{"L1", "L2", "L3"}, []string{rows.Listings[0].ListingID, rows.Listings[1].ListingID, rows.Listings[2].ListingID})
	require.Len(t, rows.Users, 2)
	require.Len(t, rows.Developments, 1)

	for _, r := range rows.Listings {
		for _, v := range []float64{r.ConversionRate, r.LeadToSaleRate, r.AvgSalePrice} {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			assert.Equal(t, 0.0, v)
		}
	}
	assert.Equal(t, uint32(0), rows.Listings[0].TotalViews)
	assert.Equal(t, uint32(1), rows.Listings[1].TotalViews)
	assert.Equal(t, 0.0, rows.Users[1].ConversionRate)
}

func TestBuildRows_DerivedRatios(t *testing.T) {
	evs := []events.RawEvent{
		view("L1", "a", false), view("L1", "b", false), view("L1", "c", false),
		{Name: string(events.PropertyContact), DistinctID: "a", Timestamp: day, Properties: map[string]interface{}{"listing_id": "L1"}},
		{Name: string(events.PropertySold), DistinctID: "a", Timestamp: day, Properties: map[string]interface{}{"listing_id": "L1", "sale_price": 1000.5}},
	}

	row := BuildRows("run-1", day, aggregate(evs...), Active{}, day).Listings[0]
	assert.Equal(t, 33.33, row.ConversionRate)
	assert.Equal(t, 100.0, row.LeadToSaleRate)
	assert.Equal(t, 1000.5, row.AvgSalePrice)
}

type stubResolver struct {
	calls int
	asked []string
	out   map[string]Lister
	err   error
}

func (s *stubResolver) ResolveListers(_ context.Context, ids []string) (map[string]Lister, error) {
	s.calls++
	s.asked = ids
	return s.out, s.err
}

func lead(name events.Name, listing, seeker string, at time.Time, extra map[string]interface{}) events.RawEvent {
	props := map[string]interface{}{"listing_id": listing, "user_id": seeker}
	for k, v := range extra {
		props[k] = v
	}
	return events.RawEvent{Name: string(name), DistinctID: seeker, Timestamp: at, Properties: props}
}

func TestBuildLeads_BatchedLookupAndSorting(t *testing.T) {
	res := aggregate(
		lead(events.MessageSent, "L1", "S1", day.Add(2*time.Hour), nil),
		lead(events.PhoneReveal, "L1", "S1", day.Add(time.Hour), nil),
		lead(events.PhoneReveal, "L1", "S2", day.Add(time.Hour), nil),
		lead(events.EmailInquiry, "L2", "S1", day, map[string]interface{}{"lister_id": "U9"}),
		lead(events.WhatsappClick, "L3", "S3", day, nil),
	)
	resolver := &stubResolver{out: map[string]Lister{"L1": {ID: "U1", Type: "agent"}}}

	records, skipped, err := BuildLeads(context.Background(), "run-1", day, res.Leads, resolver)
	require.NoError(t, err)

	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, []string{"L1", "L3"}, resolver.asked)
	assert.Equal(t, 1, skipped)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "L1", first.ListingID)
	assert.Equal(t, "S1", first.SeekerID)
	assert.Equal(t, "U1", first.ListerID)
	assert.Equal(t, "agent", first.ListerType)
	require.Len(t, first.Actions, 2)
	assert.Equal(t, "phone", first.Actions[0].Type)
	assert.Equal(t, "message", first.Actions[1].Type)
	assert.Equal(t, day.Add(time.Hour), first.FirstActionAt)
	assert.Equal(t, day.Add(2*time.Hour), first.LastActionAt)
	assert.Equal(t, LeadStatusNew, first.Status)

	assert.Equal(t, "U9", records[2].ListerID)
}

type stubSink struct {
	listingBatches int
	failListings   bool
	users          []UserRow
	devs           []DevelopmentRow
	leads          []LeadRecord
}

func (s *stubSink) InsertListingRows(_ context.Context, rows []ListingRow) error {
	s.listingBatches++
	if s.failListings {
		return errors.New("clickhouse down")
	}
	return nil
}

func (s *stubSink) InsertUserRows(_ context.Context, rows []UserRow) error {
	s.users = append(s.users, rows...)
	return nil
}

func (s *stubSink) InsertDevelopmentRows(_ context.Context, rows []DevelopmentRow) error {
	s.devs = append(s.devs, rows...)
	return nil
}

func (s *stubSink) InsertLeads(_ context.Context, leads []LeadRecord) error {
	s.leads = append(s.leads, leads...)
	return nil
}

func TestWriter_PartialFailureContinues(t *testing.T) {
	sink := &stubSink{failListings: true}
	w := NewWriter(sink, sink, &stubResolver{}, 2)

	res := aggregate(
		view("L1", "a", false), view("L2", "a", false), view("L3", "a", false),
		lead(events.PhoneReveal, "L1", "S1", day, map[string]interface{}{"lister_id": "U1"}),
	)
	report := w.Write(context.Background(), "run-1", day, res, Active{UserIDs: []string{"U1"}})

	assert.True(t, report.Failed())
	assert.Equal(t, 2, sink.listingBatches)
	assert.Equal(t, 3, report[TableListings].Rows)
	assert.Equal(t, 0, report[TableListings].Inserted)
	assert.Len(t, report[TableListings].Errors, 2)

	assert.Equal(t, 1, report.Inserted(TableUsers))
	assert.Equal(t, 1, report.Inserted(TableDevelopments))
	assert.Equal(t, 1, report.Inserted(TableLeads))
	assert.Empty(t, report[TableLeads].Errors)
	assert.Len(t, sink.leads, 1)
}

func TestWriter_ResolverFailureRecorded(t *testing.T) {
	sink := &stubSink{}
	w := NewWriter(sink, sink, &stubResolver{err: errors.New("pg down")}, 100)

	res := aggregate(lead(events.PhoneReveal, "L1", "S1", day, nil))
	report := w.Write(context.Background(), "run-1", day, res, Active{})

	assert.Len(t, report[TableLeads].Errors, 1)
	assert.Equal(t, 1, report.Inserted(TableListings))
	assert.Empty(t, sink.leads)
}
