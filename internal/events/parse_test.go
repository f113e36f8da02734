package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ListingViewAliases(t *testing.T) {
	p := NewParser(nil)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ev, err := p.Parse(RawEvent{
		Name:       "property_view",
		DistinctID: "anon-1",
		Timestamp:  ts,
		Properties: map[string]interface{}{
			"propertyId":  "L1",
			"listerId":    "U1",
			"viewedFrom":  "search",
			"isLoggedIn":  true,
			"device_type": "Mobile",
		},
	})
	require.NoError(t, err)

	view, ok := ev.(ListingView)
	require.True(t, ok)
	assert.Equal(t, "L1", view.Listing.ListingID)
	assert.Equal(t, "U1", view.Listing.ListerID)
	assert.Equal(t, SourceSearch, view.Source)
	assert.True(t, view.Visitor.LoggedIn)
	assert.Equal(t, "anon-1", view.Visitor.ID)
	assert.Equal(t, ts, view.OccurredAt())
}

func TestParse_MissingSourceDefaultsToDirect(t *testing.T) {
	p := NewParser(nil)

	ev, err := p.Parse(RawEvent{
		Name:       "property_view",
		Properties: map[string]interface{}{"listing_id": "L1"},
	})
	require.NoError(t, err)
	assert.Equal(t, SourceDirect, ev.(ListingView).Source)

	ev, err = p.Parse(RawEvent{
		Name:       "property_view",
		Properties: map[string]interface{}{"listing_id": "L1", "viewed_from": "newsletter"},
	})
	require.NoError(t, err)
	assert.Equal(t, SourceOther, ev.(ListingView).Source)
}

func TestParse_MissingEntityID(t *testing.T) {
	p := NewParser(nil)

	tests := []struct {
		name  string
		event Name
	}{
		{"listing view", PropertyView},
		{"lead", PhoneReveal},
		{"profile", ProfileView},
		{"development", DevelopmentImpression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(RawEvent{Name: string(tt.event), Properties: map[string]interface{}{"foo": "bar"}})
			assert.ErrorIs(t, err, ErrMissingEntityID)
		})
	}
}

func TestParse_LeadAction(t *testing.T) {
	p := NewParser(nil)

	ev, err := p.Parse(RawEvent{
		Name:       "appointment_booked",
		DistinctID: "d-9",
		Properties: map[string]interface{}{
			"listing_id":       float64(42),
			"appointmentType":  "viewing",
			"appointment_date": "2024-05-03",
		},
	})
	require.NoError(t, err)

	lead, ok := ev.(LeadAction)
	require.True(t, ok)
	assert.Equal(t, "42", lead.Listing.ListingID)
	assert.Equal(t, LeadAppointment, lead.Kind)
	assert.Equal(t, "d-9", lead.SeekerID)
	assert.Equal(t, map[string]string{
		"appointment_type": "viewing",
		"appointment_date": "2024-05-03",
	}, lead.Metadata)
}

func TestParse_SaleAndUnrecognized(t *testing.T) {
	p := NewParser(nil)

	ev, err := p.Parse(RawEvent{
		Name:       "property_rented",
		Properties: map[string]interface{}{"listing_id": "L2", "sale_price": "1500.5"},
	})
	require.NoError(t, err)
	sale := ev.(Sale)
	assert.Equal(t, "rented", sale.SaleType)
	assert.Equal(t, 1500.5, sale.Amount)

	ev, err = p.Parse(RawEvent{Name: "page_scroll", Properties: map[string]interface{}{"depth": 3}})
	require.NoError(t, err)
	un, ok := ev.(Unrecognized)
	require.True(t, ok)
	assert.Equal(t, Name("page_scroll"), un.EventName())
}

func TestParse_ProfileAndDevelopmentVariants(t *testing.T) {
	p := NewParser(nil)

	tests := []struct {
		name  Name
		props map[string]interface{}
		check func(t *testing.T, ev Event)
	}{
		{ProfileView, map[string]interface{}{"profileId": "U1"}, func(t *testing.T, ev Event) {
			v, ok := ev.(ProfileViewEvent)
			require.True(t, ok)
			assert.Equal(t, "U1", v.ProfileID)
			assert.Equal(t, "seeker-1", v.Visitor.ID)
		}},
		{ProfileImpression, map[string]interface{}{"profile_id": "U2"}, func(t *testing.T, ev Event) {
			v, ok := ev.(ProfileImpressionEvent)
			require.True(t, ok)
			assert.Equal(t, "U2", v.ProfileID)
		}},
		{DevelopmentView, map[string]interface{}{"development_id": "D1"}, func(t *testing.T, ev Event) {
			v, ok := ev.(DevelopmentViewEvent)
			require.True(t, ok)
			assert.Equal(t, "D1", v.DevelopmentID)
		}},
		{DevelopmentImpression, map[string]interface{}{"projectId": "D2"}, func(t *testing.T, ev Event) {
			v, ok := ev.(DevelopmentImpressionEvent)
			require.True(t, ok)
			assert.Equal(t, "D2", v.DevelopmentID)
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			ev, err := p.Parse(RawEvent{Name: string(tt.name), DistinctID: "seeker-1", Properties: tt.props})
			require.NoError(t, err)
			assert.Equal(t, tt.name, ev.EventName())
			tt.check(t, ev)
		})
	}
}

func TestEnricher_DeviceFromUserAgent(t *testing.T) {
	e := NewEnricher("")
	defer e.Close()

	var v Visitor
	e.Enrich(&v, map[string]interface{}{
		"$user_agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
		"country_code": "ng",
	})
	assert.Equal(t, DeviceMobile, v.Device)
	assert.Equal(t, "NG", v.Country)

	v = Visitor{}
	e.Enrich(&v, map[string]interface{}{"user_agent": "Googlebot/2.1 (+http://www.google.com/bot.html)"})
	assert.Equal(t, DeviceBot, v.Device)
}
