package timeseries

import (
	"sort"
	"time"

	"github.com/gosight/gosight/analytics/internal/aggregator"
	"github.com/gosight/gosight/analytics/internal/events"
)

// Active lists the entities that get a row every run, with or without
// activity.
type Active struct {
	ListingIDs     []string
	UserIDs        []string
	DevelopmentIDs []string
}

// Rows holds everything one run appends.
type Rows struct {
	Listings     []ListingRow
	Users        []UserRow
	Developments []DevelopmentRow
}

// BuildRows emits exactly one row per id in active or touched by res,
// zero-filled when the entity saw no events. Rows are ordered by id.
func BuildRows(runID string, date time.Time, res *aggregator.Result, active Active, now time.Time) Rows {
	period := PeriodOf(date)

	var out Rows

	for _, id := range union(active.ListingIDs, keys(res.Listings)) {
		row := ListingRow{RunID: runID, ListingID: id, Period: period, CreatedAt: now}
		if acc := res.Listings[id]; acc != nil {
			fillListing(&row, acc)
		}
		row.Ratios = ratios(row.TotalViews, row.TotalLeads, row.SalesCount, row.SalesValue)
		out.Listings = append(out.Listings, row)
	}

	for _, id := range union(active.UserIDs, keys(res.Users)) {
		row := UserRow{RunID: runID, UserID: id, Period: period, CreatedAt: now}
		if acc := res.Users[id]; acc != nil {
			row.ProfileViews = u32(acc.ProfileViews.Total)
			row.UniqueProfileViews = u32(acc.ProfileViews.Unique())
			row.LoggedInViews = u32(acc.ProfileViews.LoggedIn)
			row.AnonymousViews = u32(acc.ProfileViews.Anonymous)
			row.ProfileImpressions = u32(acc.ProfileImpressions)
			row.ListingViews = u32(acc.ListingViews)
			row.ListingImpressions = u32(acc.ListingImpressions)
			row.TotalLeads = u32(acc.Leads.Total)
			row.UniqueSeekers = u32(acc.Leads.UniqueSeekers())
			row.SalesCount = u32(acc.Sales.Count)
			row.SalesValue = round2(acc.Sales.Value)
		}
		row.Ratios = ratios(row.ListingViews, row.TotalLeads, row.SalesCount, row.SalesValue)
		out.Users = append(out.Users, row)
	}

	for _, id := range union(active.DevelopmentIDs, keys(res.Developments)) {
		row := DevelopmentRow{RunID: runID, DevelopmentID: id, Period: period, CreatedAt: now}
		if acc := res.Developments[id]; acc != nil {
			row.Views = u32(acc.Views.Total)
			row.UniqueViews = u32(acc.Views.Unique())
			row.Impressions = u32(acc.Impressions)
			row.ListingViews = u32(acc.ListingViews)
			row.TotalLeads = u32(acc.Leads.Total)
			row.UniqueSeekers = u32(acc.Leads.UniqueSeekers())
			row.SalesCount = u32(acc.Sales.Count)
			row.SalesValue = round2(acc.Sales.Value)
		}
		row.Ratios = ratios(row.Views+row.ListingViews, row.TotalLeads, row.SalesCount, row.SalesValue)
		out.Developments = append(out.Developments, row)
	}

	return out
}

func fillListing(row *ListingRow, acc *aggregator.ListingAccumulator) {
	row.ListerID = acc.ListerID
	row.ListerType = acc.ListerType
	row.DevelopmentID = acc.DevelopmentID

	v := acc.Views
	row.TotalViews = u32(v.Total)
	row.UniqueViews = u32(v.Unique())
	row.LoggedInViews = u32(v.LoggedIn)
	row.AnonymousViews = u32(v.Anonymous)
	row.ViewsSearch = u32(v.BySource[events.SourceSearch])
	row.ViewsDirect = u32(v.BySource[events.SourceDirect])
	row.ViewsFeatured = u32(v.BySource[events.SourceFeatured])
	row.ViewsRecommend = u32(v.BySource[events.SourceRecommended])
	row.ViewsSocial = u32(v.BySource[events.SourceSocial])
	row.ViewsOther = u32(v.BySource[events.SourceOther])
	row.MobileViews = u32(v.ByDevice[events.DeviceMobile])
	row.DesktopViews = u32(v.ByDevice[events.DeviceDesktop])
	row.BotViews = u32(v.ByDevice[events.DeviceBot])

	im := acc.Impressions
	row.Impressions = u32(im.Total)
	row.ImprSearch = u32(im.ByPlacement[events.PlacementSearch])
	row.ImprFeatured = u32(im.ByPlacement[events.PlacementFeatured])
	row.ImprRecommended = u32(im.ByPlacement[events.PlacementRecommended])
	row.ImprMap = u32(im.ByPlacement[events.PlacementMap])
	row.ImprOther = u32(im.ByPlacement[events.PlacementOther])

	row.Shares = u32(acc.Engagement.Shares)
	row.Saves = u32(acc.Engagement.Saves)
	row.Unsaves = u32(acc.Engagement.Unsaves)
	row.VirtualTours = u32(acc.Engagement.VirtualTours)

	l := acc.Leads
	row.TotalLeads = u32(l.Total)
	row.ContactLeads = u32(l.ByKind[events.LeadContact])
	row.PhoneLeads = u32(l.ByKind[events.LeadPhone])
	row.WhatsappLeads = u32(l.ByKind[events.LeadWhatsapp])
	row.MessageLeads = u32(l.ByKind[events.LeadMessage])
	row.AppointmentLeads = u32(l.ByKind[events.LeadAppointment])
	row.EmailLeads = u32(l.ByKind[events.LeadEmail])
	row.UniqueSeekers = u32(l.UniqueSeekers())

	row.SalesCount = u32(acc.Sales.Count)
	row.SalesValue = round2(acc.Sales.Value)
}

func u32(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
