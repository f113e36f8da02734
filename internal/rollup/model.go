// Package rollup maintains the cumulative per-day platform summary.
package rollup

import (
	"time"

	"github.com/gosight/gosight/analytics/internal/listings"
)

// Bucket is one category or location entry of a breakdown.
type Bucket struct {
	Name string `json:"name"`
	// Parent holds the enclosing location levels, outermost first. It is
	// empty for countries and categorical buckets.
	Parent        []string `json:"parent,omitempty"`
	TotalListings int      `json:"total_listings"`
	TotalSold     int      `json:"total_sold"`
	SalesValue    float64  `json:"sales_value"`
	SalesAmount   float64  `json:"sales_amount"`
	Percentage    float64  `json:"percentage"`
}

type Locations struct {
	Country []*Bucket `json:"country"`
	State   []*Bucket `json:"state"`
	City    []*Bucket `json:"city"`
	Town    []*Bucket `json:"town"`
}

type Categories struct {
	Purpose  map[string]*Bucket `json:"purpose"`
	Type     map[string]*Bucket `json:"type"`
	Category map[string]*Bucket `json:"category"`
	Subtype  map[string]*Bucket `json:"subtype"`
}

// RoleMetrics aggregates listings by owner role.
type RoleMetrics struct {
	Listings   int     `json:"listings"`
	Sold       int     `json:"sold"`
	SalesValue float64 `json:"sales_value"`
}

// Engagement holds platform-wide activity counters.
type Engagement struct {
	Views            int            `json:"views"`
	Impressions      int            `json:"impressions"`
	ProfileViews     int            `json:"profile_views"`
	DevelopmentViews int            `json:"development_views"`
	Shares           int            `json:"shares"`
	Saves            int            `json:"saves"`
	VirtualTours     int            `json:"virtual_tours"`
	Leads            int            `json:"leads"`
	LeadsByKind      map[string]int `json:"leads_by_kind"`
	ActiveSeekers    int            `json:"active_seekers"`
}

type SalesMetrics struct {
	Total        int     `json:"total"`
	SalesValue   float64 `json:"sales_value"`
	AvgSalePrice float64 `json:"avg_sale_price"`
}

// DailyRollup is the single summary record of one calendar day.
type DailyRollup struct {
	Date    time.Time `json:"date"`
	Version int64     `json:"version"`

	Locations  Locations               `json:"locations"`
	Categories Categories              `json:"categories"`
	Roles      map[string]*RoleMetrics `json:"roles"`
	Engagement Engagement              `json:"engagement"`
	Sales      SalesMetrics            `json:"sales_metrics"`

	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty rollup for the calendar day of date.
func New(date time.Time) DailyRollup {
	d := date.UTC()
	return DailyRollup{
		Date: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
		Categories: Categories{
			Purpose:  map[string]*Bucket{},
			Type:     map[string]*Bucket{},
			Category: map[string]*Bucket{},
			Subtype:  map[string]*Bucket{},
		},
		Roles:      map[string]*RoleMetrics{},
		Engagement: Engagement{LeadsByKind: map[string]int{}},
	}
}

// Clone returns a deep copy of r.
func (r DailyRollup) Clone() DailyRollup {
	out := r
	out.Locations = Locations{
		Country: cloneBuckets(r.Locations.Country),
		State:   cloneBuckets(r.Locations.State),
		City:    cloneBuckets(r.Locations.City),
		Town:    cloneBuckets(r.Locations.Town),
	}
	out.Categories = Categories{
		Purpose:  cloneBucketMap(r.Categories.Purpose),
		Type:     cloneBucketMap(r.Categories.Type),
		Category: cloneBucketMap(r.Categories.Category),
		Subtype:  cloneBucketMap(r.Categories.Subtype),
	}
	out.Roles = make(map[string]*RoleMetrics, len(r.Roles))
	for k, v := range r.Roles {
		m := *v
		out.Roles[k] = &m
	}
	out.Engagement.LeadsByKind = make(map[string]int, len(r.Engagement.LeadsByKind))
	for k, v := range r.Engagement.LeadsByKind {
		out.Engagement.LeadsByKind[k] = v
	}
	return out
}

func cloneBuckets(in []*Bucket) []*Bucket {
	if in == nil {
		return nil
	}
	out := make([]*Bucket, len(in))
	for i, b := range in {
		c := *b
		c.Parent = append([]string(nil), b.Parent...)
		out[i] = &c
	}
	return out
}

func cloneBucketMap(in map[string]*Bucket) map[string]*Bucket {
	out := make(map[string]*Bucket, len(in))
	for k, b := range in {
		c := *b
		out[k] = &c
	}
	return out
}

// Operation is the kind of listing mutation being merged.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Mutation is one listing state transition. Old is required for updates;
// deletes use New when set, otherwise Old.
type Mutation struct {
	Op  Operation
	New *listings.Snapshot
	Old *listings.Snapshot
}
