// Package timeseries flattens run accumulators into dated append-only rows
// and lead records.
package timeseries

import (
	"math"
	"time"
)

// Period stamps a row with its calendar date and ISO week.
type Period struct {
	Date    time.Time
	Week    uint8
	Month   uint8
	Quarter uint8
	Year    uint16
}

func PeriodOf(date time.Time) Period {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	_, week := d.ISOWeek()
	return Period{
		Date:    d,
		Week:    uint8(week),
		Month:   uint8(d.Month()),
		Quarter: uint8((int(d.Month())-1)/3 + 1),
		Year:    uint16(d.Year()),
	}
}

// Ratios are derived from a row's raw counters.
type Ratios struct {
	ConversionRate float64
	LeadToSaleRate float64
	AvgSalePrice   float64
}

func ratios(views, leads, sales uint32, salesValue float64) Ratios {
	return Ratios{
		ConversionRate: round2(divideOrZero(float64(leads), float64(views)) * 100),
		LeadToSaleRate: round2(divideOrZero(float64(sales), float64(leads)) * 100),
		AvgSalePrice:   round2(divideOrZero(salesValue, float64(sales))),
	}
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

// ListingRow is one row of listing_analytics.
type ListingRow struct {
	RunID         string
	ListingID     string
	ListerID      string
	ListerType    string
	DevelopmentID string
	Period

	TotalViews      uint32
	UniqueViews     uint32
	LoggedInViews   uint32
	AnonymousViews  uint32
	ViewsSearch     uint32
	ViewsDirect     uint32
	ViewsFeatured   uint32
	ViewsRecommend  uint32
	ViewsSocial     uint32
	ViewsOther      uint32
	MobileViews     uint32
	DesktopViews    uint32
	BotViews        uint32
	Impressions     uint32
	ImprSearch      uint32
	ImprFeatured    uint32
	ImprRecommended uint32
	ImprMap         uint32
	ImprOther       uint32
	Shares          uint32
	Saves           uint32
	Unsaves         uint32
	VirtualTours    uint32

	TotalLeads       uint32
	ContactLeads     uint32
	PhoneLeads       uint32
	WhatsappLeads    uint32
	MessageLeads     uint32
	AppointmentLeads uint32
	EmailLeads       uint32
	UniqueSeekers    uint32
	SalesCount       uint32
	SalesValue       float64

	Ratios
	CreatedAt time.Time
}

// UserRow is one row of user_analytics.
type UserRow struct {
	RunID  string
	UserID string
	Period

	ProfileViews       uint32
	UniqueProfileViews uint32
	LoggedInViews      uint32
	AnonymousViews     uint32
	ProfileImpressions uint32
	ListingViews       uint32
	ListingImpressions uint32
	TotalLeads         uint32
	UniqueSeekers      uint32
	SalesCount         uint32
	SalesValue         float64

	Ratios
	CreatedAt time.Time
}

// DevelopmentRow is one row of development_analytics.
type DevelopmentRow struct {
	RunID         string
	DevelopmentID string
	Period

	Views         uint32
	UniqueViews   uint32
	Impressions   uint32
	ListingViews  uint32
	TotalLeads    uint32
	UniqueSeekers uint32
	SalesCount    uint32
	SalesValue    float64

	Ratios
	CreatedAt time.Time
}
