// Package listings reads listing snapshots and the active entity
// directory, and maintains per-listing cumulative counters.
package listings

import "strings"

const (
	StatusAvailable = "available"
	StatusSold      = "sold"
	StatusRented    = "rented"
)

// NormalizeStatus folds lifecycle statuses into available, sold or rented.
func NormalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case StatusSold:
		return StatusSold
	case StatusRented, "leased":
		return StatusRented
	}
	return StatusAvailable
}

// Location is a listing's place in the country/state/city/town hierarchy.
type Location struct {
	Country string `json:"country"`
	State   string `json:"state"`
	City    string `json:"city"`
	Town    string `json:"town"`
}

// Categories are the four categorical dimensions of a listing.
type Categories struct {
	Purpose  string `json:"purpose"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Subtype  string `json:"subtype"`
}

// Snapshot is the subset of a listing the analytics engine reads.
type Snapshot struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	OwnerRole string `json:"owner_role"`
	ProjectID string `json:"project_id,omitempty"`

	Categories Categories `json:"categories"`
	Location   Location   `json:"location"`

	Status          string  `json:"status"`
	Price           float64 `json:"price"`
	NormalizedPrice float64 `json:"normalized_price"`
	Currency        string  `json:"currency"`

	// EstimatedRevenue is computed upstream from price and rental term.
	EstimatedRevenue float64 `json:"estimated_revenue"`
}

// ActiveEntities lists every entity that receives a time-series row.
type ActiveEntities struct {
	ListingIDs     []string
	UserIDs        []string
	DevelopmentIDs []string
}

// CounterDelta is added to a listing's cumulative counters.
type CounterDelta struct {
	Views int
	Leads int
	Sales int
}

func (d CounterDelta) IsZero() bool {
	return d.Views == 0 && d.Leads == 0 && d.Sales == 0
}
