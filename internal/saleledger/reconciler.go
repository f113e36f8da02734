// Package saleledger keeps the sale/rental ledger and cumulative revenue
// totals in step with listing status changes.
package saleledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gosight/gosight/analytics/internal/apperrors"
	"github.com/gosight/gosight/analytics/internal/listings"
)

// Entry asserts that a listing is currently sold or rented.
type Entry struct {
	ID        string          `json:"id"`
	ListingID string          `json:"listing_id"`
	SaleType  string          `json:"sale_type"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Currency  string          `json:"currency"`
	SaleDate  time.Time       `json:"sale_date"`
	OwnerID   string          `json:"owner_id"`
	ProjectID string          `json:"project_id,omitempty"`
}

type Action string

const (
	ActionNone    Action = "none"
	ActionInsert  Action = "insert"
	ActionRelabel Action = "relabel"
	ActionDelete  Action = "delete"
)

// Plan is the side effect of one transition. Revenue and sale count deltas
// apply to both the owner and, when set, the project.
type Plan struct {
	Action       Action
	Entry        Entry
	OwnerID      string
	ProjectID    string
	RevenueDelta decimal.Decimal
	SalesDelta   int
}

// PlanTransition decides what moving listing from one status to another
// does to the ledger. existing is the listing's current entry, if any.
// Marking an already sold or rented listing sold or rented again from
// available is rejected.
func PlanTransition(listing listings.Snapshot, from, to string, existing *Entry, now time.Time) (Plan, error) {
	from = listings.NormalizeStatus(from)
	to = listings.NormalizeStatus(to)

	plan := Plan{Action: ActionNone, OwnerID: listing.OwnerID, ProjectID: listing.ProjectID}
	if existing != nil {
		plan.OwnerID = existing.OwnerID
		plan.ProjectID = existing.ProjectID
	}

	switch {
	case from == to:
		return plan, nil

	case to == listings.StatusAvailable:
		if existing == nil {
			return plan, nil
		}
		plan.Action = ActionDelete
		plan.Entry = *existing
		plan.RevenueDelta = existing.SalePrice.Neg()
		plan.SalesDelta = -1
		return plan, nil

	case from == listings.StatusAvailable:
		if existing != nil {
			return plan, apperrors.NewReconciliationError(fmt.Sprintf(
				"listing %s already has a %s ledger entry", listing.ID, existing.SaleType))
		}
		return insertPlan(plan, listing, to, now), nil

	default:
		// sold <-> rented keeps the revenue already counted.
		if existing == nil {
			return insertPlan(plan, listing, to, now), nil
		}
		plan.Action = ActionRelabel
		plan.Entry = *existing
		plan.Entry.SaleType = to
		return plan, nil
	}
}

func insertPlan(plan Plan, listing listings.Snapshot, saleType string, now time.Time) Plan {
	price := decimal.NewFromFloat(listing.EstimatedRevenue).Round(2)
	plan.Action = ActionInsert
	plan.Entry = Entry{
		ID:        uuid.New().String(),
		ListingID: listing.ID,
		SaleType:  saleType,
		SalePrice: price,
		Currency:  listing.Currency,
		SaleDate:  now.UTC(),
		OwnerID:   listing.OwnerID,
		ProjectID: listing.ProjectID,
	}
	plan.OwnerID = listing.OwnerID
	plan.ProjectID = listing.ProjectID
	plan.RevenueDelta = price
	plan.SalesDelta = 1
	return plan
}
