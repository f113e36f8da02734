// Package mutation applies the analytics side effects of a single listing
// create, update or delete.
package mutation

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/analytics/internal/apperrors"
	"github.com/gosight/gosight/analytics/internal/listings"
	"github.com/gosight/gosight/analytics/internal/rollup"
	"github.com/gosight/gosight/analytics/internal/saleledger"
)

// Message announces one listing state transition. Previous is set for
// updates.
type Message struct {
	Operation  rollup.Operation   `json:"operation"`
	OccurredAt time.Time          `json:"occurred_at"`
	Listing    *listings.Snapshot `json:"listing"`
	Previous   *listings.Snapshot `json:"previous,omitempty"`
}

type Reconciler interface {
	Reconcile(ctx context.Context, listing listings.Snapshot, fromStatus string) (saleledger.Plan, error)
}

type RollupMerger interface {
	Apply(ctx context.Context, date time.Time, m rollup.Mutation) (rollup.DailyRollup, error)
}

type Processor struct {
	ledger Reconciler
	rollup RollupMerger
	now    func() time.Time
}

func NewProcessor(ledger Reconciler, merger RollupMerger) *Processor {
	return &Processor{ledger: ledger, rollup: merger, now: time.Now}
}

// Process reconciles the sale ledger and then merges the rollup delta. A
// rejected ledger transition skips the rollup; other ledger failures are
// logged and the rollup is still applied.
func (p *Processor) Process(ctx context.Context, msg Message) error {
	if msg.Listing == nil {
		return apperrors.NewValidationError("mutation without listing")
	}
	if msg.Operation == rollup.OpUpdate && msg.Previous == nil {
		return apperrors.NewValidationError("update without previous listing")
	}

	logger := log.With().
		Str("listing_id", msg.Listing.ID).
		Str("operation", string(msg.Operation)).
		Logger()

	if err := p.reconcile(ctx, msg); err != nil {
		if apperrors.IsReconciliation(err) {
			logger.Warn().Err(err).Msg("Sale ledger rejected transition, skipping rollup")
			return err
		}
		logger.Error().Err(err).Msg("Failed to reconcile sale ledger")
	}

	date := msg.OccurredAt
	if date.IsZero() {
		date = p.now()
	}

	mut := rollup.Mutation{Op: msg.Operation, New: msg.Listing, Old: msg.Previous}
	if _, err := p.rollup.Apply(ctx, date, mut); err != nil {
		logger.Error().Err(err).Msg("Failed to apply rollup mutation")
		return err
	}

	logger.Debug().Time("date", date).Msg("Listing mutation applied")
	return nil
}

func (p *Processor) reconcile(ctx context.Context, msg Message) error {
	l := *msg.Listing

	switch msg.Operation {
	case rollup.OpCreate:
		_, err := p.ledger.Reconcile(ctx, l, listings.StatusAvailable)
		return err
	case rollup.OpUpdate:
		_, err := p.ledger.Reconcile(ctx, l, msg.Previous.Status)
		return err
	case rollup.OpDelete:
		from := l.Status
		l.Status = listings.StatusAvailable
		_, err := p.ledger.Reconcile(ctx, l, from)
		return err
	}
	return apperrors.NewValidationError("unknown operation " + string(msg.Operation))
}
