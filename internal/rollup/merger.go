package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/analytics/internal/apperrors"
)

const DefaultMaxRetries = 5

// Merger applies mutations to stored rollups with read-modify-write,
// retrying when a concurrent writer saved first.
type Merger struct {
	store      Store
	maxRetries int
}

func NewMerger(store Store, maxRetries int) *Merger {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Merger{store: store, maxRetries: maxRetries}
}

// Apply merges m into the rollup of date.
func (m *Merger) Apply(ctx context.Context, date time.Time, mut Mutation) (DailyRollup, error) {
	return m.update(ctx, date, func(cur DailyRollup) (DailyRollup, error) {
		return Apply(cur, mut)
	})
}

// ApplyEngagement adds a run's platform activity to the rollup of date.
func (m *Merger) ApplyEngagement(ctx context.Context, date time.Time, e Engagement) (DailyRollup, error) {
	return m.update(ctx, date, func(cur DailyRollup) (DailyRollup, error) {
		return ApplyEngagement(cur, e), nil
	})
}

func (m *Merger) Load(ctx context.Context, date time.Time) (DailyRollup, error) {
	return m.store.Load(ctx, date)
}

func (m *Merger) update(ctx context.Context, date time.Time, fn func(DailyRollup) (DailyRollup, error)) (DailyRollup, error) {
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		cur, err := m.store.Load(ctx, date)
		if err != nil {
			return DailyRollup{}, apperrors.NewPersistenceError("failed to load daily rollup", err)
		}

		next, err := fn(cur)
		if err != nil {
			return cur, err
		}

		saved, err := m.store.Save(ctx, next)
		if errors.Is(err, ErrVersionConflict) {
			log.Debug().Time("date", date).Int("attempt", attempt).Msg("Rollup version conflict, retrying")
			continue
		}
		if err != nil {
			return cur, apperrors.NewPersistenceError("failed to save daily rollup", err)
		}
		return saved, nil
	}

	return DailyRollup{}, apperrors.NewConflictError(
		fmt.Sprintf("daily rollup still conflicting after %d attempts", m.maxRetries), ErrVersionConflict)
}
