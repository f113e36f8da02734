package runledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gosight/gosight/analytics/internal/apperrors"
)

const DefaultStuckThreshold = 2 * time.Hour

// Store persists runs. Implementations return an apperrors NOT_FOUND
// error for unknown ids.
type Store interface {
	Insert(ctx context.Context, run *Run) error
	Get(ctx context.Context, runID string) (*Run, error)
	Update(ctx context.Context, run *Run) error
	// LastFinished returns the run with the latest end_time among those in
	// one of statuses, or nil when none exists.
	LastFinished(ctx context.Context, statuses ...Status) (*Run, error)
	ListByStatus(ctx context.Context, statuses ...Status) ([]*Run, error)
}

// Ledger applies the run lifecycle on top of a Store. Store errors are
// always returned to the caller.
type Ledger struct {
	store          Store
	stuckThreshold time.Duration
	now            func() time.Time
}

func NewLedger(store Store, stuckThreshold time.Duration) *Ledger {
	if stuckThreshold <= 0 {
		stuckThreshold = DefaultStuckThreshold
	}
	return &Ledger{store: store, stuckThreshold: stuckThreshold, now: time.Now}
}

// WithClock replaces the ledger's clock.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) Create(ctx context.Context, start, end, targetDate time.Time, runType string) (*Run, error) {
	run := &Run{
		RunID:      uuid.New().String(),
		Status:     StatusRunning,
		StartTime:  start.UTC(),
		EndTime:    end.UTC(),
		TargetDate: targetDate.UTC(),
		RunType:    runType,
		StartedAt:  l.now().UTC(),
	}
	if err := l.store.Insert(ctx, run); err != nil {
		return nil, apperrors.NewPersistenceError("failed to create run", err)
	}
	return run, nil
}

// UpdateProgress applies fn to the stored run and saves it.
func (l *Ledger) UpdateProgress(ctx context.Context, runID string, fn func(*Run)) error {
	run, err := l.store.Get(ctx, runID)
	if err != nil {
		return err
	}
	fn(run)
	if err := l.store.Update(ctx, run); err != nil {
		return apperrors.NewPersistenceError("failed to update run progress", err)
	}
	return nil
}

// Complete marks the run completed, or partial when some table writes
// failed, and stamps its duration.
func (l *Ledger) Complete(ctx context.Context, runID string, counters Counters, partial bool) (*Run, error) {
	run, err := l.store.Get(ctx, runID)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	run.Status = StatusCompleted
	if partial {
		run.Status = StatusPartial
	}
	run.Counters = counters
	run.CompletedAt = &now
	run.DurationSeconds = now.Sub(run.StartedAt).Seconds()

	if err := l.store.Update(ctx, run); err != nil {
		return nil, apperrors.NewPersistenceError("failed to complete run", err)
	}
	return run, nil
}

// Fail marks the run failed, recording the message and stack of cause.
func (l *Ledger) Fail(ctx context.Context, runID string, cause error) (*Run, error) {
	run, err := l.store.Get(ctx, runID)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	run.Status = StatusFailed
	run.CompletedAt = &now
	run.DurationSeconds = now.Sub(run.StartedAt).Seconds()
	run.ErrorCount++
	if cause != nil {
		run.LastError = cause.Error()
		run.ErrorDetails = apperrors.StackOf(cause)
	}

	if err := l.store.Update(ctx, run); err != nil {
		return nil, apperrors.NewPersistenceError("failed to mark run failed", err)
	}
	return run, nil
}

func (l *Ledger) LastSuccessful(ctx context.Context) (*Run, error) {
	run, err := l.store.LastFinished(ctx, StatusCompleted)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to read last successful run", err)
	}
	return run, nil
}

// ResumePoint returns the latest run whose window was processed, completed
// or partial. A partial run already applied its cumulative updates, so the
// next window starts at its end.
func (l *Ledger) ResumePoint(ctx context.Context) (*Run, error) {
	run, err := l.store.LastFinished(ctx, StatusCompleted, StatusPartial)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to read resume point", err)
	}
	return run, nil
}

func (l *Ledger) Incomplete(ctx context.Context) ([]*Run, error) {
	runs, err := l.store.ListByStatus(ctx, StatusRunning, StatusFailed, StatusPartial)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to list incomplete runs", err)
	}
	return runs, nil
}

// Stuck returns running runs started before the stuck threshold.
func (l *Ledger) Stuck(ctx context.Context) ([]*Run, error) {
	runs, err := l.store.ListByStatus(ctx, StatusRunning)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to list running runs", err)
	}

	cutoff := l.now().Add(-l.stuckThreshold)
	var stuck []*Run
	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			stuck = append(stuck, r)
		}
	}
	return stuck, nil
}

func (l *Ledger) StuckThreshold() time.Duration { return l.stuckThreshold }
