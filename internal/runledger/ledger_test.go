package runledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/analytics/internal/apperrors"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newLedger() (*Ledger, *clock) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewLedger(NewMemoryStore(), 0).WithClock(c.now), c
}

func TestLedger_CreateAndComplete(t *testing.T) {
	ctx := context.Background()
	l, c := newLedger()

	run, err := l.Create(ctx, c.t.Add(-time.Hour), c.t, c.t, TypeScheduled)
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, StatusRunning, run.Status)

	require.NoError(t, l.UpdateProgress(ctx, run.RunID, func(r *Run) {
		r.EventsFetched = 12
		r.APICalls = 2
	}))

	c.t = c.t.Add(90 * time.Second)
	done, err := l.Complete(ctx, run.RunID, Counters{EventsProcessed: 10, ListingsInserted: 4}, false)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 90.0, done.DurationSeconds)
	assert.Equal(t, 12, done.EventsFetched)
	assert.Equal(t, 4, done.Counters.ListingsInserted)
	require.NotNil(t, done.CompletedAt)

	last, err := l.LastSuccessful(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, run.RunID, last.RunID)
}

func TestLedger_PartialIsResumePointButNotSuccessful(t *testing.T) {
	ctx := context.Background()
	l, c := newLedger()

	run, err := l.Create(ctx, c.t.Add(-time.Hour), c.t, c.t, TypeManual)
	require.NoError(t, err)
	_, err = l.Complete(ctx, run.RunID, Counters{}, true)
	require.NoError(t, err)

	last, err := l.LastSuccessful(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	resume, err := l.ResumePoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, resume)
	assert.Equal(t, run.RunID, resume.RunID)

	incomplete, err := l.Incomplete(ctx)
	require.NoError(t, err)
	assert.Len(t, incomplete, 1)
}

func TestLedger_FailRecordsError(t *testing.T) {
	ctx := context.Background()
	l, c := newLedger()

	run, err := l.Create(ctx, c.t.Add(-time.Hour), c.t, c.t, TypeScheduled)
	require.NoError(t, err)

	failed, err := l.Fail(ctx, run.RunID, apperrors.NewFetchError("export down", errors.New("502")))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, 1, failed.ErrorCount)
	assert.Contains(t, failed.LastError, "export down")
	assert.NotEmpty(t, failed.ErrorDetails)

	failed, err = l.Fail(ctx, run.RunID, errors.New("again"))
	require.NoError(t, err)
	assert.Equal(t, 2, failed.ErrorCount)
	assert.Equal(t, "again", failed.LastError)

	resume, err := l.ResumePoint(ctx)
	require.NoError(t, err)
	assert.Nil(t, resume)
}

func TestLedger_Stuck(t *testing.T) {
	ctx := context.Background()
	l, c := newLedger()
	now := c.t

	c.t = now.Add(-3 * time.Hour)
	old, err := l.Create(ctx, c.t, c.t, c.t, TypeScheduled)
	require.NoError(t, err)

	c.t = now.Add(-time.Hour)
	recent, err := l.Create(ctx, c.t, c.t, c.t, TypeScheduled)
	require.NoError(t, err)

	c.t = now
	stuck, err := l.Stuck(ctx)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, old.RunID, stuck[0].RunID)
	assert.NotEqual(t, recent.RunID, stuck[0].RunID)
}

func TestLedger_UnknownRun(t *testing.T) {
	l, _ := newLedger()

	err := l.UpdateProgress(context.Background(), "missing", func(*Run) {})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = l.Complete(context.Background(), "missing", Counters{}, false)
	assert.True(t, apperrors.IsNotFound(err))
}
