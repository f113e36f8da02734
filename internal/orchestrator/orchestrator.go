// Package orchestrator runs the aggregation phases in order for one
// invocation.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gosight/gosight/analytics/internal/aggregator"
	"github.com/gosight/gosight/analytics/internal/apperrors"
	"github.com/gosight/gosight/analytics/internal/eventsource"
	"github.com/gosight/gosight/analytics/internal/listings"
	"github.com/gosight/gosight/analytics/internal/observability"
	"github.com/gosight/gosight/analytics/internal/rollup"
	"github.com/gosight/gosight/analytics/internal/runledger"
	"github.com/gosight/gosight/analytics/internal/timeseries"
)

const (
	TableListingCounters = "listing_counters"
	TableDailyRollup     = "admin_analytics"
)

type Directory interface {
	ActiveEntities(ctx context.Context) (listings.ActiveEntities, error)
}

type RowWriter interface {
	Write(ctx context.Context, runID string, date time.Time, res *aggregator.Result, active timeseries.Active) timeseries.Report
}

type CounterStore interface {
	AddCounters(ctx context.Context, listingID string, delta listings.CounterDelta) error
}

type EngagementMerger interface {
	ApplyEngagement(ctx context.Context, date time.Time, e rollup.Engagement) (rollup.DailyRollup, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, payload interface{})
}

type Deps struct {
	Ledger     *runledger.Ledger
	Fetcher    eventsource.Fetcher
	Directory  Directory
	Aggregator *aggregator.Aggregator
	Writer     RowWriter
	Counters   CounterStore
	Rollup     EngagementMerger
	Publisher  Publisher
}

type Processed struct {
	Events       int `json:"events"`
	Listings     int `json:"listings"`
	Users        int `json:"users"`
	Developments int `json:"developments"`
	Leads        int `json:"leads"`
}

// Result is returned to callers and published as the run summary.
type Result struct {
	Success   bool              `json:"success"`
	RunID     string            `json:"run_id,omitempty"`
	Status    runledger.Status  `json:"status,omitempty"`
	Date      string            `json:"date,omitempty"`
	Window    *Window           `json:"window,omitempty"`
	Fetched   int               `json:"events_fetched"`
	APICalls  int               `json:"api_calls"`
	Processed Processed         `json:"processed"`
	Inserted  timeseries.Report `json:"inserted,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, interface{}) {}

type Orchestrator struct {
	deps      Deps
	lookbacks Lookbacks
	now       func() time.Time
}

func New(deps Deps, lookbacks Lookbacks) *Orchestrator {
	if deps.Aggregator == nil {
		deps.Aggregator = aggregator.New(nil)
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	return &Orchestrator{deps: deps, lookbacks: lookbacks, now: time.Now}
}

// Run executes one aggregation: stuck-run sweep, window resolution, run
// creation, fetch, aggregation, row writes, listing counters, rollup
// engagement and completion. Each phase waits for the previous one.
// Table write failures make the run partial; every other failure fails
// the run and is returned. The window resumes from the last completed or
// partial run, so cumulative updates are never applied twice.
func (o *Orchestrator) Run(ctx context.Context, req Request) (res Result, err error) {
	ctx, span := observability.StartSpan(ctx, "aggregation.run",
		attribute.Bool("ignore_last_run", req.IgnoreLastRun),
		attribute.Bool("test_mode", req.TestMode),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err := o.sweepStuck(ctx); err != nil {
		return Result{Error: err.Error()}, err
	}

	last, err := o.deps.Ledger.ResumePoint(ctx)
	if err != nil {
		return Result{Error: err.Error()}, err
	}
	win := ResolveWindow(req, last, o.now(), o.lookbacks)

	runType := req.RunType
	if runType == "" {
		runType = runledger.TypeScheduled
	}
	run, err := o.deps.Ledger.Create(ctx, win.Start, win.End, win.TargetDate, runType)
	if err != nil {
		return Result{Error: err.Error()}, err
	}
	span.SetAttributes(attribute.String("run_id", run.RunID))

	res = Result{
		RunID:  run.RunID,
		Status: runledger.StatusRunning,
		Date:   win.TargetDate.Format("2006-01-02"),
		Window: &win,
	}
	ctx = observability.WithRunID(ctx, run.RunID)
	logger := observability.LoggerFromContext(ctx)
	logger.Info().
		Time("start", win.Start).
		Time("end", win.End).
		Str("run_type", runType).
		Msg("Aggregation run started")

	defer func() {
		if p := recover(); p != nil {
			err = apperrors.NewInternalError(fmt.Sprintf("aggregation panicked: %v", p), nil)
			res = o.fail(ctx, res, err)
		}
	}()

	res, err = o.execute(ctx, res, win)
	if err != nil {
		return o.fail(ctx, res, err), err
	}

	o.deps.Publisher.Publish(ctx, res.RunID, res)
	logger.Info().
		Str("status", string(res.Status)).
		Int("events", res.Processed.Events).
		Int("listings", res.Processed.Listings).
		Msg("Aggregation run finished")
	return res, nil
}

func (o *Orchestrator) execute(ctx context.Context, res Result, win Window) (Result, error) {
	runID := res.RunID

	fctx, span := observability.StartSpan(ctx, "aggregation.fetch")
	fetched := o.deps.Fetcher.FetchEvents(fctx, win.Start, win.End, nil)
	observability.EndSpan(span, fetched.Err)

	res.Fetched = len(fetched.Events)
	res.APICalls = fetched.APICallCount
	if !fetched.Success {
		err := fetched.Err
		if err == nil {
			err = apperrors.NewFetchError("event fetch failed", nil)
		}
		return res, err
	}

	if err := o.deps.Ledger.UpdateProgress(ctx, runID, func(r *runledger.Run) {
		r.EventsFetched = res.Fetched
		r.APICalls = res.APICalls
	}); err != nil {
		return res, err
	}

	active, err := o.deps.Directory.ActiveEntities(ctx)
	if err != nil {
		return res, err
	}

	_, span = observability.StartSpan(ctx, "aggregation.aggregate")
	agg := o.deps.Aggregator.Aggregate(fetched.Events, aggregator.Known{
		UserIDs:        active.UserIDs,
		DevelopmentIDs: active.DevelopmentIDs,
	})
	observability.EndSpan(span, nil)

	res.Processed = Processed{
		Events:       agg.Processed,
		Listings:     len(agg.Listings),
		Users:        countActiveUsers(agg),
		Developments: countActiveDevelopments(agg),
		Leads:        len(agg.Leads),
	}

	wctx, span := observability.StartSpan(ctx, "aggregation.write")
	report := o.deps.Writer.Write(wctx, runID, win.TargetDate, agg, timeseries.Active(active))
	observability.EndSpan(span, nil)

	o.updateListingCounters(ctx, agg, report)
	o.applyEngagement(ctx, win.TargetDate, agg, report)
	res.Inserted = report

	run, err := o.deps.Ledger.Complete(ctx, runID, runledger.Counters{
		EventsProcessed:       res.Processed.Events,
		ListingsProcessed:     res.Processed.Listings,
		UsersProcessed:        res.Processed.Users,
		DevelopmentsProcessed: res.Processed.Developments,
		LeadsProcessed:        res.Processed.Leads,
		ListingsInserted:      report.Inserted(timeseries.TableListings),
		UsersInserted:         report.Inserted(timeseries.TableUsers),
		DevelopmentsInserted:  report.Inserted(timeseries.TableDevelopments),
		LeadsInserted:         report.Inserted(timeseries.TableLeads),
	}, report.Failed())
	if err != nil {
		return res, err
	}

	res.Success = true
	res.Status = run.Status
	return res, nil
}

// updateListingCounters adds each touched listing's run activity to its
// cumulative counters, one update per listing.
func (o *Orchestrator) updateListingCounters(ctx context.Context, agg *aggregator.Result, report timeseries.Report) {
	if o.deps.Counters == nil {
		return
	}
	logger := observability.LoggerFromContext(ctx)

	ids := make([]string, 0, len(agg.Listings))
	for id := range agg.Listings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := &timeseries.TableResult{Errors: []string{}}
	for _, id := range ids {
		acc := agg.Listings[id]
		delta := listings.CounterDelta{Views: acc.Views.Total, Leads: acc.Leads.Total, Sales: acc.Sales.Count}
		if delta.IsZero() {
			continue
		}
		t.Rows++
		if err := o.deps.Counters.AddCounters(ctx, id, delta); err != nil {
			if apperrors.IsNotFound(err) {
				logger.Warn().Str("listing_id", id).Msg("Skipping counters for unknown listing")
				t.Skipped++
				continue
			}
			logger.Error().Err(err).Str("listing_id", id).Msg("Failed to update listing counters")
			t.Errors = append(t.Errors, err.Error())
			continue
		}
		t.Inserted++
	}
	report[TableListingCounters] = t
}

func (o *Orchestrator) applyEngagement(ctx context.Context, date time.Time, agg *aggregator.Result, report timeseries.Report) {
	if o.deps.Rollup == nil {
		return
	}

	tot := agg.Totals()
	e := rollup.Engagement{
		Views:            tot.Views,
		Impressions:      tot.Impressions,
		ProfileViews:     tot.ProfileViews,
		DevelopmentViews: tot.DevelopmentViews,
		Shares:           tot.Shares,
		Saves:            tot.Saves,
		VirtualTours:     tot.VirtualTours,
		Leads:            tot.Leads,
		LeadsByKind:      map[string]int{},
		ActiveSeekers:    tot.ActiveSeekers,
	}
	for k, v := range tot.LeadsByKind {
		e.LeadsByKind[string(k)] = v
	}

	t := &timeseries.TableResult{Rows: 1, Errors: []string{}}
	if _, err := o.deps.Rollup.ApplyEngagement(ctx, date, e); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Msg("Failed to apply rollup engagement")
		t.Errors = append(t.Errors, err.Error())
	} else {
		t.Inserted = 1
	}
	report[TableDailyRollup] = t
}

func (o *Orchestrator) fail(ctx context.Context, res Result, cause error) Result {
	res.Success = false
	res.Status = runledger.StatusFailed
	res.Error = cause.Error()

	logger := observability.LoggerFromContext(ctx)
	logger.Error().Err(cause).Msg("Aggregation run failed")
	if _, err := o.deps.Ledger.Fail(ctx, res.RunID, cause); err != nil {
		logger.Error().Err(err).Msg("Failed to record run failure")
	}
	o.deps.Publisher.Publish(ctx, res.RunID, res)
	return res
}

// sweepStuck fails every running run older than the stuck threshold.
func (o *Orchestrator) sweepStuck(ctx context.Context) error {
	stuck, err := o.deps.Ledger.Stuck(ctx)
	if err != nil {
		return err
	}
	for _, r := range stuck {
		log.Warn().
			Str("run_id", r.RunID).
			Time("started_at", r.StartedAt).
			Msg("Marking stuck run as failed")
		cause := fmt.Errorf("run exceeded stuck threshold of %s", o.deps.Ledger.StuckThreshold())
		if _, err := o.deps.Ledger.Fail(ctx, r.RunID, cause); err != nil {
			return err
		}
	}
	return nil
}

// Health reports the last successful run and any incomplete runs.
func (o *Orchestrator) Health(ctx context.Context) (*runledger.Run, []*runledger.Run, error) {
	last, err := o.deps.Ledger.LastSuccessful(ctx)
	if err != nil {
		return nil, nil, err
	}
	incomplete, err := o.deps.Ledger.Incomplete(ctx)
	if err != nil {
		return nil, nil, err
	}
	return last, incomplete, nil
}

func countActiveUsers(agg *aggregator.Result) int {
	n := 0
	for _, u := range agg.Users {
		if u.ProfileViews.Total+u.ProfileImpressions+u.ListingViews+u.ListingImpressions+u.Leads.Total+u.Sales.Count > 0 {
			n++
		}
	}
	return n
}

func countActiveDevelopments(agg *aggregator.Result) int {
	n := 0
	for _, d := range agg.Developments {
		if d.Views.Total+d.Impressions+d.ListingViews+d.Leads.Total+d.Sales.Count > 0 {
			n++
		}
	}
	return n
}
