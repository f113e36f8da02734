package timeseries

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/analytics/internal/aggregator"
	"github.com/gosight/gosight/analytics/internal/apperrors"
)

const (
	TableListings     = "listing_analytics"
	TableUsers        = "user_analytics"
	TableDevelopments = "development_analytics"
	TableLeads        = "leads"
)

// Sink appends time-series rows.
type Sink interface {
	InsertListingRows(ctx context.Context, rows []ListingRow) error
	InsertUserRows(ctx context.Context, rows []UserRow) error
	InsertDevelopmentRows(ctx context.Context, rows []DevelopmentRow) error
}

type LeadSink interface {
	InsertLeads(ctx context.Context, leads []LeadRecord) error
}

type TableResult struct {
	Rows     int      `json:"rows"`
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped,omitempty"`
	Errors   []string `json:"errors"`
}

// Report is the per-table outcome of one Write.
type Report map[string]*TableResult

func (r Report) table(name string) *TableResult {
	t, ok := r[name]
	if !ok {
		t = &TableResult{Errors: []string{}}
		r[name] = t
	}
	return t
}

// Failed reports whether any table recorded an error.
func (r Report) Failed() bool {
	for _, t := range r {
		if len(t.Errors) > 0 {
			return true
		}
	}
	return false
}

func (r Report) Inserted(name string) int {
	if t, ok := r[name]; ok {
		return t.Inserted
	}
	return 0
}

type Writer struct {
	sink      Sink
	leads     LeadSink
	resolver  ListerResolver
	batchSize int
	now       func() time.Time
}

func NewWriter(sink Sink, leads LeadSink, resolver ListerResolver, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Writer{
		sink:      sink,
		leads:     leads,
		resolver:  resolver,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Write appends the run's rows and lead records. A failing batch is
// recorded in the report and the remaining batches and tables still run.
func (w *Writer) Write(ctx context.Context, runID string, date time.Time, res *aggregator.Result, active Active) Report {
	report := Report{}
	rows := BuildRows(runID, date, res, active, w.now().UTC())

	writeBatches(ctx, report.table(TableListings), rows.Listings, w.batchSize, TableListings, w.sink.InsertListingRows)
	writeBatches(ctx, report.table(TableUsers), rows.Users, w.batchSize, TableUsers, w.sink.InsertUserRows)
	writeBatches(ctx, report.table(TableDevelopments), rows.Developments, w.batchSize, TableDevelopments, w.sink.InsertDevelopmentRows)

	leadTable := report.table(TableLeads)
	records, skipped, err := BuildLeads(ctx, runID, date, res.Leads, w.resolver)
	if err != nil {
		perr := apperrors.NewPersistenceError("lister lookup failed", err)
		log.Error().Err(err).Str("run_id", runID).Msg("Failed to resolve lead listers")
		leadTable.Errors = append(leadTable.Errors, perr.Error())
		return report
	}
	leadTable.Skipped = skipped
	if w.leads != nil {
		writeBatches(ctx, leadTable, records, w.batchSize, TableLeads, w.leads.InsertLeads)
	}

	return report
}

func writeBatches[T any](ctx context.Context, t *TableResult, rows []T, size int, table string, insert func(context.Context, []T) error) {
	t.Rows += len(rows)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}

		if err := insert(ctx, rows[start:end]); err != nil {
			perr := apperrors.NewPersistenceError("insert into "+table+" failed", err)
			log.Error().Err(err).Str("table", table).Int("batch_start", start).Int("rows", end-start).Msg("Failed to insert rows")
			t.Errors = append(t.Errors, perr.Error())
			continue
		}
		t.Inserted += end - start
	}
}
