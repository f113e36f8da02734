package runledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosight/gosight/analytics/internal/apperrors"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS aggregation_runs (
  run_id uuid PRIMARY KEY,
  status text NOT NULL,
  start_time timestamptz NOT NULL,
  end_time timestamptz NOT NULL,
  target_date date NOT NULL,
  run_type text NOT NULL,
  started_at timestamptz NOT NULL DEFAULT now(),
  completed_at timestamptz,
  duration_seconds double precision NOT NULL DEFAULT 0,
  events_fetched int NOT NULL DEFAULT 0,
  api_calls int NOT NULL DEFAULT 0,
  events_processed int NOT NULL DEFAULT 0,
  listings_processed int NOT NULL DEFAULT 0,
  users_processed int NOT NULL DEFAULT 0,
  developments_processed int NOT NULL DEFAULT 0,
  leads_processed int NOT NULL DEFAULT 0,
  listings_inserted int NOT NULL DEFAULT 0,
  users_inserted int NOT NULL DEFAULT 0,
  developments_inserted int NOT NULL DEFAULT 0,
  leads_inserted int NOT NULL DEFAULT 0,
  last_error text,
  error_details text,
  error_count int NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS aggregation_runs_status_idx
  ON aggregation_runs (status, started_at DESC);
`

const runColumns = `
  run_id::text, status, start_time, end_time, target_date, run_type,
  started_at, completed_at, duration_seconds, events_fetched, api_calls,
  events_processed, listings_processed, users_processed, developments_processed, leads_processed,
  listings_inserted, users_inserted, developments_inserted, leads_inserted,
  COALESCE(last_error, ''), COALESCE(error_details, ''), error_count
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the run table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return err
}

func (s *PostgresStore) Insert(ctx context.Context, r *Run) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO aggregation_runs (
  run_id, status, start_time, end_time, target_date, run_type, started_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`, r.RunID, string(r.Status), r.StartTime, r.EndTime, r.TargetDate, r.RunType, r.StartedAt)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM aggregation_runs WHERE run_id = $1`, runID)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("run %s not found", runID))
	}
	return r, err
}

func (s *PostgresStore) Update(ctx context.Context, r *Run) error {
	c := r.Counters
	tag, err := s.pool.Exec(ctx, `
UPDATE aggregation_runs
SET status=$2,
    completed_at=$3,
    duration_seconds=$4,
    events_fetched=$5,
    api_calls=$6,
    events_processed=$7,
    listings_processed=$8,
    users_processed=$9,
    developments_processed=$10,
    leads_processed=$11,
    listings_inserted=$12,
    users_inserted=$13,
    developments_inserted=$14,
    leads_inserted=$15,
    last_error=NULLIF($16, ''),
    error_details=NULLIF($17, ''),
    error_count=$18
WHERE run_id=$1
`, r.RunID, string(r.Status), r.CompletedAt, r.DurationSeconds, r.EventsFetched, r.APICalls,
		c.EventsProcessed, c.ListingsProcessed, c.UsersProcessed, c.DevelopmentsProcessed, c.LeadsProcessed,
		c.ListingsInserted, c.UsersInserted, c.DevelopmentsInserted, c.LeadsInserted,
		r.LastError, r.ErrorDetails, r.ErrorCount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("run %s not found", r.RunID))
	}
	return nil
}

func (s *PostgresStore) LastFinished(ctx context.Context, statuses ...Status) (*Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM aggregation_runs
WHERE status = ANY($1) ORDER BY end_time DESC LIMIT 1`, statusNames(statuses))
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *PostgresStore) ListByStatus(ctx context.Context, statuses ...Status) ([]*Run, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+runColumns+` FROM aggregation_runs
WHERE status = ANY($1) ORDER BY started_at DESC`, statusNames(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (*Run, error) {
	var r Run
	var status string
	c := &r.Counters
	err := row.Scan(
		&r.RunID, &status, &r.StartTime, &r.EndTime, &r.TargetDate, &r.RunType,
		&r.StartedAt, &r.CompletedAt, &r.DurationSeconds, &r.EventsFetched, &r.APICalls,
		&c.EventsProcessed, &c.ListingsProcessed, &c.UsersProcessed, &c.DevelopmentsProcessed, &c.LeadsProcessed,
		&c.ListingsInserted, &c.UsersInserted, &c.DevelopmentsInserted, &c.LeadsInserted,
		&r.LastError, &r.ErrorDetails, &r.ErrorCount,
	)
	if err != nil {
		return nil, err
	}
	r.Status = Status(status)
	return &r, nil
}

func statusNames(statuses []Status) []string {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	return names
}
