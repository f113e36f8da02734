package rollup

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS admin_analytics (
  date date PRIMARY KEY,
  version bigint NOT NULL DEFAULT 1,
  data jsonb NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
);
`

// PostgresStore keeps one admin_analytics row per day with the rollup as
// a JSON document.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return err
}

func (s *PostgresStore) Load(ctx context.Context, date time.Time) (DailyRollup, error) {
	empty := New(date)

	var (
		version int64
		data    []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT version, data FROM admin_analytics WHERE date = $1`, empty.Date).Scan(&version, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return empty, nil
	}
	if err != nil {
		return empty, err
	}

	var r DailyRollup
	if err := json.Unmarshal(data, &r); err != nil {
		return empty, err
	}
	r.Date = empty.Date
	r.Version = version
	return r.Clone(), nil
}

// Save writes r if the stored version still equals r.Version.
func (s *PostgresStore) Save(ctx context.Context, r DailyRollup) (DailyRollup, error) {
	r.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(r)
	if err != nil {
		return r, err
	}

	var affected int64
	if r.Version == 0 {
		tag, err := s.pool.Exec(ctx, `
INSERT INTO admin_analytics (date, version, data, updated_at)
VALUES ($1, 1, $2, $3)
ON CONFLICT (date) DO NOTHING
`, r.Date, data, r.UpdatedAt)
		if err != nil {
			return r, err
		}
		affected = tag.RowsAffected()
	} else {
		tag, err := s.pool.Exec(ctx, `
UPDATE admin_analytics
SET data=$3, version=version+1, updated_at=$4
WHERE date=$1 AND version=$2
`, r.Date, r.Version, data, r.UpdatedAt)
		if err != nil {
			return r, err
		}
		affected = tag.RowsAffected()
	}

	if affected == 0 {
		return r, ErrVersionConflict
	}
	r.Version++
	return r, nil
}
