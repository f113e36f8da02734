package storage

import (
	"context"
	"encoding/json"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosight/gosight/analytics/internal/timeseries"
)

// LeadStore appends lead records to Postgres, where their workflow status
// is later edited by the listing dashboard.
type LeadStore struct {
	pool *pgxpool.Pool
	db   goqu.DialectWrapper
}

func NewLeadStore(pool *pgxpool.Pool) *LeadStore {
	return &LeadStore{pool: pool, db: goqu.Dialect("postgres")}
}

func (s *LeadStore) InsertLeads(ctx context.Context, leads []timeseries.LeadRecord) error {
	if len(leads) == 0 {
		return nil
	}

	rows := make([]interface{}, 0, len(leads))
	for _, l := range leads {
		actions, err := json.Marshal(l.Actions)
		if err != nil {
			return err
		}
		rows = append(rows, goqu.Record{
			"id":              l.ID,
			"run_id":          l.RunID,
			"listing_id":      l.ListingID,
			"seeker_id":       l.SeekerID,
			"lister_id":       l.ListerID,
			"lister_type":     l.ListerType,
			"actions":         string(actions),
			"first_action_at": l.FirstActionAt,
			"last_action_at":  l.LastActionAt,
			"status":          l.Status,
			"lead_date":       l.Date,
		})
	}

	query, args, err := s.db.Insert("leads").Rows(rows...).Prepared(true).ToSQL()
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, query, args...)
	return err
}
