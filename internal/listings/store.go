package listings

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosight/gosight/analytics/internal/apperrors"
	"github.com/gosight/gosight/analytics/internal/timeseries"
)

var snapshotColumns = []interface{}{
	"id", "owner_id", "owner_role", goqu.L("COALESCE(project_id, '')"),
	"purpose_id", "type_id", "category_id", "subtype_id",
	"country", "state", "city", "town",
	"status", "price", "normalized_price", "currency", "estimated_revenue",
}

// Store is the Postgres-backed listing store and entity directory.
type Store struct {
	pool *pgxpool.Pool
	db   goqu.DialectWrapper
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		db:   goqu.Dialect("postgres"),
	}
}

func (s *Store) Get(ctx context.Context, id string) (*Snapshot, error) {
	out, err := s.GetMany(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("listing %s not found", id))
	}
	return &out[0], nil
}

func (s *Store) GetMany(ctx context.Context, ids []string) ([]Snapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.querySnapshots(ctx, s.db.From("listings").
		Select(snapshotColumns...).
		Where(goqu.Ex{"id": ids}).
		Order(goqu.I("id").Asc()))
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]Snapshot, error) {
	return s.querySnapshots(ctx, s.db.From("listings").
		Select(snapshotColumns...).
		Where(goqu.Ex{"owner_id": ownerID}).
		Order(goqu.I("id").Asc()))
}

func (s *Store) ListByProject(ctx context.Context, projectID string) ([]Snapshot, error) {
	return s.querySnapshots(ctx, s.db.From("listings").
		Select(snapshotColumns...).
		Where(goqu.Ex{"project_id": projectID}).
		Order(goqu.I("id").Asc()))
}

func (s *Store) querySnapshots(ctx context.Context, ds *goqu.SelectDataset) ([]Snapshot, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build listing query", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to query listings", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var l Snapshot
		if err := rows.Scan(
			&l.ID, &l.OwnerID, &l.OwnerRole, &l.ProjectID,
			&l.Categories.Purpose, &l.Categories.Type, &l.Categories.Category, &l.Categories.Subtype,
			&l.Location.Country, &l.Location.State, &l.Location.City, &l.Location.Town,
			&l.Status, &l.Price, &l.NormalizedPrice, &l.Currency, &l.EstimatedRevenue,
		); err != nil {
			return nil, apperrors.NewPersistenceError("failed to scan listing", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceError("failed to read listings", err)
	}
	return out, nil
}

// ResolveListers returns the owner of each listing found, in one query.
func (s *Store) ResolveListers(ctx context.Context, listingIDs []string) (map[string]timeseries.Lister, error) {
	out := make(map[string]timeseries.Lister, len(listingIDs))
	if len(listingIDs) == 0 {
		return out, nil
	}

	query, args, err := s.db.From("listings").
		Select("id", "owner_id", "owner_role").
		Where(goqu.Ex{"id": listingIDs}, goqu.C("owner_id").IsNotNull()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build lister query", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to query listers", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var l timeseries.Lister
		if err := rows.Scan(&id, &l.ID, &l.Type); err != nil {
			return nil, apperrors.NewPersistenceError("failed to scan lister", err)
		}
		out[id] = l
	}
	return out, rows.Err()
}

// AddCounters adds delta to the listing's cumulative counters.
func (s *Store) AddCounters(ctx context.Context, id string, delta CounterDelta) error {
	if delta.IsZero() {
		return nil
	}

	query, args, err := s.db.Update("listings").
		Set(goqu.Record{
			"views_count": goqu.L("views_count + ?", delta.Views),
			"leads_count": goqu.L("leads_count + ?", delta.Leads),
			"sales_count": goqu.L("sales_count + ?", delta.Sales),
		}).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build counter update", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return apperrors.NewPersistenceError("failed to update listing counters", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("listing %s not found", id))
	}
	return nil
}

// ActiveEntities returns the ids of every active listing, user profile and
// development.
func (s *Store) ActiveEntities(ctx context.Context) (ActiveEntities, error) {
	var out ActiveEntities
	var err error

	if out.ListingIDs, err = s.activeIDs(ctx, "listings"); err != nil {
		return out, err
	}
	if out.UserIDs, err = s.activeIDs(ctx, "profiles"); err != nil {
		return out, err
	}
	if out.DevelopmentIDs, err = s.activeIDs(ctx, "developments"); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Store) activeIDs(ctx context.Context, table string) ([]string, error) {
	query, args, err := s.db.From(table).
		Select(goqu.L("id::text")).
		Where(goqu.Ex{"is_active": true}).
		Order(goqu.I("id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build directory query", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to query "+table, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewPersistenceError("failed to read "+table, err)
	}
	return ids, nil
}
