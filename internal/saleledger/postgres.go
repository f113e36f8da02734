package saleledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gosight/gosight/analytics/internal/apperrors"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS sale_ledger (
  id uuid PRIMARY KEY,
  listing_id text NOT NULL UNIQUE,
  sale_type text NOT NULL CHECK (sale_type IN ('sold', 'rented')),
  sale_price numeric(20,2) NOT NULL,
  currency text NOT NULL DEFAULT '',
  sale_date timestamptz NOT NULL,
  owner_id text NOT NULL,
  project_id text
);
`

const uniqueViolation = "23505"

const entryColumns = `id::text, listing_id, sale_type, sale_price::text, currency, sale_date, owner_id, COALESCE(project_id, '')`

// PostgresStore keeps the ledger in sale_ledger and revenue totals on the
// profiles and developments tables.
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

func (s *PostgresStore) GetEntry(ctx context.Context, listingID string) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM sale_ledger WHERE listing_id = $1`, listingID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to read ledger entry", err)
	}
	return e, nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, listingIDs []string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+entryColumns+` FROM sale_ledger WHERE listing_id = ANY($1)`, listingIDs)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to list ledger entries", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, apperrors.NewPersistenceError("failed to scan ledger entry", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Execute applies the entry change and both revenue deltas in one
// transaction.
func (s *PostgresStore) Execute(ctx context.Context, p Plan) error {
	if p.Action == ActionNone {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewPersistenceError("failed to begin ledger transaction", err)
	}
	defer tx.Rollback(ctx)

	e := p.Entry
	switch p.Action {
	case ActionInsert:
		_, err = tx.Exec(ctx, `
INSERT INTO sale_ledger (id, listing_id, sale_type, sale_price, currency, sale_date, owner_id, project_id)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, NULLIF($8, ''))
`, e.ID, e.ListingID, e.SaleType, e.SalePrice.String(), e.Currency, e.SaleDate, e.OwnerID, e.ProjectID)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.NewReconciliationError(fmt.Sprintf("listing %s already has a ledger entry", e.ListingID))
		}
	case ActionRelabel:
		_, err = tx.Exec(ctx, `UPDATE sale_ledger SET sale_type = $2 WHERE listing_id = $1`, e.ListingID, e.SaleType)
	case ActionDelete:
		_, err = tx.Exec(ctx, `DELETE FROM sale_ledger WHERE listing_id = $1`, e.ListingID)
	}
	if err != nil {
		return apperrors.NewPersistenceError("failed to write ledger entry", err)
	}

	if !p.RevenueDelta.IsZero() || p.SalesDelta != 0 {
		if err := addRevenue(ctx, tx, "profiles", p.OwnerID, p); err != nil {
			return err
		}
		if err := addRevenue(ctx, tx, "developments", p.ProjectID, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewPersistenceError("failed to commit ledger transaction", err)
	}
	return nil
}

func addRevenue(ctx context.Context, tx pgx.Tx, table, id string, p Plan) error {
	if id == "" {
		return nil
	}
	_, err := tx.Exec(ctx, fmt.Sprintf(`
UPDATE %s
SET total_revenue = GREATEST(total_revenue + $2::numeric, 0),
    sales_count = GREATEST(sales_count + $3, 0)
WHERE id::text = $1
`, table), id, p.RevenueDelta.String(), p.SalesDelta)
	if err != nil {
		return apperrors.NewPersistenceError("failed to update "+table+" revenue", err)
	}
	return nil
}

func (s *PostgresStore) SetSellerRevenue(ctx context.Context, ownerID string, rev Revenue) error {
	return s.setRevenue(ctx, "profiles", ownerID, rev)
}

func (s *PostgresStore) SetProjectRevenue(ctx context.Context, projectID string, rev Revenue) error {
	return s.setRevenue(ctx, "developments", projectID, rev)
}

func (s *PostgresStore) setRevenue(ctx context.Context, table, id string, rev Revenue) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
UPDATE %s SET total_revenue = $2::numeric, sales_count = $3 WHERE id::text = $1
`, table), id, rev.Total.String(), rev.Sales)
	if err != nil {
		return apperrors.NewPersistenceError("failed to set "+table+" revenue", err)
	}
	return nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var price string
	if err := row.Scan(&e.ID, &e.ListingID, &e.SaleType, &price, &e.Currency, &e.SaleDate, &e.OwnerID, &e.ProjectID); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	e.SalePrice = d
	return &e, nil
}
