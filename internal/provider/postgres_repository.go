package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores the provider registry in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a registry backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectProvider = `SELECT code, name, kind, api_balance, enabled, updated_at FROM providers`

// Get fetches a provider by code.
func (r *PostgresRepository) Get(ctx context.Context, code string) (Provider, error) {
	row := r.db.QueryRow(ctx, selectProvider+` WHERE code = $1`, strings.ToLower(code))
	p, err := scanProvider(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Provider{}, ErrNotFound
	}
	return p, err
}

// List returns the full registry ordered by code.
func (r *PostgresRepository) List(ctx context.Context) ([]Provider, error) {
	rows, err := r.db.Query(ctx, selectProvider+` ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Provider, 0)
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AdjustFloat applies delta to the float balance in a single conditional
// update so concurrent admin top-ups and policy debits cannot lose updates.
func (r *PostgresRepository) AdjustFloat(ctx context.Context, code string, delta int64) (int64, error) {
	const query = `
        UPDATE providers SET api_balance = api_balance + $2, updated_at = now()
        WHERE code = $1 AND api_balance + $2 >= 0
        RETURNING api_balance`

	var balance int64
	err := r.db.QueryRow(ctx, query, strings.ToLower(code), delta).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE code = $1)`, strings.ToLower(code)).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}
	return 0, ErrFloatExhausted
}

// SetEnabled toggles a provider's availability.
func (r *PostgresRepository) SetEnabled(ctx context.Context, code string, enabled bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE providers SET enabled = $2, updated_at = now() WHERE code = $1`,
		strings.ToLower(code), enabled)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProvider(row pgx.Row) (Provider, error) {
	var p Provider
	if err := row.Scan(&p.Code, &p.Name, &p.Kind, &p.APIBalance, &p.Enabled, &p.UpdatedAt); err != nil {
		return Provider{}, err
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
