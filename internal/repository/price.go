package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zeru/price-oracle/internal/models"
)

type PriceRepo struct {
	pool *pgxpool.Pool
}

func NewPriceRepo(pool *pgxpool.Pool) *PriceRepo {
	return &PriceRepo{pool: pool}
}

// EnsureSchema creates the token_prices table and its indexes. The unique
// constraint on (token, network, date) is what makes Upsert idempotent; the
// single-column indexes serve the nearest-before/after range scans.
func (r *PriceRepo) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS token_prices (
			id       BIGSERIAL PRIMARY KEY,
			token    TEXT             NOT NULL,
			network  TEXT             NOT NULL,
			date     BIGINT           NOT NULL,
			price    DOUBLE PRECISION NOT NULL,
			UNIQUE (token, network, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_token_prices_token ON token_prices (token)`,
		`CREATE INDEX IF NOT EXISTS idx_token_prices_network ON token_prices (network)`,
		`CREATE INDEX IF NOT EXISTS idx_token_prices_date ON token_prices (date)`,
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Upsert writes one daily price. A later write for the same key overwrites
// the price rather than creating a duplicate.
func (r *PriceRepo) Upsert(ctx context.Context, p models.PricePoint) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO token_prices (token, network, date, price)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (token, network, date) DO UPDATE SET price = EXCLUDED.price`,
		p.Token, p.Network, p.Date, p.Price,
	)
	if err != nil {
		return fmt.Errorf("upsert price point: %w", err)
	}
	return nil
}

// GetAt returns the price point at an exact day bucket, or nil if none.
func (r *PriceRepo) GetAt(ctx context.Context, token, network string, date int64) (*models.PricePoint, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT token, network, date, price FROM token_prices
		 WHERE token = $1 AND network = $2 AND date = $3`,
		token, network, date,
	)
	return scanPoint(row)
}

// NearestBefore returns the latest price point strictly before ts, or nil.
func (r *PriceRepo) NearestBefore(ctx context.Context, token, network string, ts int64) (*models.PricePoint, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT token, network, date, price FROM token_prices
		 WHERE token = $1 AND network = $2 AND date < $3
		 ORDER BY date DESC LIMIT 1`,
		token, network, ts,
	)
	return scanPoint(row)
}

// NearestAfter returns the earliest price point strictly after ts, or nil.
func (r *PriceRepo) NearestAfter(ctx context.Context, token, network string, ts int64) (*models.PricePoint, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT token, network, date, price FROM token_prices
		 WHERE token = $1 AND network = $2 AND date > $3
		 ORDER BY date ASC LIMIT 1`,
		token, network, ts,
	)
	return scanPoint(row)
}

// History returns all price points for the pair, oldest first.
func (r *PriceRepo) History(ctx context.Context, token, network string) ([]models.PricePoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT token, network, date, price FROM token_prices
		 WHERE token = $1 AND network = $2 ORDER BY date ASC`,
		token, network,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Token, &p.Network, &p.Date, &p.Price); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanPoint(row scannable) (*models.PricePoint, error) {
	var p models.PricePoint
	err := row.Scan(&p.Token, &p.Network, &p.Date, &p.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
