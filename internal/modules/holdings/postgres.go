package holdings

import (
	"context"
	"fmt"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// NewPostgresPool opens a pgx pool with NUMERIC columns decoded as decimals.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Querier is satisfied by *pgxpool.Pool and *pgx.Conn.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// rowSource is the part of pgx.Rows the provider reads.
type rowSource interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// PostgresProvider reads holdings owned by another service's Postgres
// database. It never writes.
type PostgresProvider struct {
	query func(ctx context.Context, sql string, args ...any) (rowSource, error)
	log   zerolog.Logger
}

// NewPostgresProvider creates a read-only holdings provider over q.
func NewPostgresProvider(q Querier, log zerolog.Logger) *PostgresProvider {
	return &PostgresProvider{
		query: func(ctx context.Context, sql string, args ...any) (rowSource, error) {
			return q.Query(ctx, sql, args...)
		},
		log: log.With().Str("repo", "holdings_postgres").Logger(),
	}
}

const listActiveSQL = `
	SELECT id, portfolio_id, symbol, name, asset_class, sector, currency,
		quantity, average_price, acquired_at
	FROM holdings
	WHERE portfolio_id = $1 AND retired_at IS NULL
	ORDER BY symbol`

// ListActiveHoldings returns the non-retired holdings of portfolioID.
func (p *PostgresProvider) ListActiveHoldings(ctx context.Context, portfolioID string) ([]domain.Holding, error) {
	rows, err := p.query(ctx, listActiveSQL, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := []domain.Holding{}
	for rows.Next() {
		var (
			h          domain.Holding
			assetClass string
			acquiredAt time.Time
		)
		if err := rows.Scan(&h.ID, &h.PortfolioID, &h.Symbol, &h.Name, &assetClass, &h.Sector,
			&h.Currency, &h.Quantity, &h.AveragePrice, &acquiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}

		class, err := domain.ParseAssetClass(assetClass)
		if err != nil {
			p.log.Warn().Str("symbol", h.Symbol).Str("asset_class", assetClass).Msg("Unknown asset class, treating as alternative")
			class = domain.AssetClassAlternative
		}
		h.AssetClass = class
		h.AcquiredAt = acquiredAt.UTC()
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// ListPortfolioIDs returns every portfolio with at least one active holding.
func (p *PostgresProvider) ListPortfolioIDs(ctx context.Context) ([]string, error) {
	rows, err := p.query(ctx, `SELECT DISTINCT portfolio_id FROM holdings WHERE retired_at IS NULL ORDER BY portfolio_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
