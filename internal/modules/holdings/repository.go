// Package holdings provides the Holdings Provider backends: a read/write
// sqlite repository and a read-only Postgres provider.
package holdings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finvoice/riskengine/internal/database"
	"github.com/finvoice/riskengine/internal/domain"
	"github.com/rs/zerolog"
)

// ErrHoldingNotFound is returned when retiring a holding that is not active.
var ErrHoldingNotFound = errors.New("holding not found")

// Repository stores holdings in portfolio.db. A fully disposed holding is
// retired, never deleted.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a holdings repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "holdings").Logger(),
		now: time.Now,
	}
}

// Upsert creates the active holding for (portfolio, symbol) or updates it in
// place. It returns the holding id.
func (r *Repository) Upsert(ctx context.Context, h domain.Holding) (int64, error) {
	if err := validate(&h); err != nil {
		return 0, err
	}

	now := r.now().UTC()
	acquired := h.AcquiredAt
	if acquired.IsZero() {
		acquired = now
	}

	var id int64
	err := database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM holdings WHERE portfolio_id = ? AND symbol = ? AND retired_at IS NULL`,
			h.PortfolioID, h.Symbol,
		).Scan(&id)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx, `
				INSERT INTO holdings (portfolio_id, symbol, name, asset_class, sector, currency,
					quantity, average_price, acquired_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				h.PortfolioID, h.Symbol, h.Name, string(h.AssetClass), h.Sector, h.Currency,
				h.Quantity.String(), h.AveragePrice.String(), acquired.Unix(), now.Unix(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert holding: %w", err)
			}
			id, err = res.LastInsertId()
			return err
		case err != nil:
			return fmt.Errorf("failed to look up holding: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE holdings SET name = ?, asset_class = ?, sector = ?, currency = ?,
				quantity = ?, average_price = ?, updated_at = ?
			WHERE id = ?`,
			h.Name, string(h.AssetClass), h.Sector, h.Currency,
			h.Quantity.String(), h.AveragePrice.String(), now.Unix(), id,
		)
		if err != nil {
			return fmt.Errorf("failed to update holding: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Debug().
		Str("portfolio_id", h.PortfolioID).
		Str("symbol", h.Symbol).
		Str("quantity", h.Quantity.String()).
		Msg("Holding upserted")
	return id, nil
}

// Retire soft-retires the active holding of symbol.
func (r *Repository) Retire(ctx context.Context, portfolioID, symbol string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE holdings SET retired_at = ?, updated_at = ? WHERE portfolio_id = ? AND symbol = ? AND retired_at IS NULL`,
		r.now().UTC().Unix(), r.now().UTC().Unix(), portfolioID, strings.TrimSpace(symbol),
	)
	if err != nil {
		return fmt.Errorf("failed to retire holding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to retire holding: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrHoldingNotFound, portfolioID, symbol)
	}
	return nil
}

// ListActiveHoldings returns the non-retired holdings of portfolioID ordered by symbol.
func (r *Repository) ListActiveHoldings(ctx context.Context, portfolioID string) ([]domain.Holding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, portfolio_id, symbol, name, asset_class, sector, currency,
			quantity, average_price, acquired_at
		FROM holdings
		WHERE portfolio_id = ? AND retired_at IS NULL
		ORDER BY symbol`,
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := []domain.Holding{}
	for rows.Next() {
		var (
			h          domain.Holding
			assetClass string
			acquiredAt int64
		)
		if err := rows.Scan(&h.ID, &h.PortfolioID, &h.Symbol, &h.Name, &assetClass, &h.Sector,
			&h.Currency, &h.Quantity, &h.AveragePrice, &acquiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		h.AssetClass = domain.AssetClass(assetClass)
		h.AcquiredAt = time.Unix(acquiredAt, 0).UTC()
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// ListPortfolioIDs returns every portfolio with at least one active holding.
func (r *Repository) ListPortfolioIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT portfolio_id FROM holdings WHERE retired_at IS NULL ORDER BY portfolio_id`)
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

// validate normalizes h in place and rejects holdings that cannot be valued.
func validate(h *domain.Holding) error {
	h.PortfolioID = strings.TrimSpace(h.PortfolioID)
	h.Symbol = strings.TrimSpace(h.Symbol)
	h.Currency = strings.ToUpper(strings.TrimSpace(h.Currency))

	if h.PortfolioID == "" || h.Symbol == "" {
		return fmt.Errorf("holding requires portfolio id and symbol")
	}
	if h.Currency == "" {
		return fmt.Errorf("holding %s has no currency", h.Symbol)
	}
	if !h.AssetClass.Valid() {
		class, err := domain.ParseAssetClass(string(h.AssetClass))
		if err != nil {
			return err
		}
		h.AssetClass = class
	}
	if !h.Quantity.IsPositive() {
		return fmt.Errorf("holding %s quantity must be positive, retire it instead", h.Symbol)
	}
	if h.AveragePrice.IsNegative() {
		return fmt.Errorf("holding %s average price is negative", h.Symbol)
	}
	return nil
}
