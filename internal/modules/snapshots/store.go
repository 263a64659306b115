package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finvoice/riskengine/internal/database"
	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/risk"
	"github.com/finvoice/riskengine/internal/modules/valuation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store persists snapshots and assessments in the portfolio database.
// Rows are only ever inserted.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewStore creates a snapshot store over portfolio.db
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
		now: time.Now,
	}
}

// Append records v, and a when non-nil, in one transaction and returns the
// new snapshot id. Failures wrap domain.ErrSnapshotPersistence.
func (s *Store) Append(ctx context.Context, v *valuation.PortfolioValuation, a *risk.Assessment) (string, error) {
	id := uuid.NewString()
	createdAt := s.now().UTC()

	assessmentID := ""
	var payload []byte
	if a != nil {
		assessmentID = a.ID
		var err error
		payload, err = json.Marshal(a)
		if err != nil {
			appends.WithLabelValues("error").Inc()
			return "", fmt.Errorf("%w: failed to encode assessment: %w", domain.ErrSnapshotPersistence, err)
		}
	}

	snap := fromValuation(id, v, assessmentID, createdAt)
	allocJSON, err := json.Marshal(snap.AllocationBreakdown)
	if err != nil {
		appends.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: failed to encode allocation: %w", domain.ErrSnapshotPersistence, err)
	}
	sectorJSON, err := json.Marshal(snap.SectorBreakdown)
	if err != nil {
		appends.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: failed to encode sectors: %w", domain.ErrSnapshotPersistence, err)
	}
	holdingsJSON, err := json.Marshal(snap.HoldingsSummary)
	if err != nil {
		appends.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: failed to encode holdings: %w", domain.ErrSnapshotPersistence, err)
	}

	err = database.WithTransactionContext(ctx, s.db, func(tx *sql.Tx) error {
		var assessmentRef sql.NullString
		if a != nil {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO risk_assessments (id, portfolio_id, overall_score, risk_category, degraded, payload, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				a.ID, v.PortfolioID, a.OverallScore, a.Category, boolToInt(a.Degraded), string(payload), createdAt.UnixMilli(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert assessment: %w", err)
			}
			assessmentRef = sql.NullString{String: a.ID, Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO portfolio_snapshots (
				snapshot_id, portfolio_id, total_value, total_invested, total_pnl, total_pnl_percent,
				day_change, day_change_percent, allocation_breakdown, sector_breakdown, holdings_summary,
				market_status, degraded, assessment_id, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, snap.PortfolioID,
			snap.TotalValue.String(), snap.TotalInvested.String(), snap.TotalPnL.String(), snap.TotalPnLPercent,
			snap.DayChange.String(), snap.DayChangePercent,
			string(allocJSON), string(sectorJSON), string(holdingsJSON),
			snap.MarketStatus, boolToInt(snap.Degraded), assessmentRef, createdAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		appends.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Str("portfolio_id", v.PortfolioID).Msg("Failed to append snapshot")
		return "", fmt.Errorf("%w: %w", domain.ErrSnapshotPersistence, err)
	}

	appends.WithLabelValues("ok").Inc()
	s.log.Debug().
		Str("portfolio_id", v.PortfolioID).
		Str("snapshot_id", id).
		Bool("with_assessment", a != nil).
		Msg("Snapshot appended")

	return id, nil
}

// Query returns snapshots of portfolioID created in [from, to], most recently
// appended first. A zero to means no upper bound; limit <= 0 means no limit.
func (s *Store) Query(ctx context.Context, portfolioID string, from, to time.Time, limit int) ([]Snapshot, error) {
	upper := int64(1<<63 - 1)
	if !to.IsZero() {
		upper = to.UnixMilli()
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, snapshot_id, portfolio_id, total_value, total_invested, total_pnl, total_pnl_percent,
			day_change, day_change_percent, allocation_breakdown, sector_breakdown, holdings_summary,
			market_status, degraded, assessment_id, created_at
		FROM portfolio_snapshots
		WHERE portfolio_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY seq DESC
		LIMIT ?`,
		portfolioID, from.UnixMilli(), upper, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	out := []Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}

// History returns the last days of snapshots (clamped, see ClampHistoryDays),
// newest first, at most DefaultHistoryLimit.
func (s *Store) History(ctx context.Context, portfolioID string, days int) ([]Snapshot, error) {
	days = ClampHistoryDays(days)
	now := s.now().UTC()
	return s.Query(ctx, portfolioID, now.AddDate(0, 0, -days), time.Time{}, DefaultHistoryLimit)
}

// ListPortfolioIDs returns every portfolio with at least one snapshot.
func (s *Store) ListPortfolioIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT portfolio_id FROM portfolio_snapshots ORDER BY portfolio_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot portfolios: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAssessment loads a persisted assessment by id.
func (s *Store) GetAssessment(ctx context.Context, id string) (*risk.Assessment, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM risk_assessments WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load assessment %s: %w", id, err)
	}

	var a risk.Assessment
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("failed to decode assessment %s: %w", id, err)
	}
	return &a, nil
}

func scanSnapshot(rows *sql.Rows) (Snapshot, error) {
	var (
		snap                         Snapshot
		allocJSON, sectorJSON, hJSON string
		degraded                     int
		assessmentID                 sql.NullString
		createdAt                    int64
	)
	err := rows.Scan(
		&snap.Seq, &snap.ID, &snap.PortfolioID,
		&snap.TotalValue, &snap.TotalInvested, &snap.TotalPnL, &snap.TotalPnLPercent,
		&snap.DayChange, &snap.DayChangePercent,
		&allocJSON, &sectorJSON, &hJSON,
		&snap.MarketStatus, &degraded, &assessmentID, &createdAt,
	)
	if err != nil {
		return Snapshot{}, err
	}

	if err := json.Unmarshal([]byte(allocJSON), &snap.AllocationBreakdown); err != nil {
		return Snapshot{}, fmt.Errorf("allocation_breakdown: %w", err)
	}
	if err := json.Unmarshal([]byte(sectorJSON), &snap.SectorBreakdown); err != nil {
		return Snapshot{}, fmt.Errorf("sector_breakdown: %w", err)
	}
	if err := json.Unmarshal([]byte(hJSON), &snap.HoldingsSummary); err != nil {
		return Snapshot{}, fmt.Errorf("holdings_summary: %w", err)
	}

	snap.Degraded = degraded != 0
	snap.AssessmentID = assessmentID.String
	snap.CreatedAt = time.UnixMilli(createdAt).UTC()
	return snap, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
