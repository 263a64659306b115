// Package portfolio orchestrates the engine: it loads holdings and crisis
// events, values the portfolio and runs risk, stress, allocation and
// snapshot operations over the valuation.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/finvoice/riskengine/internal/modules/allocation"
	"github.com/finvoice/riskengine/internal/modules/risk"
	"github.com/finvoice/riskengine/internal/modules/snapshots"
	"github.com/finvoice/riskengine/internal/modules/stress"
	"github.com/finvoice/riskengine/internal/modules/valuation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Valuator prices a list of holdings.
type Valuator interface {
	Valuate(ctx context.Context, portfolioID string, holdings []domain.Holding, forceRefresh bool) (*valuation.PortfolioValuation, error)
}

// SnapshotStore is the append-only valuation history.
type SnapshotStore interface {
	Append(ctx context.Context, v *valuation.PortfolioValuation, a *risk.Assessment) (string, error)
	History(ctx context.Context, portfolioID string, days int) ([]snapshots.Snapshot, error)
}

// Dependencies are the collaborators an Engine runs on.
type Dependencies struct {
	Holdings  domain.HoldingsProvider
	Crisis    domain.CrisisFeed
	Valuator  Valuator
	Risk      *risk.Engine
	Stress    *stress.Engine
	Optimizer *allocation.Optimizer
	Snapshots SnapshotStore
}

// Analysis bundles one valuation with the risk and stress results computed from it.
type Analysis struct {
	Valuation  *valuation.PortfolioValuation `json:"valuation"`
	Assessment *risk.Assessment              `json:"assessment"`
	Stress     *stress.Summary               `json:"stress"`
	Events     []domain.CrisisEvent          `json:"crisis_events"`
}

// SnapshotResult is the outcome of a snapshot request. When persistence
// fails the computed valuation is still returned with Persisted false.
type SnapshotResult struct {
	Valuation  *valuation.PortfolioValuation `json:"valuation"`
	Assessment *risk.Assessment              `json:"assessment,omitempty"`
	SnapshotID string                        `json:"snapshot_id,omitempty"`
	Error      string                        `json:"error,omitempty"`
	Persisted  bool                          `json:"persisted"`
}

// Engine is the facade the API, scheduler and stream use.
type Engine struct {
	deps Dependencies
	log  zerolog.Logger
}

// NewEngine creates the portfolio engine
func NewEngine(deps Dependencies, log zerolog.Logger) *Engine {
	return &Engine{
		deps: deps,
		log:  log.With().Str("component", "portfolio").Logger(),
	}
}

// Valuation values the active holdings of portfolioID.
func (e *Engine) Valuation(ctx context.Context, portfolioID string, forceRefresh bool) (*valuation.PortfolioValuation, error) {
	holdings, err := e.deps.Holdings.ListActiveHoldings(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}
	return e.deps.Valuator.Valuate(ctx, portfolioID, holdings, forceRefresh)
}

// Analyze values portfolioID and runs the stress library and risk metrics
// over that single valuation.
func (e *Engine) Analyze(ctx context.Context, portfolioID string) (*Analysis, error) {
	v, events, err := e.load(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	summary := e.deps.Stress.Run(v)
	return &Analysis{
		Valuation:  v,
		Stress:     summary,
		Assessment: e.deps.Risk.AssessWithStress(v, summary, events),
		Events:     events,
	}, nil
}

// RiskAssessment returns a fresh risk assessment for portfolioID.
func (e *Engine) RiskAssessment(ctx context.Context, portfolioID string) (*risk.Assessment, error) {
	a, err := e.Analyze(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	return a.Assessment, nil
}

// StressTest runs the scenario library against portfolioID.
func (e *Engine) StressTest(ctx context.Context, portfolioID string) (*stress.Summary, error) {
	v, err := e.Valuation(ctx, portfolioID, false)
	if err != nil {
		return nil, err
	}
	return e.deps.Stress.Run(v), nil
}

// Optimize validates req, then computes targets, hedges and rebalancing for
// portfolioID under the active crisis events.
func (e *Engine) Optimize(ctx context.Context, portfolioID string, req allocation.Request) (*allocation.Result, error) {
	if _, err := allocation.ParseRiskTolerance(req.RiskTolerance); err != nil {
		return nil, err
	}
	if err := allocation.ValidateHorizon(req.HorizonMonths); err != nil {
		return nil, err
	}

	v, events, err := e.load(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	return e.deps.Optimizer.Optimize(v, req, events)
}

// Snapshot values portfolioID and appends it to the history, with its risk
// assessment when persistAssessment is set. A storage failure is returned
// together with the computed result.
func (e *Engine) Snapshot(ctx context.Context, portfolioID string, persistAssessment bool) (*SnapshotResult, error) {
	result := &SnapshotResult{}

	var assessment *risk.Assessment
	if persistAssessment {
		analysis, err := e.Analyze(ctx, portfolioID)
		if err != nil {
			return nil, err
		}
		result.Valuation = analysis.Valuation
		assessment = analysis.Assessment
		result.Assessment = assessment
	} else {
		v, err := e.Valuation(ctx, portfolioID, false)
		if err != nil {
			return nil, err
		}
		result.Valuation = v
	}

	id, err := e.deps.Snapshots.Append(ctx, result.Valuation, assessment)
	if err != nil {
		if !errors.Is(err, domain.ErrSnapshotPersistence) {
			err = fmt.Errorf("%w: %w", domain.ErrSnapshotPersistence, err)
		}
		result.Error = err.Error()
		e.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Snapshot not persisted")
		return result, err
	}

	result.SnapshotID = id
	result.Persisted = true
	return result, nil
}

// History returns the last days of snapshots for portfolioID, newest first.
func (e *Engine) History(ctx context.Context, portfolioID string, days int) ([]snapshots.Snapshot, error) {
	return e.deps.Snapshots.History(ctx, portfolioID, snapshots.ClampHistoryDays(days))
}

// ActiveEvents returns the crisis feed's active events.
func (e *Engine) ActiveEvents(ctx context.Context) ([]domain.CrisisEvent, error) {
	if e.deps.Crisis == nil {
		return []domain.CrisisEvent{}, nil
	}
	return e.deps.Crisis.ListActiveEvents(ctx)
}

// SnapshotAll snapshots every portfolio the holdings provider knows about,
// persisting assessments. It returns how many snapshots were stored.
func (e *Engine) SnapshotAll(ctx context.Context) (int, error) {
	lister, ok := e.deps.Holdings.(domain.PortfolioLister)
	if !ok {
		return 0, fmt.Errorf("holdings provider cannot enumerate portfolios")
	}
	ids, err := lister.ListPortfolioIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list portfolios: %w", err)
	}

	stored := 0
	var firstErr error
	for _, id := range ids {
		start := time.Now()
		res, err := e.Snapshot(ctx, id, true)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		stored++
		e.log.Debug().
			Str("portfolio_id", id).
			Str("snapshot_id", res.SnapshotID).
			Dur("duration", time.Since(start)).
			Msg("Portfolio snapshot stored")
	}
	return stored, firstErr
}

// load reads holdings and crisis events concurrently, then values the
// holdings. A failing crisis feed degrades to no events.
func (e *Engine) load(ctx context.Context, portfolioID string) (*valuation.PortfolioValuation, []domain.CrisisEvent, error) {
	var (
		holdings []domain.Holding
		events   []domain.CrisisEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		holdings, err = e.deps.Holdings.ListActiveHoldings(gctx, portfolioID)
		if err != nil {
			return fmt.Errorf("failed to load holdings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		list, err := e.ActiveEvents(gctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("Crisis feed unavailable, continuing without events")
			return nil
		}
		events = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if events == nil {
		events = []domain.CrisisEvent{}
	}

	v, err := e.deps.Valuator.Valuate(ctx, portfolioID, holdings, false)
	if err != nil {
		return nil, nil, err
	}
	return v, events, nil
}
