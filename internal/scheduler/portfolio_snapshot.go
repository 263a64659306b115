package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PortfolioSnapshotter snapshots every known portfolio.
type PortfolioSnapshotter interface {
	SnapshotAll(ctx context.Context) (int, error)
}

// PortfolioSnapshotJob appends a valuation and risk assessment snapshot for
// every portfolio.
type PortfolioSnapshotJob struct {
	engine  PortfolioSnapshotter
	timeout time.Duration
	log     zerolog.Logger
}

// NewPortfolioSnapshotJob creates a snapshot job bounded by timeout per run.
func NewPortfolioSnapshotJob(engine PortfolioSnapshotter, timeout time.Duration, log zerolog.Logger) *PortfolioSnapshotJob {
	return &PortfolioSnapshotJob{
		engine:  engine,
		timeout: timeout,
		log:     log.With().Str("job", "portfolio_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *PortfolioSnapshotJob) Name() string {
	return "portfolio_snapshot"
}

// Run executes the snapshot job
func (j *PortfolioSnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	stored, err := j.engine.SnapshotAll(ctx)

	j.log.Info().
		Int("stored", stored).
		Dur("duration", time.Since(start)).
		Msg("Portfolio snapshots completed")

	return err
}
