package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/finvoice/riskengine/internal/config"
	"github.com/finvoice/riskengine/internal/database"
	"github.com/finvoice/riskengine/internal/scheduler"
)

const (
	quoteCacheCleanupSchedule = "0 15 3 * * *"
	walCheckSchedule          = "0 */30 * * * *"
	snapshotJobTimeout        = 10 * time.Minute
)

// RegisterJobs creates the background jobs and schedules them on a new
// scheduler stored in the container
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	sched := scheduler.New(log)
	container.Scheduler = sched
	instances := &JobInstances{}

	instances.PortfolioSnapshot = scheduler.NewPortfolioSnapshotJob(container.Engine, snapshotJobTimeout, log)
	if cfg.SnapshotSchedule != "" {
		if err := sched.AddJob(cfg.SnapshotSchedule, instances.PortfolioSnapshot); err != nil {
			return nil, fmt.Errorf("failed to schedule portfolio snapshots: %w", err)
		}
	}

	// The sqlite client data store backs exchange rates for every quote
	// cache backend.
	instances.QuoteCacheCleanup = scheduler.NewQuoteCacheCleanupJob(container.QuoteService, container.ClientDataRepo, cfg.Quotes.StaleRetention, log)
	if err := sched.AddJob(quoteCacheCleanupSchedule, instances.QuoteCacheCleanup); err != nil {
		return nil, fmt.Errorf("failed to schedule quote cache cleanup: %w", err)
	}

	if container.Archiver != nil {
		instances.SnapshotArchive = scheduler.NewSnapshotArchiveJob(container.Archiver, log)
		if err := sched.AddJob(cfg.Archive.Schedule, instances.SnapshotArchive); err != nil {
			return nil, fmt.Errorf("failed to schedule snapshot archive: %w", err)
		}
	}

	instances.CheckWALCheckpoints = scheduler.NewCheckWALCheckpointsJob(map[string]*database.DB{
		"portfolio": container.PortfolioDB,
		"cache":     container.CacheDB,
	}, log)
	if err := sched.AddJob(walCheckSchedule, instances.CheckWALCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to schedule WAL checks: %w", err)
	}

	log.Info().Msg("Background jobs registered")
	return instances, nil
}
