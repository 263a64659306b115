package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotArchiver exports yesterday's snapshots to object storage.
type SnapshotArchiver interface {
	ArchivePreviousDay(ctx context.Context) (int, error)
}

// SnapshotArchiveJob uploads the previous day's snapshot history.
type SnapshotArchiveJob struct {
	archiver SnapshotArchiver
	log      zerolog.Logger
}

// NewSnapshotArchiveJob creates the archive job
func NewSnapshotArchiveJob(archiver SnapshotArchiver, log zerolog.Logger) *SnapshotArchiveJob {
	return &SnapshotArchiveJob{
		archiver: archiver,
		log:      log.With().Str("job", "snapshot_archive").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotArchiveJob) Name() string {
	return "snapshot_archive"
}

// Run executes the archive job
func (j *SnapshotArchiveJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	uploaded, err := j.archiver.ArchivePreviousDay(ctx)
	j.log.Info().Int("objects", uploaded).Msg("Snapshot archive completed")
	return err
}
