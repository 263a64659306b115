package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshotter struct {
	stored   int
	err      error
	deadline bool
}

func (f *fakeSnapshotter) SnapshotAll(ctx context.Context) (int, error) {
	_, f.deadline = ctx.Deadline()
	return f.stored, f.err
}

type fakeQuotePurger struct{ removed int64 }

func (f *fakeQuotePurger) PurgeExpired(ctx context.Context) (int64, error) {
	return f.removed, nil
}

type fakeClientData struct {
	retention time.Duration
	err       error
}

func (f *fakeClientData) DeleteAllExpired(ctx context.Context, retention time.Duration) (map[string]int64, error) {
	f.retention = retention
	return map[string]int64{"quotes": 3, "exchange_rates": 1}, f.err
}

type fakeArchiver struct {
	calls int
	err   error
}

func (f *fakeArchiver) ArchivePreviousDay(ctx context.Context) (int, error) {
	f.calls++
	return 1, f.err
}

func TestPortfolioSnapshotJob(t *testing.T) {
	engine := &fakeSnapshotter{stored: 3}
	job := NewPortfolioSnapshotJob(engine, time.Minute, zerolog.Nop())

	assert.Equal(t, "portfolio_snapshot", job.Name())
	require.NoError(t, job.Run())
	assert.True(t, engine.deadline)

	engine.err = errors.New("store down")
	assert.Error(t, job.Run())
}

func TestQuoteCacheCleanupJob(t *testing.T) {
	clientData := &fakeClientData{}
	job := NewQuoteCacheCleanupJob(&fakeQuotePurger{removed: 2}, clientData, 24*time.Hour, zerolog.Nop())

	assert.Equal(t, "quote_cache_cleanup", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 24*time.Hour, clientData.retention)

	clientData.err = errors.New("locked")
	assert.Error(t, job.Run())

	noClientData := NewQuoteCacheCleanupJob(&fakeQuotePurger{}, nil, time.Hour, zerolog.Nop())
	assert.NoError(t, noClientData.Run())
}

func TestSnapshotArchiveJob(t *testing.T) {
	archiver := &fakeArchiver{}
	job := NewSnapshotArchiveJob(archiver, zerolog.Nop())

	assert.Equal(t, "snapshot_archive", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 1, archiver.calls)
}

type countingJob struct{ runs int }

func (c *countingJob) Run() error   { c.runs++; return nil }
func (c *countingJob) Name() string { return "counting" }

func TestScheduler_AddJobAndRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.AddJob("0 */5 * * * *", job))
	assert.Error(t, s.AddJob("not a schedule", job))

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	s.Start()
	s.Stop()
}
