package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// QuotePurger removes quote cache entries past stale retention.
type QuotePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// ClientDataPurger removes expired rows from every client data cache table.
type ClientDataPurger interface {
	DeleteAllExpired(ctx context.Context, retention time.Duration) (map[string]int64, error)
}

// QuoteCacheCleanupJob purges expired quote and exchange rate cache rows.
type QuoteCacheCleanupJob struct {
	quotes     QuotePurger
	clientData ClientDataPurger
	retention  time.Duration
	log        zerolog.Logger
}

// NewQuoteCacheCleanupJob creates the cleanup job. clientData may be nil
// when the quote cache does not use the sqlite client data store.
func NewQuoteCacheCleanupJob(quotes QuotePurger, clientData ClientDataPurger, retention time.Duration, log zerolog.Logger) *QuoteCacheCleanupJob {
	return &QuoteCacheCleanupJob{
		quotes:     quotes,
		clientData: clientData,
		retention:  retention,
		log:        log.With().Str("job", "quote_cache_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *QuoteCacheCleanupJob) Name() string {
	return "quote_cache_cleanup"
}

// Run executes the cleanup job
func (j *QuoteCacheCleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := j.quotes.PurgeExpired(ctx)
	if err != nil {
		return err
	}

	total := removed
	if j.clientData != nil {
		perTable, err := j.clientData.DeleteAllExpired(ctx, j.retention)
		if err != nil {
			return err
		}
		for table, n := range perTable {
			if n > 0 {
				j.log.Debug().Str("table", table).Int64("removed", n).Msg("Cache table purged")
			}
			total += n
		}
	}

	j.log.Info().Int64("removed", total).Msg("Quote cache cleanup completed")
	return nil
}
