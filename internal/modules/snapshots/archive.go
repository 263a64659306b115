package snapshots

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ObjectUploader is the subset of the S3 upload manager the archiver needs.
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config locates the archive bucket. Endpoint is set for S3-compatible
// stores (MinIO, R2) and switches to path-style addressing.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Uploader builds an upload manager from cfg. Without static keys the
// default AWS credential chain is used.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*manager.Uploader, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return manager.NewUploader(client), nil
}

// archiveDocument is the body of one archive object.
type archiveDocument struct {
	PortfolioID string     `json:"portfolio_id"`
	Day         string     `json:"day"`
	ExportedAt  time.Time  `json:"exported_at"`
	Snapshots   []Snapshot `json:"snapshots"`
}

// Archiver exports daily snapshot history to object storage.
type Archiver struct {
	store    *Store
	uploader ObjectUploader
	bucket   string
	log      zerolog.Logger
	now      func() time.Time
}

// NewArchiver creates an archiver writing into bucket.
func NewArchiver(store *Store, uploader ObjectUploader, bucket string, log zerolog.Logger) *Archiver {
	return &Archiver{
		store:    store,
		uploader: uploader,
		bucket:   bucket,
		log:      log.With().Str("component", "snapshot_archive").Logger(),
		now:      time.Now,
	}
}

// ArchiveKey is the object key for one portfolio day.
func ArchiveKey(portfolioID string, day time.Time) string {
	return fmt.Sprintf("snapshots/%s/%s.json.gz", portfolioID, day.UTC().Format("2006-01-02"))
}

// ArchiveDay uploads the snapshots portfolioID recorded on the UTC day
// containing day. Days without snapshots upload nothing and return an empty key.
func (a *Archiver) ArchiveDay(ctx context.Context, portfolioID string, day time.Time) (string, int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Millisecond)

	snaps, err := a.store.Query(ctx, portfolioID, start, end, 0)
	if err != nil {
		return "", 0, err
	}
	if len(snaps) == 0 {
		return "", 0, nil
	}

	body, err := encodeArchive(archiveDocument{
		PortfolioID: portfolioID,
		Day:         start.Format("2006-01-02"),
		ExportedAt:  a.now().UTC(),
		Snapshots:   snaps,
	})
	if err != nil {
		return "", 0, err
	}

	key := ArchiveKey(portfolioID, start)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload %s: %w", key, err)
	}

	archivedObjects.Inc()
	a.log.Info().
		Str("portfolio_id", portfolioID).
		Str("key", key).
		Int("snapshots", len(snaps)).
		Msg("Snapshot history archived")

	return key, len(snaps), nil
}

// ArchivePreviousDay archives yesterday (UTC) for every portfolio with
// snapshots. It keeps going past individual failures and returns the first.
func (a *Archiver) ArchivePreviousDay(ctx context.Context) (int, error) {
	ids, err := a.store.ListPortfolioIDs(ctx)
	if err != nil {
		return 0, err
	}

	day := a.now().UTC().AddDate(0, 0, -1)
	uploaded := 0
	var firstErr error
	for _, id := range ids {
		key, _, err := a.ArchiveDay(ctx, id, day)
		if err != nil {
			a.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to archive snapshots")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if key != "" {
			uploaded++
		}
	}
	return uploaded, firstErr
}

func encodeArchive(doc archiveDocument) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress archive: %w", err)
	}
	return buf.Bytes(), nil
}
