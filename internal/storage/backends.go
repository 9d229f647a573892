package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/abduss/stopsurvey/internal/config"
	"github.com/abduss/stopsurvey/internal/ledger"
	"github.com/abduss/stopsurvey/internal/metrics"
	"github.com/abduss/stopsurvey/internal/objectstore"
	"github.com/abduss/stopsurvey/internal/presigned"
)

// Backends holds the media store and ledger selected by configuration.
type Backends struct {
	Store      objectstore.Store
	StoreName  string
	Ledger     ledger.Ledger
	LedgerName string
	// Presigned resolves stable media links to short-lived URLs; MinIO only.
	Presigned *presigned.Service

	closers []func() error
}

// Open connects the configured object store and ledger backends.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Backends, error) {
	if log == nil {
		log = zap.NewNop()
	}
	policy := RetryPolicy(cfg.ObjectStore, log)
	b := &Backends{StoreName: cfg.ObjectStore.Backend, LedgerName: cfg.Ledger.Backend}

	if err := b.openStore(ctx, cfg, policy); err != nil {
		return nil, multierr.Append(err, b.Close())
	}
	if err := b.openLedger(ctx, cfg, policy); err != nil {
		return nil, multierr.Append(err, b.Close())
	}

	log.Info("storage backends ready",
		zap.String("store", b.StoreName),
		zap.String("ledger", b.LedgerName),
		zap.Int("retry_attempts", policy.Attempts),
	)
	return b, nil
}

// RetryPolicy builds the object store retry budget and reports each retry.
func RetryPolicy(cfg config.ObjectStoreConfig, log *zap.Logger) objectstore.RetryPolicy {
	return objectstore.RetryPolicy{
		Attempts: cfg.RetryAttempts,
		Interval: cfg.RetryInterval,
		Notify: func(err error, wait time.Duration) {
			metrics.ObserveRetry()
			log.Warn("retrying object store call", zap.Duration("wait", wait), zap.Error(err))
		},
	}
}

// Checks returns the components the readiness check should ping.
func (b *Backends) Checks() map[string]any {
	return map[string]any{
		"store:" + b.StoreName:   b.Store,
		"ledger:" + b.LedgerName: b.Ledger,
	}
}

// Close releases backend clients.
func (b *Backends) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i]())
	}
	b.closers = nil
	return err
}

func (b *Backends) openStore(ctx context.Context, cfg config.Config, policy objectstore.RetryPolicy) error {
	switch cfg.ObjectStore.Backend {
	case config.BackendMinIO:
		client, err := NewMinIOClient(cfg.MinIO)
		if err != nil {
			return err
		}
		if err := EnsureBucket(ctx, client, cfg.MinIO.Bucket, cfg.MinIO.Region, policy); err != nil {
			return err
		}
		linkBase := strings.TrimRight(cfg.ObjectStore.PublicBaseURL, "/") + "/v1/media"
		b.Store = objectstore.WithRetry(objectstore.NewMinIO(client, cfg.MinIO.Bucket, linkBase), policy)
		b.Presigned = presigned.NewService(client, cfg.MinIO.Bucket, cfg.MinIO.PresignTTL)
		return nil

	case config.BackendDrive:
		svc, err := NewDriveService(ctx, cfg.Google)
		if err != nil {
			return err
		}
		b.Store = objectstore.WithRetry(objectstore.NewDrive(svc, cfg.Google.DriveFolderID, cfg.Google.ShareWithLink), policy)
		return nil

	default:
		blobs, err := b.openBlobs(ctx, cfg, cfg.ObjectStore.Backend)
		if err != nil {
			return err
		}
		b.Store = objectstore.NewVersioned(blobs, policy)
		return nil
	}
}

func (b *Backends) openLedger(ctx context.Context, cfg config.Config, policy objectstore.RetryPolicy) error {
	switch cfg.Ledger.Backend {
	case config.BackendSheets:
		svc, err := NewSheetsService(ctx, cfg.Google)
		if err != nil {
			return err
		}
		b.Ledger = ledger.NewSheets(svc, cfg.Google.SpreadsheetID)
		return nil

	case config.BackendPostgres:
		pool, err := NewPostgresPool(ctx, cfg.Postgres, policy)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		pg := ledger.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate ledger schema: %w", err)
		}
		b.Ledger = pg
		return nil

	case config.BackendCSV:
		blobs, err := b.openBlobs(ctx, cfg, cfg.Ledger.BlobBackend)
		if err != nil {
			return err
		}
		b.Ledger = ledger.NewCSV(blobs, policy, cfg.Ledger.Prefix)
		b.LedgerName = config.BackendCSV + "+" + cfg.Ledger.BlobBackend
		return nil

	default:
		return fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

// openBlobs builds a versioned blob backend: the media store for github, gcs, s3 and
// memory, and the csv ledger's storage.
func (b *Backends) openBlobs(ctx context.Context, cfg config.Config, backend string) (objectstore.BlobStore, error) {
	switch backend {
	case config.BackendGitHub:
		client, err := NewGitHubClient(cfg.GitHub)
		if err != nil {
			return nil, err
		}
		return objectstore.NewGitHub(client, objectstore.GitHubConfig{
			Owner:       cfg.GitHub.Owner,
			Repo:        cfg.GitHub.Repo,
			Branch:      cfg.GitHub.Branch,
			Prefix:      cfg.GitHub.Prefix,
			AuthorName:  cfg.GitHub.AuthorName,
			AuthorEmail: cfg.GitHub.AuthorEmail,
		}), nil

	case config.BackendGCS:
		client, err := NewGCSClient(ctx, cfg.Google, cfg.GCS)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		return objectstore.NewGCS(client, cfg.GCS.Bucket), nil

	case config.BackendS3:
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return objectstore.NewS3(client, cfg.S3.Bucket), nil

	case config.BackendMemory:
		return objectstore.NewMemory(backend), nil

	default:
		return nil, fmt.Errorf("backend %q has no versioned blob support", backend)
	}
}
