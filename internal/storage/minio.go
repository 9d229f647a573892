package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/abduss/stopsurvey/internal/config"
	"github.com/abduss/stopsurvey/internal/objectstore"
)

const bucketCallTimeout = 5 * time.Second

// NewMinIOClient builds a MinIO client. The endpoint may carry an http:// or https://
// scheme, which overrides UseSSL.
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	endpoint, secure, err := minioEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

func minioEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("minio endpoint is required")
	}
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse minio endpoint: %w", err)
		}
		switch u.Scheme {
		case "http":
			useSSL = false
		case "https":
			useSSL = true
		default:
			return "", false, fmt.Errorf("unsupported minio endpoint scheme %q", u.Scheme)
		}
		raw = u.Host
	}
	if !strings.Contains(raw, ":") {
		raw += ":9000"
	}
	return raw, useSSL, nil
}

type bucketAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// EnsureBucket creates the media bucket when missing. A MinIO that is still starting is
// retried under policy.
func EnsureBucket(ctx context.Context, client bucketAPI, bucket, region string, policy objectstore.RetryPolicy) error {
	err := policy.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, bucketCallTimeout)
		defer cancel()

		exists, err := client.BucketExists(callCtx, bucket)
		if err != nil {
			return bucketError(err)
		}
		if exists {
			return nil
		}
		err = client.MakeBucket(callCtx, bucket, minio.MakeBucketOptions{Region: region})
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return bucketError(err)
	})
	if err != nil {
		return fmt.Errorf("ensure bucket %q: %w", bucket, err)
	}
	return nil
}

func bucketError(err error) error {
	if err == nil {
		return nil
	}
	return objectstore.ClassifyStatus(minio.ToErrorResponse(err).StatusCode, err)
}
