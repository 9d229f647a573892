package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
)

type minioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// MinIO writes objects into a single bucket, overwriting existing keys.
type MinIO struct {
	client   minioAPI
	bucket   string
	linkBase string
}

// NewMinIO constructs a MinIO-backed store. linkBase, when set, prefixes the key in
// returned references (typically the API's media redirect route).
func NewMinIO(client minioAPI, bucket, linkBase string) *MinIO {
	return &MinIO{client: client, bucket: bucket, linkBase: strings.TrimRight(linkBase, "/")}
}

func (s *MinIO) Upload(ctx context.Context, key string, data []byte, contentType string) (Reference, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Reference{}, classifyMinIO(err)
	}

	return Reference{Key: key, ID: info.ETag, URL: s.link(key)}, nil
}

func (s *MinIO) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return classifyMinIO(err)
	}
	if !ok {
		return fmt.Errorf("%w: bucket %q does not exist", ErrUnavailable, s.bucket)
	}
	return nil
}

func (s *MinIO) link(key string) string {
	if s.linkBase == "" {
		return fmt.Sprintf("s3://%s/%s", s.bucket, key)
	}
	return s.linkBase + "/" + url.PathEscape(key)
}

func classifyMinIO(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "QuotaExceeded", resp.Code == "EntityTooLarge", resp.Code == "InvalidArgument":
		return fmt.Errorf("%w: %v", ErrRejected, err)
	case resp.Code == "NoSuchBucket", resp.StatusCode == http.StatusNotFound:
		// Writes never target an existing object, so a 404 means the bucket is gone.
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ClassifyStatus(resp.StatusCode, err)
}
