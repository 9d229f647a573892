package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCS stores blobs in a Cloud Storage bucket. The object generation is the version marker.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS constructs a bucket-backed blob store.
func NewGCS(client *storage.Client, bucket string) *GCS {
	return &GCS{client: client, bucket: bucket}
}

func (g *GCS) Get(ctx context.Context, key string) (Blob, error) {
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return Blob{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return Blob{}, classifyGoogle(err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return Blob{}, fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	return Blob{Data: data, Version: strconv.FormatInt(r.Attrs.Generation, 10)}, nil
}

func (g *GCS) Put(ctx context.Context, key string, data []byte, contentType, version string) (Reference, error) {
	obj := g.client.Bucket(g.bucket).Object(key)
	if version == "" {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	} else {
		gen, err := strconv.ParseInt(version, 10, 64)
		if err != nil {
			return Reference{}, fmt.Errorf("%w: bad generation %q", ErrRejected, version)
		}
		obj = obj.If(storage.Conditions{GenerationMatch: gen})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return Reference{}, classifyGoogle(err)
	}
	if err := w.Close(); err != nil {
		return Reference{}, classifyGoogle(err)
	}

	attrs := w.Attrs()
	ref := Reference{Key: key, URL: fmt.Sprintf("gs://%s/%s", g.bucket, key)}
	if attrs != nil {
		ref.ID = strconv.FormatInt(attrs.Generation, 10)
		if attrs.MediaLink != "" {
			ref.URL = attrs.MediaLink
		}
	}
	return ref, nil
}

func (g *GCS) Ping(ctx context.Context) error {
	if _, err := g.client.Bucket(g.bucket).Attrs(ctx); err != nil {
		return classifyGoogle(err)
	}
	return nil
}

// classifyGoogle maps googleapi errors shared by Drive, Sheets and Cloud Storage.
func classifyGoogle(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return ClassifyStatus(0, err)
	}
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "storageQuotaExceeded", "quotaExceeded", "teamDriveFileLimitExceeded":
			return fmt.Errorf("%w: %v", ErrRejected, err)
		}
	}
	return ClassifyStatus(apiErr.Code, err)
}
