// Package objectstore uploads survey media and ledger blobs to the configured backend.
//
// Two families of backends sit behind the same Store interface. Create-or-overwrite
// stores (Google Drive, MinIO) write unconditionally under a key. Versioned blob stores
// (GitHub, GCS, S3, memory) expose a version marker per key and reject writes made
// against a stale marker; Versioned turns them into a Store by re-reading and retrying
// within a bounded budget.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable covers auth, network and server-side failures.
	ErrUnavailable = errors.New("object store unavailable")
	// ErrRejected covers requests the store refuses permanently (quota, invalid metadata).
	ErrRejected = errors.New("object store rejected request")
	// ErrConflict is returned once optimistic-concurrency retries are exhausted.
	ErrConflict = errors.New("object store write conflict")
	// ErrNotFound reports a missing key on read.
	ErrNotFound = errors.New("object not found")
	// ErrStaleVersion reports a single write made against an outdated version marker.
	ErrStaleVersion = errors.New("stale version marker")
)

// Reference is the durable locator returned by a successful upload.
type Reference struct {
	Key string `json:"key"`
	ID  string `json:"id,omitempty"`
	URL string `json:"url"`
}

// Link returns the best human-resolvable locator.
func (r Reference) Link() string {
	if r.URL != "" {
		return r.URL
	}
	if r.ID != "" {
		return r.ID
	}
	return r.Key
}

// Store uploads bytes under a key.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (Reference, error)
}

// Blob is the current content of a key and its version marker.
type Blob struct {
	Data    []byte
	Version string
}

// BlobStore is a store with per-key version markers and conditional writes.
type BlobStore interface {
	// Get returns ErrNotFound when the key does not exist.
	Get(ctx context.Context, key string) (Blob, error)
	// Put creates the key when version is empty, otherwise replaces it only if the
	// current marker equals version. A mismatch returns ErrStaleVersion.
	Put(ctx context.Context, key string, data []byte, contentType, version string) (Reference, error)
}

// HealthChecker is implemented by backends that can verify connectivity.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Ping checks s when it supports health checks.
func Ping(ctx context.Context, s any) error {
	if hc, ok := s.(HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// ClassifyStatus maps an HTTP status returned by a backend to the package's error kinds.
// A zero status means the request never got a response.
func ClassifyStatus(status int, err error) error {
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		return fmt.Errorf("%w: %v", ErrStaleVersion, err)
	case status == 0,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
}
