package objectstore

import (
	"context"
	"errors"
	"fmt"
)

// Mutator computes the next content of a key from its current content. Returning nil
// bytes with a nil error skips the write.
type Mutator func(current []byte, exists bool) ([]byte, error)

// Versioned performs optimistic-concurrency writes against a BlobStore.
type Versioned struct {
	blobs  BlobStore
	policy RetryPolicy
}

// NewVersioned wraps a BlobStore. The policy's attempt count bounds each read-then-write.
func NewVersioned(blobs BlobStore, policy RetryPolicy) *Versioned {
	return &Versioned{blobs: blobs, policy: policy}
}

// Blobs returns the underlying store.
func (v *Versioned) Blobs() BlobStore {
	return v.blobs
}

// Upload creates or replaces key with data.
func (v *Versioned) Upload(ctx context.Context, key string, data []byte, contentType string) (Reference, error) {
	return v.Update(ctx, key, contentType, func([]byte, bool) ([]byte, error) {
		return data, nil
	})
}

// VersionMarker returns the current marker of key, or ErrNotFound.
func (v *Versioned) VersionMarker(ctx context.Context, key string) (string, error) {
	blob, err := v.blobs.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return blob.Version, nil
}

// Update runs a read-modify-write cycle on key. A stale marker at write time re-reads
// and re-applies fn; once the attempts are spent the error wraps ErrConflict.
func (v *Versioned) Update(ctx context.Context, key, contentType string, fn Mutator) (Reference, error) {
	var ref Reference
	err := v.policy.Do(ctx, func() error {
		current, err := v.blobs.Get(ctx, key)
		exists := true
		if errors.Is(err, ErrNotFound) {
			current, exists = Blob{}, false
		} else if err != nil {
			return err
		}

		next, err := fn(current.Data, exists)
		if err != nil {
			return err
		}
		if next == nil {
			ref = Reference{Key: key, ID: current.Version}
			return nil
		}

		ref, err = v.blobs.Put(ctx, key, next, contentType, current.Version)
		return err
	})
	if errors.Is(err, ErrStaleVersion) {
		return Reference{}, fmt.Errorf("%w: %s: %w", ErrConflict, key, err)
	}
	if err != nil {
		return Reference{}, err
	}
	return ref, nil
}

func (v *Versioned) Ping(ctx context.Context) error {
	return Ping(ctx, v.blobs)
}
