package objectstore

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultAttempts bounds every read-then-write sequence.
	DefaultAttempts = 3
	defaultInterval = 200 * time.Millisecond
)

// RetryPolicy bounds how often a failed store call is attempted again.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
	// Notify is called before each retry.
	Notify func(err error, wait time.Duration)
}

// DefaultRetryPolicy is three attempts with a short constant pause.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: DefaultAttempts, Interval: defaultInterval}
}

// Do runs op until it succeeds, fails permanently or the attempts run out. Only
// ErrUnavailable and ErrStaleVersion are retried; the last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Interval)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	return backoff.RetryNotify(func() error {
		err := op()
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b, p.Notify)
}

func retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrStaleVersion)
}

// Retrying adds the bounded retry budget to a create-or-overwrite store.
type Retrying struct {
	store  Store
	policy RetryPolicy
}

// WithRetry wraps s so transient failures are retried under p.
func WithRetry(s Store, p RetryPolicy) *Retrying {
	return &Retrying{store: s, policy: p}
}

func (r *Retrying) Upload(ctx context.Context, key string, data []byte, contentType string) (Reference, error) {
	var ref Reference
	err := r.policy.Do(ctx, func() error {
		var err error
		ref, err = r.store.Upload(ctx, key, data, contentType)
		return err
	})
	if err != nil {
		return Reference{}, err
	}
	return ref, nil
}

func (r *Retrying) Ping(ctx context.Context) error {
	return Ping(ctx, r.store)
}
