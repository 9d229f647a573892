package presigned

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidKey is returned for keys that could escape the media bucket namespace.
var ErrInvalidKey = errors.New("invalid media key")

type presigner interface {
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// Service mints short-lived download links for stored survey media, so the stable
// links written into ledgers never expire.
type Service struct {
	client  presigner
	bucket  string
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewService(client presigner, bucket string, ttl time.Duration) *Service {
	return &Service{
		client:  client,
		bucket:  bucket,
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// MediaURL returns a presigned GET URL for key and its expiry.
func (s *Service) MediaURL(ctx context.Context, key string) (string, time.Time, error) {
	key = strings.TrimPrefix(key, "/")
	if !validKey(key) {
		return "", time.Time{}, ErrInvalidKey
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, make(url.Values))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), s.nowFunc().Add(s.ttl), nil
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
