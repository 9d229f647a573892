package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3 stores blobs in an S3-compatible bucket using conditional writes. The ETag is
// the version marker.
type S3 struct {
	client s3API
	bucket string
}

// NewS3 constructs a bucket-backed blob store.
func NewS3(client s3API, bucket string) *S3 {
	return &S3{client: client, bucket: bucket}
}

func (s *S3) Get(ctx context.Context, key string) (Blob, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Blob{}, classifyS3(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Blob{}, fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	return Blob{Data: data, Version: aws.ToString(out.ETag)}, nil
}

func (s *S3) Put(ctx context.Context, key string, data []byte, contentType, version string) (Reference, error) {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if version == "" {
		in.IfNoneMatch = aws.String("*")
	} else {
		in.IfMatch = aws.String(version)
	}

	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		return Reference{}, classifyS3(err)
	}
	return Reference{
		Key: key,
		ID:  aws.ToString(out.ETag),
		URL: fmt.Sprintf("s3://%s/%s", s.bucket, key),
	}, nil
}

func (s *S3) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return classifyS3(err)
	}
	return nil
}

func classifyS3(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return fmt.Errorf("%w: %v", ErrStaleVersion, err)
		case "EntityTooLarge", "InvalidArgument", "QuotaExceeded":
			return fmt.Errorf("%w: %v", ErrRejected, err)
		}
	}

	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) {
		return ClassifyStatus(withStatus.HTTPStatusCode(), err)
	}
	return ClassifyStatus(0, err)
}
