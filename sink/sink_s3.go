package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores each object with a single PutObject call under bucket/prefix.
// S3 objects cannot be appended to, so every key is written once.
type S3 struct {
	client s3API

	bucket    string
	bucketPtr *string
	prefix    string
}

func NewS3(client s3API, bucket, prefix string) *S3 {
	if client == nil {
		panic("s3 client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		panic("bucket is required")
	}

	s := &S3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
	s.bucketPtr = &s.bucket
	return s
}

func (s *S3) objectKey(key string) string {
	// Keys keep S3 semantics: no path cleaning.
	key = strings.TrimLeft(key, "/")
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	return key
}

// Location returns the s3:// URI key is stored at.
func (s *S3) Location(key string) string {
	return "s3://" + s.bucket + "/" + s.objectKey(key)
}

func (s *S3) Write(ctx context.Context, req WriteRequest) error {
	if req.Key == "" {
		return fmt.Errorf("empty key")
	}

	key := s.objectKey(req.Key)
	cl := int64(len(req.Data))

	var body bytes.Reader
	body.Reset(req.Data)

	input := s3.PutObjectInput{
		Bucket:        s.bucketPtr,
		Key:           &key,
		Body:          &body,
		ContentLength: &cl,
	}
	if req.ContentType != "" {
		ct := req.ContentType
		input.ContentType = &ct
	}

	if _, err := s.client.PutObject(ctx, &input); err != nil {
		return fmt.Errorf("put s3 object key=%q: %w", key, err)
	}
	return nil
}

// RetryableS3Error reports whether a failed S3 write is worth another
// attempt. Cancellation and client faults such as a missing bucket or a
// denied request are final.
func RetryableS3Error(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient {
		return false
	}
	return true
}
