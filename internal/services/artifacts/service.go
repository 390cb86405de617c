package artifacts

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
)

var ErrValidation = errors.New("validation error")

const defaultURLTTL = 15 * time.Minute

// Service turns a project's stored download reference into a link the
// buyer can actually fetch. References come in two shapes: absolute
// URLs, handed back untouched, and object keys in the artifact bucket,
// signed for a short window.
type Service struct {
	client *minio.Client
	bucket string
	urlTTL time.Duration

	ensureOnce sync.Once
	ensureErr  error
}

func NewService(client *minio.Client, bucket string, urlTTL time.Duration) *Service {
	if urlTTL <= 0 {
		urlTTL = defaultURLTTL
	}

	return &Service{
		client: client,
		bucket: strings.TrimSpace(bucket),
		urlTTL: urlTTL,
	}
}

func (s *Service) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})

	if s.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", s.bucket, s.ensureErr)
	}

	return nil
}

// Resolve maps a download reference to a fetchable URL. Without an s3
// client the reference is returned as-is, which keeps externally
// hosted artifacts working in environments with no object store.
func (s *Service) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrValidation
	}
	if isAbsoluteURL(ref) {
		return ref, nil
	}
	if s.client == nil {
		return ref, nil
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, ref, s.urlTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign artifact %q: %w", ref, err)
	}

	return presigned.String(), nil
}

func isAbsoluteURL(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && u.Scheme != "" && u.Host != ""
}
