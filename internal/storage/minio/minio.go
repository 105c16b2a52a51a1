// Package minio stores uploads in MinIO or any S3-compatible service.
package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Skotchmaster/learnhub/internal/config"
)

// MaxPresignExpiry is the longest lifetime S3 accepts for a presigned URL.
const MaxPresignExpiry = 7 * 24 * time.Hour

type Store struct {
	client        *mclient.Client
	bucket        string
	publicBaseURL string
}

// New connects to the endpoint and makes sure the bucket exists.
func New(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	const op = "storage/minio/New"

	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, mclient.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("%s: create bucket %q: %w", op, cfg.Bucket, err)
		}
	}

	return &Store{client: client, bucket: cfg.Bucket, publicBaseURL: cfg.PublicBaseURL}, nil
}

func (s *Store) PutObject(ctx context.Context, name string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, body, size, mclient.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("storage/minio/PutObject: %w", err)
	}
	return nil
}

func (s *Store) RemoveObject(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, name, mclient.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage/minio/RemoveObject: %w", err)
	}
	return nil
}

// SignedURL returns a read-only presigned GET URL. Expiry is capped at
// MaxPresignExpiry. With a public base URL configured the stable public
// address is returned instead.
func (s *Store) SignedURL(ctx context.Context, name string, expiry time.Duration) (string, error) {
	if s.publicBaseURL != "" {
		return strings.TrimRight(s.publicBaseURL, "/") + "/" + name, nil
	}
	expiry = min(expiry, MaxPresignExpiry)
	u, err := s.client.PresignedGetObject(ctx, s.bucket, name, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("storage/minio/SignedURL: %w", err)
	}
	return u.String(), nil
}

// Ping is used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
