// Package storage keeps pickup-request photos in S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// defaultRegion is used for request signing so presigning never has to look
// up the bucket location over the network.
const defaultRegion = "us-east-1"

// MinioConfig holds the connection settings for an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// MinioPhotoStore stores photos as objects in a single bucket.
type MinioPhotoStore struct {
	client *minio.Client
	bucket string
	region string
}

// NewMinioPhotoStore builds a client for cfg. It does not contact the server;
// call EnsureBucket at startup to verify connectivity.
func NewMinioPhotoStore(cfg MinioConfig) (*MinioPhotoStore, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage.NewMinioPhotoStore: %w", err)
	}
	return &MinioPhotoStore{client: client, bucket: cfg.Bucket, region: region}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *MinioPhotoStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("storage.MinioPhotoStore.EnsureBucket: check %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("storage.MinioPhotoStore.EnsureBucket: create %q: %w", s.bucket, err)
	}
	return nil
}

// Put uploads body under key, replacing any existing object.
func (s *MinioPhotoStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("storage.MinioPhotoStore.Put: %w", err)
	}
	return nil
}

// Exists reports whether an object is stored under key.
func (s *MinioPhotoStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("storage.MinioPhotoStore.Exists: %w", err)
}

// PresignGet returns a URL that downloads key without credentials until ttl elapses.
func (s *MinioPhotoStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("storage.MinioPhotoStore.PresignGet: %w", err)
	}
	return u.String(), nil
}
