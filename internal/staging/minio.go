package staging

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioStager stages uploads as objects in a MinIO (or S3-compatible)
// bucket. The object URL doubles as the media reference.
type MinioStager struct {
	client   *minio.Client
	bucket   string
	maxBytes int64
}

// NewMinioStager connects to the object store and ensures the bucket
// exists.
func NewMinioStager(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool, maxBytes int64) (*MinioStager, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("minio bucket create: %w", err)
		}
	}

	log.Info().
		Str("endpoint", endpoint).
		Str("bucket", bucket).
		Msg("Connected to media object store")

	return &MinioStager{client: cli, bucket: bucket, maxBytes: maxBytes}, nil
}

// Stage validates the upload and writes it as a bucket object.
func (s *MinioStager) Stage(ctx context.Context, up Upload) (*StagedFile, error) {
	if err := validate(up, s.maxBytes); err != nil {
		return nil, err
	}

	key := uniqueName(up.Filename)
	info, err := s.client.PutObject(ctx, s.bucket, key, up.Reader, up.Size, minio.PutObjectOptions{
		ContentType: up.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("stage object: %w", err)
	}

	log.Debug().
		Str("key", key).
		Int64("size", info.Size).
		Msg("Staged upload in object store")

	scheme := "http"
	if s.client.EndpointURL().Scheme == "https" {
		scheme = "https"
	}

	return &StagedFile{
		Key:  key,
		URL:  fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, key),
		Size: info.Size,
	}, nil
}

// Open streams the staged object back for the inference call.
func (s *MinioStager) Open(ctx context.Context, f *StagedFile) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, f.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open staged object: %w", err)
	}
	return obj, nil
}

// Release removes the staged object. RemoveObject on a missing key is
// a no-op server side, so the call is idempotent.
func (s *MinioStager) Release(ctx context.Context, f *StagedFile) error {
	err := s.client.RemoveObject(ctx, s.bucket, f.Key, minio.RemoveObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("release staged object: %w", err)
	}
	log.Debug().Str("key", f.Key).Msg("Released staged object")
	return nil
}
