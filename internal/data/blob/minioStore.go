package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/customHttpClient"
	"github.com/akolanti/docproc/pkg/logger_i"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore fronts any S3-compatible endpoint; locally that is MinIO, in
// production the same code points at S3.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *logger_i.Logger
}

func GetMinioStore(ctx context.Context) (*MinioStore, error) {
	log := logger_i.NewLogger("BlobStore")

	client, err := minio.New(config.MinioEndpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(config.MinioAccessKey, config.MinioSecretKey, ""),
		Secure:    config.MinioUseSSL,
		Transport: customHttpClient.Transport(),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing blob client: %w", err)
	}

	store := &MinioStore{
		client: client,
		bucket: config.MinioBucket,
		logger: log,
	}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}

	log.Info("Blob store ready", "endpoint", config.MinioEndpoint, "bucket", config.MinioBucket)
	return store, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(checkCtx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(checkCtx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %q: %w", s.bucket, err)
	}
	s.logger.Info("Created blob bucket", "bucket", s.bucket)
	return nil
}

func (s *MinioStore) Put(ctx context.Context, handle string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, handle, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("storing blob %q: %w", handle, err)
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, handle string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucket, handle, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching blob %q: %w", handle, err)
	}
	// GetObject is lazy; surface missing objects here instead of at first read.
	if _, err := object.Stat(); err != nil {
		_ = object.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching blob %q: %w", handle, err)
	}
	return object, nil
}

func (s *MinioStore) Delete(ctx context.Context, handle string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, handle, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("deleting blob %q: %w", handle, err)
	}
	return nil
}
