package bucket

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/logger"
)

type Minio struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// NewMinio connects and creates the bucket when it does not exist yet.
func NewMinio(ctx context.Context, cfg config.BucketConfig, log *logger.Logger) (*Minio, error) {
	if cfg.MinioEndpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is empty")
	}
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init MinIO client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check MinIO bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create MinIO bucket: %w", err)
		}
		log.Info("MinIO bucket created :)", "bucket", cfg.MinioBucket)
	} else {
		log.Info("MinIO bucket already exists :)", "bucket", cfg.MinioBucket)
	}
	return &Minio{client: client, bucket: cfg.MinioBucket, log: log}, nil
}

func (m *Minio) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if _, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	m.log.Debug("uploaded object", "key", key, "size", size)
	return nil
}

func (m *Minio) Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, nil, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, err
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, err
	}
	return obj, &ObjectInfo{Key: key, Size: st.Size, ContentType: st.ContentType}, nil
}

func (m *Minio) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

func (m *Minio) Driver() string { return "minio" }
