package bucket

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

type GCS struct {
	client *storage.Client
	bucket string
	log    *logger.Logger
}

func NewGCS(ctx context.Context, bucketName, credentialsFile string, log *logger.Logger) (*GCS, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("GCS_BUCKET is empty")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	log.Info("GCS bucket client ready :)", "bucket", bucketName)
	return &GCS{client: client, bucket: bucketName, log: log}, nil
}

func (g *GCS) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS upload: %w", err)
	}
	g.log.Debug("uploaded object", "key", key, "size", size)
	return nil
}

func (g *GCS) Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, nil, err
	}
	rd, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return rd, &ObjectInfo{Key: key, Size: rd.Attrs.Size, ContentType: rd.Attrs.ContentType}, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	err = g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

func (g *GCS) Driver() string { return "gcs" }
