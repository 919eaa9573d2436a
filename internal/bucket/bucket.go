package bucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/logger"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// Bucket stores uploads, archives, avatars and thumbnails by key.
type Bucket interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Driver() string
}

// New builds the backend selected by BUCKET_DRIVER.
func New(ctx context.Context, cfg config.BucketConfig, log *logger.Logger) (Bucket, error) {
	log = log.With("service", "BucketService", "driver", cfg.Driver)
	log.Info("Setting up bucket backend now...")
	switch cfg.Driver {
	case "local":
		return NewLocal(cfg.LocalDir, log)
	case "gcs":
		return NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile, log)
	case "minio":
		return NewMinio(ctx, cfg, log)
	}
	return nil, fmt.Errorf("unknown bucket driver %q", cfg.Driver)
}

// CleanKey rejects keys that would escape the bucket root.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	return path.Clean(key), nil
}
