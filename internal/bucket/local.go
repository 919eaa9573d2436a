package bucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

// Local keeps objects under a directory; the content type lives in a
// ".meta" sidecar next to each object.
type Local struct {
	root string
	log  *logger.Logger
}

func NewLocal(root string, log *logger.Logger) (*Local, error) {
	if root == "" {
		return nil, fmt.Errorf("BUCKET_LOCAL_DIR is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	log.Info("Local bucket ready :)", "root", root)
	return &Local{root: root, log: log}, nil
}

type localMeta struct {
	ContentType string `json:"contentType"`
}

func (l *Local) path(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

func (l *Local) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return err
	}
	meta, _ := json.Marshal(localMeta{ContentType: contentType})
	if err := os.WriteFile(p+".meta", meta, 0o644); err != nil {
		return err
	}
	l.log.Debug("stored object", "key", key, "size", size)
	return nil
}

func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	info := &ObjectInfo{Key: key, Size: st.Size(), ContentType: "application/octet-stream"}
	if raw, err := os.ReadFile(p + ".meta"); err == nil {
		var meta localMeta
		if json.Unmarshal(raw, &meta) == nil && meta.ContentType != "" {
			info.ContentType = meta.ContentType
		}
	}
	return f, info, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	_ = os.Remove(p + ".meta")
	return nil
}

func (l *Local) Driver() string { return "local" }
