package seed

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

const DefaultDebounce = 500 * time.Millisecond

// Watch calls resync after manifest files in dir change, coalescing bursts of
// writes within debounce. It blocks until ctx is done.
func Watch(ctx context.Context, dir string, debounce time.Duration, resync func(context.Context) error, log *logger.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed watching %s: %w", dir, err)
	}
	log = log.With("component", "TemplateWatcher", "dir", dir)
	log.Info("Watching template directory now...")

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Template watcher stopped")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isManifest(filepath.Base(ev.Name)) || ev.Op == fsnotify.Chmod {
				continue
			}
			log.Debug("Template manifest changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("Template watcher error", "error", err)
		case <-timer.C:
			if err := resync(ctx); err != nil {
				log.Error("Template resync failed", "error", err)
				continue
			}
			log.Info("Templates resynced :)")
		}
	}
}
