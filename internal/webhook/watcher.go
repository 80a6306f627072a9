package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates cached tenant configuration when its YAML file changes.
type Watcher struct {
	dir     string
	store   *ConfigStore
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

func NewWatcher(dir string, store *ConfigStore, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:     dir,
		store:   store,
		logger:  logger.With("component", "webhook_config_watcher"),
		watcher: fw,
	}, nil
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	w.logger.Info("tenant config watcher started", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("tenant config watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("tenant config watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if filepath.Ext(event.Name) != ".yaml" {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	tenantID := strings.TrimSuffix(filepath.Base(event.Name), ".yaml")
	w.store.Invalidate(tenantID)

	w.logger.Debug("tenant config invalidated",
		"tenant_id", tenantID,
		"op", event.Op.String(),
	)
}
