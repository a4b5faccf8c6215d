package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is how long to wait for more changes before re-running.
const watchDebounce = 300 * time.Millisecond

// watchFile calls run once, then again after every change to path, until ctx
// is done. The parent directory is watched so editors that replace the file
// on save are followed. Errors from run are logged and do not stop the watch.
func watchFile(ctx context.Context, logger *slog.Logger, path string, run func(context.Context) error) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	rerun := func() {
		if err := run(ctx); err != nil {
			logger.Error("Query failed", "file", path, "error", err)
		}
	}
	rerun()
	logger.Info("Watching query file", "file", path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				logger.Debug("Query file changed", "file", path, "op", event.Op.String())
				pending = time.After(watchDebounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("Watcher error", "error", err)

		case <-pending:
			pending = nil
			rerun()
		}
	}
}
