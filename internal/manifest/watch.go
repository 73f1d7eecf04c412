package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch observes the manifest source and invokes fn after it changes,
// debounced so editor write bursts trigger a single reload. Blocks
// until ctx is canceled. Watching the parent directory rather than the
// file itself survives rename-based atomic saves.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *zap.Logger, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating manifest watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving manifest path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	// A directory source needs its own watch too: the parent watch
	// only sees the directory entry itself, not edits to the
	// descriptor files inside it.
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		if err := watcher.Add(abs); err != nil {
			return fmt.Errorf("watching %s: %w", abs, err)
		}
	}

	logger.Info("watching manifest for changes",
		zap.String("source", abs),
		zap.Duration("debounce", debounce),
	)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, abs) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-timerC:
			logger.Info("manifest changed, reloading", zap.String("source", abs))
			fn()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("manifest watcher error", zap.Error(err))
		}
	}
}

// relevant reports whether the event touches the watched manifest. A
// directory source reacts to any write or create under it.
func relevant(event fsnotify.Event, abs string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	if event.Name == abs {
		return true
	}
	return filepath.Dir(event.Name) == abs
}
