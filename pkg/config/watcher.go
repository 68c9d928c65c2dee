package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads a document whenever its file changes.
type Watcher struct {
	loader *Loader
	delay  time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher that loads documents through loader.
// Bursts of events within delay are coalesced into one reload.
func NewWatcher(loader *Loader, delay time.Duration, logger zerolog.Logger) *Watcher {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Watcher{
		loader: loader,
		delay:  delay,
		logger: logger.With().Str("component", "watcher").Logger(),
	}
}

// Watch loads path once, then again after each change, passing every
// result to onChange. Editors often replace files instead of writing them,
// so the parent directory is watched and events are filtered by name.
// Watch blocks until ctx is done.
func (w *Watcher) Watch(ctx context.Context, path string, onChange func(*Document, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()
	defer w.Stop()

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	onChange(w.loader.Load(ctx, abs))

	w.logger.Info().Str("path", abs).Msg("Watching document")

	var reloadTimer *time.Timer
	reload := make(chan struct{}, 1)
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Document changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.delay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			doc, err := w.loader.Load(ctx, abs)
			if err != nil {
				w.logger.Warn().Err(err).Str("path", abs).Msg("Failed to reload document")
			}
			onChange(doc, err)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// Stop stops watching for file changes.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}
