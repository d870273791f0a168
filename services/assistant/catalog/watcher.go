// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the catalog file when it changes on disk.
//
// Description:
//
//	Watches the catalog file's parent directory (editors and scp replace
//	files rather than writing in place, which drops the watch on the file
//	itself). Events are debounced; a reload that fails keeps the previous
//	index live, so a half-written file can never take the service down.
//
// Thread Safety: Run is meant to be driven from a single goroutine, usually
// an errgroup alongside the HTTP server.
type Watcher struct {
	path     string
	loader   *Loader
	provider *Provider
	logger   *slog.Logger
	debounce time.Duration
}

// NewWatcher builds a Watcher over the given catalog file.
func NewWatcher(path string, loader *Loader, provider *Provider, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		loader:   loader,
		provider: provider,
		logger:   logger,
		debounce: 500 * time.Millisecond,
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("catalog watcher started", slog.String("path", w.path))

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Reset the debounce window on every burst event.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	idx, report, err := w.loader.LoadFile(w.path)
	if err != nil {
		w.logger.Error("catalog reload failed, keeping previous index",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
		return
	}
	w.provider.Swap(idx)
	w.logger.Info("catalog reloaded",
		slog.Int("courses", report.Courses),
		slog.Int("sections", report.Sections))
}
