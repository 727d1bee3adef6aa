package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/minios-linux/glosa/settings"
)

// watchDebounce coalesces the burst of events an editor or an atomic
// rename produces for one logical save.
const watchDebounce = 250 * time.Millisecond

// Watch calls onChange whenever the override file is written, created,
// removed or renamed by someone other than this store, until ctx is done.
// The parent directory is watched so that atomic replaces and first-time
// creation are seen.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	path := s.opts.OverridePath
	if path == "" {
		return fmt.Errorf("no override path to watch")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				log.Debugf("configuration override changed: %s", event)
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() {
					if s.ownWrite(path) {
						return
					}
					onChange()
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("configuration watcher error")
			}
		}
	}()
	return nil
}

// ownWrite reports whether the override currently holds the document this
// store last wrote.
func (s *Store) ownWrite(path string) bool {
	data, err := settings.ReadOverride(path)
	if err != nil || data == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.written != nil && bytes.Equal(data, s.written)
}
