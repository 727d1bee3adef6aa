package config

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/minios-linux/glosa/settings"
)

// ErrLoad marks a configuration load that fell back to defaults. Callers
// never see it as a request failure; the coordinator uses it to enter its
// partial-error state.
var ErrLoad = errors.New("configuration load failed")

// StoreOptions configures where the store reads and writes documents.
type StoreOptions struct {
	// BundledPath replaces the embedded bundled document when set.
	BundledPath string
	// OverridePath is the persisted user override.
	OverridePath string
}

// Store owns the active configuration. The active value is replaced
// wholesale on Load, Update and Reset and never edited in place.
type Store struct {
	opts StoreOptions

	mu      sync.RWMutex
	current *Configuration
	// written is the last document Update persisted; the watcher ignores
	// change events that leave the file at exactly this content.
	written []byte
}

// NewStore creates a store holding Default() until Load is called.
func NewStore(opts StoreOptions) *Store {
	return &Store{opts: opts, current: Default()}
}

// OverridePath returns the path of the persisted override.
func (s *Store) OverridePath() string { return s.opts.OverridePath }

// Current returns a copy of the active configuration.
func (s *Store) Current() *Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

func (s *Store) set(c *Configuration) {
	s.mu.Lock()
	s.current = c
	s.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Load / Update / Reset
// ---------------------------------------------------------------------------

// Load builds the active configuration: hardcoded defaults, then the
// bundled document, then the persisted override. It always returns a
// usable configuration. A non-nil error wraps ErrLoad and means some
// layer was skipped.
func (s *Store) Load() (*Configuration, error) {
	cfg, bundledErr := s.loadBundled()

	var overrideErr error
	if s.opts.OverridePath != "" {
		data, err := settings.ReadOverride(s.opts.OverridePath)
		switch {
		case err != nil:
			overrideErr = err
		case data != nil:
			merged, err := Parse(data, cfg)
			if err != nil {
				overrideErr = fmt.Errorf("%s: %w", s.opts.OverridePath, err)
			} else {
				cfg = merged
			}
		}
		if overrideErr != nil {
			log.WithError(overrideErr).Warn("ignoring unreadable configuration override")
		}
	}

	s.set(cfg)
	if err := errors.Join(bundledErr, overrideErr); err != nil {
		return cfg.Clone(), fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return cfg.Clone(), nil
}

func (s *Store) loadBundled() (*Configuration, error) {
	if s.opts.BundledPath != "" {
		cfg, err := ReadFile(s.opts.BundledPath, Default())
		if err != nil {
			log.WithError(err).Warn("bundled configuration unreadable, using defaults")
			return Default(), err
		}
		if cfg == nil {
			err := fmt.Errorf("bundled configuration %s not found", s.opts.BundledPath)
			log.WithError(err).Warn("using default configuration")
			return Default(), err
		}
		return cfg, nil
	}

	cfg, err := Parse(bundledDefaults, Default())
	if err != nil {
		log.WithError(err).Warn("embedded configuration unreadable, using defaults")
		return Default(), err
	}
	return cfg, nil
}

// Update validates c, persists it as the user override and makes it the
// active configuration.
func (s *Store) Update(c *Configuration) error {
	if c == nil {
		return fmt.Errorf("configuration is empty")
	}
	next := c.Clone()
	next.fillRequired()
	if err := Validate(next); err != nil {
		return err
	}

	if s.opts.OverridePath != "" {
		data, err := Marshal(next)
		if err != nil {
			return err
		}
		if err := settings.WriteOverride(s.opts.OverridePath, data); err != nil {
			return fmt.Errorf("persisting configuration: %w", err)
		}
		s.mu.Lock()
		s.written = data
		s.mu.Unlock()
	}

	s.set(next)
	return nil
}

// Reset discards the persisted override and reloads the bundled document.
func (s *Store) Reset() (*Configuration, error) {
	if s.opts.OverridePath != "" {
		if err := settings.RemoveOverride(s.opts.OverridePath); err != nil {
			return s.Current(), err
		}
	}
	return s.Load()
}
