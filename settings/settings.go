// Package settings provides on-disk storage for glosa user state and the
// service options that control how glosa runs.
//
// User state is stored in the XDG data directory:
//
//	$XDG_DATA_HOME/glosa/  (default: ~/.local/share/glosa/)
//
// Files stored:
//   - config.json: the user's configuration override, merged over the
//     bundled document on every load
//
// File permissions are 0600 (owner read/write only).
package settings

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dataDirName      = "glosa"
	overrideFileName = "config.json"
)

// ---------------------------------------------------------------------------
// File paths
// ---------------------------------------------------------------------------

// dataDir returns the XDG data directory for glosa.
// Respects $XDG_DATA_HOME (falls back to ~/.local/share).
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

// DataDir returns the glosa data directory path.
func DataDir() (string, error) {
	return dataDir()
}

// OverridePath returns the path of the persisted configuration override.
// Default: ~/.local/share/glosa/config.json.
func OverridePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, overrideFileName), nil
}

// ---------------------------------------------------------------------------
// Override file
// ---------------------------------------------------------------------------

// ReadOverride returns the raw override document at path.
// A missing file returns (nil, nil).
func ReadOverride(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading override: %w", err)
	}
	return data, nil
}

// WriteOverride writes the override document with 0600 permissions,
// creating the data directory as needed. The file is replaced atomically.
func WriteOverride(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("creating temp override: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing override: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting override permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing override: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing override: %w", err)
	}
	return nil
}

// RemoveOverride deletes the override file. A missing file is not an error.
func RemoveOverride(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing override: %w", err)
	}
	return nil
}
