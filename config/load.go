package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// bundledDefaults is the configuration document shipped with the binary.
//
//go:embed defaults.yaml
var bundledDefaults []byte

// BundledDocument returns a copy of the embedded configuration document.
func BundledDocument() []byte {
	out := make([]byte, len(bundledDefaults))
	copy(out, bundledDefaults)
	return out
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// Parse decodes a configuration document (JSON or YAML) over a copy of
// base. Keys absent from data keep base's value; a backend settings entry
// present in data replaces base's entry for that backend wholesale, and so
// does a language list.
func Parse(data []byte, base *Configuration) (*Configuration, error) {
	if base == nil {
		base = Default()
	}
	out := base.Clone()
	// decoders write list elements in place; entries must not inherit fields
	out.SupportedLanguages = nil
	out.DisabledLanguages = nil
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty configuration document")
	}

	if json.Valid([]byte(trimmed)) {
		if err := json.Unmarshal([]byte(trimmed), out); err != nil {
			return nil, fmt.Errorf("parsing JSON configuration: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("parsing YAML configuration: %w", err)
		}
	}

	keep := base.Clone()
	if out.SupportedLanguages == nil {
		out.SupportedLanguages = keep.SupportedLanguages
	}
	if out.DisabledLanguages == nil {
		out.DisabledLanguages = keep.DisabledLanguages
	}
	out.fillRequired()
	return out, nil
}

// ReadFile reads and parses a configuration document from disk over base.
// A missing file returns (nil, nil).
func ReadFile(path string, base *Configuration) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := Parse(data, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal renders a configuration as indented JSON, the format used for
// the persisted override file.
func Marshal(c *Configuration) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling configuration: %w", err)
	}
	return data, nil
}
