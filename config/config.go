// Package config holds the translation configuration document: global
// defaults, the language catalog, the active backend and the opaque
// per-backend settings. It loads the bundled document, merges the user
// override on top and keeps the active copy for the coordinator.
package config

import (
	"encoding/json"
	"strings"
)

// Backend identifiers known to the bundled configuration.
const (
	BackendOllama    = "ollama"
	BackendChromeAPI = "chromeApi"
)

// Translation styles.
const (
	StyleNatural = "natural"
	StyleLiteral = "literal"
)

// CurrentVersion is the document version written by Default().
const CurrentVersion = "1.0"

// ---------------------------------------------------------------------------
// Document schema
// ---------------------------------------------------------------------------

// Configuration is the whole translation configuration document.
// The same camelCase names are used for JSON (wire, override file) and
// YAML (bundled file).
type Configuration struct {
	Version                 string          `json:"version" yaml:"version"`
	DefaultSourceLanguage   string          `json:"defaultSourceLanguage" yaml:"defaultSourceLanguage"`
	DefaultTargetLanguage   string          `json:"defaultTargetLanguage" yaml:"defaultTargetLanguage"`
	DefaultTranslationStyle string          `json:"defaultTranslationStyle" yaml:"defaultTranslationStyle"`
	SupportedLanguages      []LanguageEntry `json:"supportedLanguages" yaml:"supportedLanguages"`
	DisabledLanguages       []LanguageEntry `json:"disabledLanguages" yaml:"disabledLanguages"`
	ActiveBackend           string          `json:"activeBackend" yaml:"activeBackend"`
	// BackendSettings maps a backend identifier to that backend's settings.
	// Each provider decodes its own slice; the store never looks inside.
	BackendSettings map[string]any `json:"backendSettings" yaml:"backendSettings"`
}

// LanguageEntry is one language in the supported or disabled list.
// Enabled is optional in the document and defaults to true for supported
// entries.
type LanguageEntry struct {
	Code    string `json:"code" yaml:"code"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// ---------------------------------------------------------------------------
// Hardcoded defaults
// ---------------------------------------------------------------------------

// Default returns the hardcoded minimal configuration. It is used before
// anything is loaded, as the base every loaded document is merged over, and
// whenever the loaded document is unusable.
func Default() *Configuration {
	return &Configuration{
		Version:                 CurrentVersion,
		DefaultSourceLanguage:   "auto",
		DefaultTargetLanguage:   "en",
		DefaultTranslationStyle: StyleNatural,
		SupportedLanguages: []LanguageEntry{
			{Code: "en", Name: "English"},
			{Code: "ja", Name: "Japanese"},
		},
		DisabledLanguages: []LanguageEntry{},
		ActiveBackend:     BackendOllama,
		BackendSettings: map[string]any{
			BackendOllama: map[string]any{
				"models": []any{
					map[string]any{
						"id":          "llama3.2",
						"displayName": "Llama 3.2",
						"endpoint":    "http://localhost:11434/api/generate",
						"isDefault":   true,
					},
				},
				"languagePairPreferences": []any{},
			},
			BackendChromeAPI: map[string]any{
				"endpoint":         "http://localhost:5000",
				"fallbackLanguage": "en",
			},
		},
	}
}

// fillRequired restores required fields that a loaded document blanked out.
func (c *Configuration) fillRequired() {
	def := Default()
	if strings.TrimSpace(c.Version) == "" {
		c.Version = def.Version
	}
	if strings.TrimSpace(c.DefaultSourceLanguage) == "" {
		c.DefaultSourceLanguage = def.DefaultSourceLanguage
	}
	if strings.TrimSpace(c.DefaultTargetLanguage) == "" {
		c.DefaultTargetLanguage = def.DefaultTargetLanguage
	}
	if c.DefaultTranslationStyle != StyleNatural && c.DefaultTranslationStyle != StyleLiteral {
		c.DefaultTranslationStyle = def.DefaultTranslationStyle
	}
	if strings.TrimSpace(c.ActiveBackend) == "" {
		c.ActiveBackend = def.ActiveBackend
	}
	if c.SupportedLanguages == nil {
		c.SupportedLanguages = def.SupportedLanguages
	}
	if c.DisabledLanguages == nil {
		c.DisabledLanguages = []LanguageEntry{}
	}
	if c.BackendSettings == nil {
		c.BackendSettings = map[string]any{}
	}
}

// HasBackendSettings reports whether the document carries a settings entry
// for the given backend.
func (c *Configuration) HasBackendSettings(backend string) bool {
	v, ok := c.BackendSettings[backend]
	return ok && v != nil
}

// Clone returns a deep copy, so callers can edit without touching the
// shared active configuration.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		// Only reachable with non-JSON values smuggled into BackendSettings.
		cp := *c
		return &cp
	}
	var out Configuration
	if err := json.Unmarshal(data, &out); err != nil {
		cp := *c
		return &cp
	}
	out.fillRequired()
	return &out
}
