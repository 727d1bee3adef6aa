package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ---------------------------------------------------------------------------
// Local-model backend settings
// ---------------------------------------------------------------------------

// ModelDescriptor is one selectable model of a multi-model backend.
type ModelDescriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	// Endpoint is the generation endpoint URL, e.g.
	// http://localhost:11434/api/generate.
	Endpoint  string `json:"endpoint"`
	IsDefault bool   `json:"isDefault,omitempty"`
	// PromptTemplates maps a style name to a template using the
	// {sourceLanguage}, {targetLanguage} and {text} placeholders.
	PromptTemplates map[string]string `json:"promptTemplates,omitempty"`
}

// Label returns the display name, or the id when none is set.
func (m ModelDescriptor) Label() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.ID
}

// LanguagePreference pins a model for one (source, target) pair.
type LanguagePreference struct {
	Source           string `json:"source"`
	Target           string `json:"target"`
	PreferredModelID string `json:"preferredModelId"`
}

// LocalModelSettings is the settings slice of the local-model backend.
type LocalModelSettings struct {
	Models                  []ModelDescriptor    `json:"models"`
	LanguagePairPreferences []LanguagePreference `json:"languagePairPreferences,omitempty"`
	FallbackModelID         string               `json:"fallbackModelId,omitempty"`
	TimeoutSeconds          int                  `json:"timeoutSeconds,omitempty"`
	Temperature             float64              `json:"temperature,omitempty"`
}

// FindModel looks a model up by id.
func (s *LocalModelSettings) FindModel(id string) (ModelDescriptor, bool) {
	if s == nil || id == "" {
		return ModelDescriptor{}, false
	}
	for _, m := range s.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelDescriptor{}, false
}

// DefaultModel returns the first model flagged default, else the first
// model, else false.
func (s *LocalModelSettings) DefaultModel() (ModelDescriptor, bool) {
	if s == nil || len(s.Models) == 0 {
		return ModelDescriptor{}, false
	}
	for _, m := range s.Models {
		if m.IsDefault {
			return m, true
		}
	}
	return s.Models[0], true
}

// Timeout returns the configured request timeout, or def.
func (s *LocalModelSettings) Timeout(def time.Duration) time.Duration {
	if s != nil && s.TimeoutSeconds > 0 {
		return time.Duration(s.TimeoutSeconds) * time.Second
	}
	return def
}

// ---------------------------------------------------------------------------
// Built-in capability backend settings
// ---------------------------------------------------------------------------

// BuiltinSettings is the settings slice of the built-in translation backend.
type BuiltinSettings struct {
	// Endpoint is the base URL of the system translation service.
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey,omitempty"`
	// DetectOnly returns the original text plus the detected language
	// instead of translating.
	DetectOnly bool `json:"detectOnly,omitempty"`
	// FallbackLanguage is reported when detection yields no candidate.
	FallbackLanguage string `json:"fallbackLanguage,omitempty"`
	TimeoutSeconds   int    `json:"timeoutSeconds,omitempty"`
}

// Timeout returns the configured request timeout, or def.
func (s *BuiltinSettings) Timeout(def time.Duration) time.Duration {
	if s != nil && s.TimeoutSeconds > 0 {
		return time.Duration(s.TimeoutSeconds) * time.Second
	}
	return def
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// DecodeBackend decodes the settings blob of one backend into out.
func (c *Configuration) DecodeBackend(backend string, out any) error {
	if c == nil {
		return fmt.Errorf("no configuration loaded")
	}
	raw, ok := c.BackendSettings[backend]
	if !ok || raw == nil {
		return fmt.Errorf("no settings for backend %q", backend)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decoding %s settings: %w", backend, err)
	}
	return nil
}

// LocalModel decodes and validates the local-model settings slice.
func (c *Configuration) LocalModel() (*LocalModelSettings, error) {
	var s LocalModelSettings
	if err := c.DecodeBackend(BackendOllama, &s); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(s.Models))
	for i, m := range s.Models {
		if strings.TrimSpace(m.ID) == "" {
			return nil, fmt.Errorf("%s: model #%d has no id", BackendOllama, i+1)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("%s: duplicate model id %q", BackendOllama, m.ID)
		}
		if strings.TrimSpace(m.Endpoint) == "" {
			return nil, fmt.Errorf("%s: model %q has no endpoint", BackendOllama, m.ID)
		}
		seen[m.ID] = true
	}
	return &s, nil
}

// Builtin decodes and validates the built-in backend settings slice.
func (c *Configuration) Builtin() (*BuiltinSettings, error) {
	var s BuiltinSettings
	if err := c.DecodeBackend(BackendChromeAPI, &s); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Endpoint) == "" {
		return nil, fmt.Errorf("%s: no endpoint configured", BackendChromeAPI)
	}
	if s.FallbackLanguage == "" {
		s.FallbackLanguage = "en"
	}
	return &s, nil
}
