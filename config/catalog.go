package config

import (
	"strings"

	"github.com/minios-linux/glosa/langmeta"
)

// Language is one entry of the derived language catalog.
type Language struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// DeriveLanguageCatalog merges the supported and disabled language lists
// into one ordered catalog. Supported entries come first in their document
// order and keep their own enabled flag (default true); disabled entries
// follow with enabled=false. The first occurrence of a code wins.
func DeriveLanguageCatalog(c *Configuration) []Language {
	if c == nil {
		c = Default()
	}
	out := make([]Language, 0, len(c.SupportedLanguages)+len(c.DisabledLanguages))
	seen := make(map[string]bool)

	add := func(e LanguageEntry, enabled bool) {
		code := strings.TrimSpace(e.Code)
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		name := e.Name
		if name == "" {
			name = langmeta.Name(code)
		}
		out = append(out, Language{Code: code, Name: name, Enabled: enabled})
	}

	for _, e := range c.SupportedLanguages {
		enabled := true
		if e.Enabled != nil {
			enabled = *e.Enabled
		}
		add(e, enabled)
	}
	for _, e := range c.DisabledLanguages {
		add(e, false)
	}
	return out
}
