// Package langmeta provides language display metadata (English and native
// names) used in translation prompts and in the language catalog.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// AutoCode is the sentinel source language meaning "unknown, detect it".
const AutoCode = "auto"

// Meta describes language display metadata.
type Meta struct {
	Code   string
	Name   string // English name, e.g. "Japanese"
	Native string // self name, e.g. "日本語"
}

// overrides pins names where x/text's CLDR data reads awkwardly in a prompt.
var overrides = map[string]Meta{
	"zh-CN": {Name: "Simplified Chinese", Native: "简体中文"},
	"zh-TW": {Name: "Traditional Chinese", Native: "繁體中文"},
	"pt-BR": {Name: "Brazilian Portuguese", Native: "Português (Brasil)"},
	"pt-PT": {Name: "European Portuguese", Native: "Português (Portugal)"},
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns best-effort metadata for a language code, supporting
// variants like pt_BR and pt-BR. Unknown codes resolve to the code itself.
func Resolve(lang string) Meta {
	code := canonicalize(lang)
	if m, ok := overrides[code]; ok {
		m.Code = code
		return m
	}
	tag, err := language.Parse(code)
	if err != nil || code == "" {
		return Meta{Code: lang, Name: lang, Native: lang}
	}
	m := Meta{Code: code}
	if n := display.English.Tags().Name(tag); n != "" {
		m.Name = n
	} else {
		m.Name = lang
	}
	if n := display.Self.Name(tag); n != "" {
		m.Native = n
	} else {
		m.Native = m.Name
	}
	return m
}

// Name returns the English display name used inside prompts.
func Name(lang string) string {
	return Resolve(lang).Name
}

// IsAuto reports whether code is the detection sentinel (or empty).
func IsAuto(code string) bool {
	c := strings.TrimSpace(strings.ToLower(code))
	return c == "" || c == AutoCode
}
