// Package translate is the selection and fallback engine shared by the
// translation providers: request normalization, model resolution for a
// language pair, prompt formatting, response cleaning and the one-shot
// fallback policy of multi-model backends.
package translate

import (
	"strings"

	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/i18n"
	"github.com/minios-linux/glosa/langmeta"
)

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

// NormalizeStyle maps a requested style onto the fixed set. Unknown or
// empty values degrade to natural.
func NormalizeStyle(style string) string {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case config.StyleLiteral:
		return config.StyleLiteral
	default:
		return config.StyleNatural
	}
}

// ---------------------------------------------------------------------------
// Request / Output
// ---------------------------------------------------------------------------

// Request is one translation request as received from a caller.
type Request struct {
	Text       string `json:"text"`
	SourceLang string `json:"sourceLangCode"`
	TargetLang string `json:"targetLangCode"`
	Style      string `json:"style,omitempty"`
}

// Normalize trims the text, defaults the source to auto, degrades the style
// and rejects requests that cannot be translated.
func (r Request) Normalize() (Request, error) {
	out := Request{
		Text:       strings.TrimSpace(r.Text),
		SourceLang: strings.TrimSpace(r.SourceLang),
		TargetLang: strings.TrimSpace(r.TargetLang),
		Style:      NormalizeStyle(r.Style),
	}
	if out.Text == "" {
		return out, NewError(KindInvalidRequest, i18n.T("Nothing to translate: text is empty"), nil)
	}
	if out.TargetLang == "" || langmeta.IsAuto(out.TargetLang) {
		return out, NewError(KindInvalidRequest, i18n.T("Target language is required"), nil)
	}
	if langmeta.IsAuto(out.SourceLang) {
		out.SourceLang = langmeta.AutoCode
	}
	return out, nil
}

// Output is a successful translation.
type Output struct {
	Text string `json:"text"`
	// ModelID identifies the model or provider that produced Text.
	ModelID      string `json:"modelId"`
	UsedFallback bool   `json:"usedFallback"`
	// DetectedSourceLanguage is set when the provider detected the source.
	DetectedSourceLanguage string  `json:"detectedSourceLanguage,omitempty"`
	Confidence             float64 `json:"confidence,omitempty"`
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status states reported by status checks.
const (
	StateRunning = "running"
	StateError   = "error"
)

// Status is the result of a reachability check.
type Status struct {
	State   string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Running returns a running status.
func Running(msg string) Status { return Status{State: StateRunning, Message: msg} }

// Failed returns an error status.
func Failed(msg string) Status { return Status{State: StateError, Message: msg} }

// OK reports whether the status is running.
func (s Status) OK() bool { return s.State == StateRunning }

// Truncate shortens s to at most maxLen runes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
