package translate

import (
	"strings"

	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/langmeta"
)

// Prompt placeholders.
const (
	PlaceholderSource = "{sourceLanguage}"
	PlaceholderTarget = "{targetLanguage}"
	PlaceholderText   = "{text}"
)

// autoSourcePhrase stands in for the source language name when the source
// is to be detected.
const autoSourcePhrase = "the source language"

// BuiltinTemplate is used when a model carries no usable template.
const BuiltinTemplate = "Translate the following text from {sourceLanguage} to {targetLanguage}. " +
	"Reply with the translation only, without quotes or explanations.\n\n{text}"

// TemplateFor returns the model's template for style, else its natural
// template, else BuiltinTemplate.
func TemplateFor(model config.ModelDescriptor, style string) string {
	if t := model.PromptTemplates[NormalizeStyle(style)]; strings.TrimSpace(t) != "" {
		return t
	}
	if t := model.PromptTemplates[config.StyleNatural]; strings.TrimSpace(t) != "" {
		return t
	}
	return BuiltinTemplate
}

// FormatPrompt renders the prompt for one model attempt. All placeholders
// are substituted in a single left-to-right pass, so placeholder text inside
// the substituted values is left alone.
func FormatPrompt(model config.ModelDescriptor, style string, req Request) string {
	src := autoSourcePhrase
	if !langmeta.IsAuto(req.SourceLang) {
		src = langmeta.Name(req.SourceLang)
	}
	r := strings.NewReplacer(
		PlaceholderSource, src,
		PlaceholderTarget, langmeta.Name(req.TargetLang),
		PlaceholderText, strings.TrimSpace(req.Text),
	)
	return r.Replace(TemplateFor(model, style))
}
