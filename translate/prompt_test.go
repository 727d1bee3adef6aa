package translate

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/minios-linux/glosa/config"
)

func TestTemplateSelection(t *testing.T) {
	both := config.ModelDescriptor{PromptTemplates: map[string]string{
		config.StyleNatural: "natural {text}",
		config.StyleLiteral: "literal {text}",
	}}
	naturalOnly := config.ModelDescriptor{PromptTemplates: map[string]string{
		config.StyleNatural: "natural {text}",
	}}
	blank := config.ModelDescriptor{PromptTemplates: map[string]string{
		config.StyleLiteral: "   ",
	}}

	assert.Equal(t, "literal {text}", TemplateFor(both, config.StyleLiteral))
	assert.Equal(t, "natural {text}", TemplateFor(both, "unknown"))
	assert.Equal(t, "natural {text}", TemplateFor(naturalOnly, config.StyleLiteral))
	assert.Equal(t, BuiltinTemplate, TemplateFor(blank, config.StyleLiteral))
	assert.Equal(t, BuiltinTemplate, TemplateFor(config.ModelDescriptor{}, config.StyleNatural))
}

func TestFormatPrompt(t *testing.T) {
	m := config.ModelDescriptor{PromptTemplates: map[string]string{
		config.StyleNatural: "From {sourceLanguage} to {targetLanguage}:\n{text}",
	}}

	got := FormatPrompt(m, config.StyleNatural, Request{Text: "  Hello  ", SourceLang: "en", TargetLang: "ja"})
	assert.Equal(t, "From English to Japanese:\nHello", got)

	got = FormatPrompt(m, config.StyleNatural, Request{Text: "Hola", SourceLang: "auto", TargetLang: "zh-CN"})
	assert.Equal(t, "From the source language to Simplified Chinese:\nHola", got)

	got = FormatPrompt(config.ModelDescriptor{}, config.StyleLiteral, Request{Text: "Hi", SourceLang: "en", TargetLang: "de"})
	assert.True(t, strings.HasPrefix(got, "Translate the following text from English to German."))
	assert.True(t, strings.HasSuffix(got, "\n\nHi"))
}

func TestFormatPromptDoesNotRescanValues(t *testing.T) {
	m := config.ModelDescriptor{PromptTemplates: map[string]string{
		config.StyleNatural: "[{text}] -> {targetLanguage}",
	}}
	got := FormatPrompt(m, "", Request{Text: "{targetLanguage} and {text}", SourceLang: "en", TargetLang: "ja"})
	assert.Equal(t, "[{targetLanguage} and {text}] -> Japanese", got)
}

func TestFormatPromptProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("each placeholder substituted once, the rest byte-identical", prop.ForAll(
		func(a, b, c, d, text string) bool {
			tpl := a + PlaceholderSource + b + PlaceholderTarget + c + PlaceholderText + d
			m := config.ModelDescriptor{PromptTemplates: map[string]string{config.StyleNatural: tpl}}
			value := text + PlaceholderSource
			got := FormatPrompt(m, config.StyleNatural, Request{Text: value, SourceLang: "en", TargetLang: "ja"})
			want := a + "English" + b + "Japanese" + c + strings.TrimSpace(value) + d
			return got == want
		},
		gen.AlphaString(), gen.AlphaString(), gen.AlphaString(), gen.AlphaString(), gen.AlphaString(),
	))

	properties.TestingRun(t)
}
