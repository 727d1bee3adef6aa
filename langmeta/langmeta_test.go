package langmeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveCanonicalizesVariants(t *testing.T) {
	assert.Equal(t, "Brazilian Portuguese", Resolve("pt_br").Name)
	assert.Equal(t, "pt-BR", Resolve("pt_br").Code)
	assert.Equal(t, "Simplified Chinese", Resolve("zh-cn").Name)
}

func TestResolveUsesCLDRNames(t *testing.T) {
	assert.Equal(t, "Japanese", Name("ja"))
	assert.Equal(t, "English", Name("en"))
	assert.Equal(t, "日本語", Resolve("ja").Native)
}

func TestResolveUnknownFallsBackToCode(t *testing.T) {
	m := Resolve("not a language")
	assert.Equal(t, "not a language", m.Name)
	assert.Equal(t, "not a language", m.Native)
}

func TestIsAuto(t *testing.T) {
	assert.True(t, IsAuto("auto"))
	assert.True(t, IsAuto(" AUTO "))
	assert.True(t, IsAuto(""))
	assert.False(t, IsAuto("en"))
}
