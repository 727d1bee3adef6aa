// Package i18n translates glosa's own user-facing strings: the failure
// messages returned to callers and the CLI output.
//
// Catalogs are gettext .po files embedded under locales/{lang}/LC_MESSAGES.
// Init picks the catalog that best matches the requested or environment
// language; English is the source language and needs no catalog.
//
//	i18n.Init("")  // LANGUAGE, LC_ALL, LC_MESSAGES, LANG
//	msg := i18n.Tf("Translation failed with %s: %s", model, reason)
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync/atomic"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

//go:embed all:locales
var locales embed.FS

const (
	domain     = "glosa"
	localesDir = "locales"
)

// catalog is the active locale together with its directory name.
type catalog struct {
	lang   string
	locale *gotext.Locale
}

var active atomic.Pointer[catalog]

// available lists the embedded catalog directories. Index 0 is the
// catalog-less source language.
var available, matcher = func() ([]string, language.Matcher) {
	names := []string{"en"}
	tags := []language.Tag{language.English}
	entries, _ := fs.ReadDir(locales, localesDir)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		tag, err := language.Parse(e.Name())
		if err != nil {
			continue
		}
		names = append(names, e.Name())
		tags = append(tags, tag)
	}
	return names, language.NewMatcher(tags)
}()

// Init selects the catalog for lang, a POSIX locale ("de_AT.UTF-8"), a BCP 47
// tag or a colon-separated LANGUAGE-style list. An empty lang reads the
// environment. Without a match the strings pass through untranslated.
func Init(lang string) {
	var prefs []string
	if lang != "" {
		prefs = splitList(lang)
	} else {
		prefs = envPreferences()
	}

	tags := make([]language.Tag, 0, len(prefs))
	for _, p := range prefs {
		if t, err := language.Parse(p); err == nil {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		active.Store(nil)
		return
	}

	_, idx, conf := matcher.Match(tags...)
	if conf == language.No || idx == 0 {
		active.Store(nil)
		return
	}
	l := gotext.NewLocaleFSWithPath(available[idx], locales, localesDir)
	l.AddDomain(domain)
	l.SetDomain(domain)
	active.Store(&catalog{lang: available[idx], locale: l})
}

// Language returns the active catalog's language, "en" when untranslated.
func Language() string {
	if c := active.Load(); c != nil {
		return c.lang
	}
	return "en"
}

// T translates msgid, or returns it unchanged.
func T(msgid string) string {
	if c := active.Load(); c != nil {
		return c.locale.Get(msgid)
	}
	return msgid
}

// Tf translates a format string and applies args to it.
func Tf(format string, args ...any) string {
	if c := active.Load(); c != nil {
		return c.locale.Get(format, args...)
	}
	return fmt.Sprintf(format, args...)
}

// N picks the plural form for n. The returned string is not formatted.
func N(singular, plural string, n int) string {
	if c := active.Load(); c != nil {
		return c.locale.GetN(singular, plural, n)
	}
	if n == 1 {
		return singular
	}
	return plural
}

// envPreferences reads the gettext variables in GNU priority order:
// LANGUAGE (a list), LC_ALL, LC_MESSAGES, LANG. C and POSIX are skipped.
func envPreferences() []string {
	var out []string
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		if env != "LANGUAGE" {
			if p := normalize(val); p != "" {
				out = append(out, p)
			}
			continue
		}
		out = append(out, splitList(val)...)
	}
	return out
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ":") {
		if p := normalize(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalize turns "ru_RU.UTF-8@latin" into "ru-RU". C and POSIX become "".
func normalize(val string) string {
	val = strings.TrimSpace(val)
	if i := strings.IndexAny(val, ".@"); i >= 0 {
		val = val[:i]
	}
	if val == "C" || val == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(val, "_", "-")
}
