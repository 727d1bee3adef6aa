package translate

import (
	"sort"
	"strings"
)

// preambles are lead-ins local models like to put before the answer.
// Matching is case-insensitive and longest first.
var preambles = func() []string {
	p := []string{
		"here is the translation:",
		"here's the translation:",
		"here is the translated text:",
		"here's the translated text:",
		"sure, here is the translation:",
		"sure, here's the translation:",
		"sure! here is the translation:",
		"sure! here's the translation:",
		"the translation is:",
		"translated text:",
		"translation:",
		"translated:",
		"result:",
		"output:",
	}
	sort.SliceStable(p, func(i, j int) bool { return len(p[i]) > len(p[j]) })
	return p
}()

type quotePair struct{ open, close string }

var quotePairs = []quotePair{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"},
	{"「", "」"},
	{"«", "»"},
}

// CleanResponse normalizes raw model output: it trims whitespace, strips at
// most one leading preamble phrase and then at most one pair of matching
// surrounding quotes. It is a best-effort heuristic, not a parser.
func CleanResponse(raw string) string {
	s := strings.TrimSpace(raw)

	for _, p := range preambles {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}

	for _, q := range quotePairs {
		if len(s) >= len(q.open)+len(q.close) && strings.HasPrefix(s, q.open) && strings.HasSuffix(s, q.close) {
			s = strings.TrimSpace(s[len(q.open) : len(s)-len(q.close)])
			break
		}
	}
	return s
}
