package search

import (
	"regexp"
	"strings"
)

// wordRE extracts Unicode word tokens: letters optionally followed by digits.
var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

// urlRE matches bare http(s) links embedded in post text.
var urlRE = regexp.MustCompile(`https?://\S+`)

// NormalizeContent prepares raw post text for indexing: embedded links are
// removed (shortened URLs are opaque tokens that never match a human query)
// and all whitespace runs, including newlines, collapse to single spaces.
//
// The same normalization is applied to nothing else; stored rows keep the
// original text untouched.
func NormalizeContent(s string) string {
	if s == "" {
		return ""
	}
	s = urlRE.ReplaceAllString(s, " ")

	var b strings.Builder
	b.Grow(len(s))
	prevSpace := true // start true to swallow leading whitespace
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}
