package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var digitRunRe = regexp.MustCompile(`\d+`)

// ParseCompactCount parses an engagement count as the feed UI renders it:
// plain integers ("42"), grouped thousands ("1,234"), and compact suffixed
// values ("1.2K", "3M"). The result is nil when the input cannot be read as
// a count; nil means "unknown" and is never collapsed to zero.
func ParseCompactCount(s string) *int {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if s == "" {
		return nil
	}

	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1_000
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult = 1_000_000
		s = strings.TrimSuffix(s, "M")
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return nil
	}
	n := int(math.Round(f * mult))
	return &n
}

// leadingCount extracts the first run of digits from an accessibility label
// such as "1234 Likes. Like". Labels carry the exact count, so they are
// preferred over the compact on-screen text.
func leadingCount(label string) *int {
	m := digitRunRe.FindString(strings.ReplaceAll(label, ",", ""))
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}
