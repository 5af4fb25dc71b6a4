package types

import (
	"strings"
	"time"
	"unicode"
)

const keyTitlePrefix = 40

// RecordKey combines a date with a fingerprint of the leading title text, so
// the same announcement reached through different DOM paths collapses to one.
func RecordKey(date time.Time, title string) string {
	var out []rune
	space := false
	for _, r := range strings.ToLower(title) {
		if len(out) >= keyTitlePrefix {
			break
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			space = true
			continue
		}
		if space && len(out) > 0 {
			out = append(out, ' ')
		}
		space = false
		out = append(out, r)
	}
	if len(out) > keyTitlePrefix {
		out = out[:keyTitlePrefix]
	}

	return date.Format("2006-01-02") + "|" + string(out)
}
