/*
Package dates finds calendar dates in page text and computes the publication
window a collection run accepts.
*/
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shanehull/annfetch/internal/types"
)

const (
	LayoutDayMonthYear = "D Mon YYYY"
	LayoutMonthDayYear = "Mon D, YYYY"
	LayoutISO          = "YYYY-MM-DD"
)

// MonthAlternation matches an English month name or its abbreviation.
const MonthAlternation = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

// One alternation so matches never overlap across layouts.
var datePattern = regexp.MustCompile(`(?i)` +
	`\b(\d{1,2})\s+(` + MonthAlternation + `)\.?,?\s+(\d{4})\b` +
	`|\b(` + MonthAlternation + `)\.?\s+(\d{1,2}),?\s+(\d{4})\b` +
	`|\b(\d{4})-(\d{2})-(\d{2})\b`)

var monthPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Extract returns every date found in text, in order of appearance.
// Impossible dates such as 31 Feb are dropped.
func Extract(text string) []types.DateToken {
	var tokens []types.DateToken
	for _, m := range datePattern.FindAllStringSubmatchIndex(text, -1) {
		group := func(i int) string {
			if m[2*i] < 0 {
				return ""
			}
			return text[m[2*i]:m[2*i+1]]
		}

		var day, year, layout string
		var month time.Month
		switch {
		case group(1) != "":
			day, month, year, layout = group(1), monthPrefix[strings.ToLower(group(2)[:3])], group(3), LayoutDayMonthYear
		case group(4) != "":
			day, month, year, layout = group(5), monthPrefix[strings.ToLower(group(4)[:3])], group(6), LayoutMonthDayYear
		default:
			mm, err := strconv.Atoi(group(8))
			if err != nil {
				continue
			}
			day, month, year, layout = group(9), time.Month(mm), group(7), LayoutISO
		}

		date, ok := civil(year, month, day)
		if !ok {
			continue
		}
		tokens = append(tokens, types.DateToken{
			Date:    date,
			Matched: text[m[0]:m[1]],
			Layout:  layout,
			Offset:  m[0],
		})
	}
	return tokens
}

// First returns the first date in text.
func First(text string) (types.DateToken, bool) {
	tokens := Extract(text)
	if len(tokens) == 0 {
		return types.DateToken{}, false
	}
	return tokens[0], true
}

// LabelPattern matches label case-insensitively together with the colon and
// spacing that usually follow it. An empty label yields nil.
func LabelPattern(label string) *regexp.Regexp {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) + `[\s\x{00a0}]*:?[\s\x{00a0}]*`)
}

// Labelled returns the date printed directly after a match of label, as in
// "Publication Date: 01 Jul 2025". Offset is relative to text.
func Labelled(text string, label *regexp.Regexp) (types.DateToken, bool) {
	if label == nil {
		return types.DateToken{}, false
	}
	for _, loc := range label.FindAllStringIndex(text, -1) {
		tok, ok := First(text[loc[1]:])
		if !ok || tok.Offset != 0 {
			continue
		}
		tok.Offset = loc[1]
		return tok, true
	}
	return types.DateToken{}, false
}

func civil(year string, month time.Month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || month < time.January || month > time.December {
		return time.Time{}, false
	}

	t := time.Date(y, month, d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != month || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// Format renders a date the way announcement pages print it.
func Format(t time.Time) string {
	return t.Format("02 Jan 2006")
}
