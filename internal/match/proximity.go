/*
Package match climbs from a dated element to the announcement record that
encloses it and lists the controls inside that record which might start its
download.
*/
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shanehull/annfetch/internal/dates"
	"github.com/shanehull/annfetch/internal/page"
	"github.com/shanehull/annfetch/internal/types"
)

// ContainerRules is the "is this a document record" predicate.
type ContainerRules struct {
	MaxLevels      int
	MinTextLen     int
	MaxTextLen     int // 0 disables the upper bound
	MinLines       int
	Keywords       []string
	MinKeywordHits int
	Tags           []string
	// DateLabel names the line that carries a record's own date. When the
	// container shows a date right after it, that date wins over the one
	// found near the scanned element. Empty disables the lookup.
	DateLabel string
}

func DefaultContainerRules() ContainerRules {
	return ContainerRules{
		MaxLevels:  20,
		MinTextLen: 150,
		MaxTextLen: 2000,
		MinLines:   6,
		Keywords: []string{
			"GLB", "LAC", "Bulletin", "announcement", "Publication Date",
			"Effective Date", "Audience", "Type", "Region",
		},
		MinKeywordHits: 2,
		Tags:           []string{"div", "article", "section", "li", "td", "tr"},
		DateLabel:      "Publication Date",
	}
}

func DefaultCandidateQueries() []page.Query {
	return []page.Query{
		{Name: "link", Selector: "a"},
		{Name: "button", Selector: "button"},
		{Name: "click handler", Selector: "[onclick]"},
		{Name: "button role", Selector: `[role="button"]`},
		{Name: "italic icon", Selector: "i"},
		{Name: "vector icon", Selector: "svg"},
		{Name: "image", Selector: "img"},
		{Name: "icon class", Selector: `[class*="icon"]`},
		{Name: "clickable class", Selector: `[class*="click"]`},
	}
}

// DefaultScanQueries find elements whose own text mentions a month or an ISO
// date; the matcher then confirms a full date nearby.
func DefaultScanQueries() []page.Query {
	return []page.Query{
		{
			Name:        "month name",
			TextPattern: regexp.MustCompile(`(?i)\b(` + dates.MonthAlternation + `)\b`),
		},
		{
			Name:        "iso date",
			TextPattern: regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		},
	}
}

type Matcher struct {
	rules   ContainerRules
	queries []page.Query
	tags    map[string]bool
	label   *regexp.Regexp
	log     *slog.Logger
}

func NewMatcher(rules ContainerRules, candidateQueries []page.Query, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	if rules.MaxLevels <= 0 {
		rules.MaxLevels = DefaultContainerRules().MaxLevels
	}
	if len(candidateQueries) == 0 {
		candidateQueries = DefaultCandidateQueries()
	}
	tags := make(map[string]bool, len(rules.Tags))
	for _, t := range rules.Tags {
		tags[strings.ToLower(t)] = true
	}
	return &Matcher{
		rules:   rules,
		queries: candidateQueries,
		tags:    tags,
		label:   dates.LabelPattern(rules.DateLabel),
		log:     logger,
	}
}

// DateNear returns the date in el's own text or, failing that, the first full
// date found in the text of an ancestor within MaxLevels.
func (m *Matcher) DateNear(ctx context.Context, el page.Element) (types.DateToken, bool, error) {
	text, err := el.Text(ctx)
	if err != nil {
		return types.DateToken{}, false, err
	}
	if tok, ok := dates.First(text); ok {
		return tok, true, nil
	}

	current := el
	for level := 0; level < m.rules.MaxLevels; level++ {
		parent, err := current.Parent(ctx)
		if err != nil {
			return types.DateToken{}, false, err
		}
		if parent == nil {
			break
		}
		text, err := parent.Text(ctx)
		if err != nil {
			return types.DateToken{}, false, err
		}
		if tok, ok := dates.First(text); ok {
			return tok, true, nil
		}
		current = parent
	}
	return types.DateToken{}, false, nil
}

// Container climbs from el until an ancestor satisfies the rules. Running out
// of levels is a normal miss, reported as ok == false.
func (m *Matcher) Container(ctx context.Context, el page.Element) (page.Element, string, bool, error) {
	current := el
	for level := 0; level < m.rules.MaxLevels; level++ {
		parent, err := current.Parent(ctx)
		if err != nil {
			return nil, "", false, err
		}
		if parent == nil {
			break
		}
		text, err := parent.Text(ctx)
		if err != nil {
			return nil, "", false, err
		}
		if m.IsContainer(parent.Tag(), text) {
			return parent, text, true, nil
		}
		current = parent
	}
	return nil, "", false, nil
}

func (m *Matcher) IsContainer(tag, text string) bool {
	if !m.tags[strings.ToLower(tag)] {
		return false
	}
	text = strings.TrimSpace(text)
	if len(text) <= m.rules.MinTextLen {
		return false
	}
	if m.rules.MaxTextLen > 0 && len(text) >= m.rules.MaxTextLen {
		return false
	}
	if len(strings.Split(text, "\n")) < m.rules.MinLines {
		return false
	}

	hits := 0
	for _, kw := range m.rules.Keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	need := m.rules.MinKeywordHits
	if need < 1 {
		need = 1
	}
	return hits >= need
}

// Candidates lists the interactive elements inside container in query order,
// each element once.
func (m *Matcher) Candidates(ctx context.Context, container page.Element) ([]types.Candidate, error) {
	els, err := page.FindAll(ctx, container, m.queries)
	if err != nil {
		return nil, err
	}
	out := make([]types.Candidate, 0, len(els))
	for i, el := range els {
		out = append(out, types.Candidate{Element: el, Order: i})
	}
	return out, nil
}

// Locate builds the record around a dated element. ok is false when no date or
// no container could be found. The record is dated by the labelled date in the
// container text when there is one, otherwise by the date nearest el.
func (m *Matcher) Locate(ctx context.Context, el page.Element) (types.DocumentRecord, bool, error) {
	tok, ok, err := m.DateNear(ctx, el)
	if err != nil {
		return types.DocumentRecord{}, false, fmt.Errorf("reading date context: %w", err)
	}
	if !ok {
		m.log.DebugContext(ctx, "no date near element", "tag", el.Tag())
		return types.DocumentRecord{}, false, nil
	}

	container, text, ok, err := m.Container(ctx, el)
	if err != nil {
		return types.DocumentRecord{}, false, fmt.Errorf("climbing to container: %w", err)
	}
	if !ok {
		m.log.DebugContext(ctx, "no container for date", "date", tok.Matched)
		return types.DocumentRecord{}, false, nil
	}
	if labelled, ok := dates.Labelled(text, m.label); ok {
		if !labelled.Date.Equal(tok.Date) {
			m.log.DebugContext(ctx, "using labelled date", "near", tok.Matched, "labelled", labelled.Matched)
		}
		tok = labelled
	}

	cands, err := m.Candidates(ctx, container)
	if err != nil {
		if errors.Is(err, page.ErrSessionLost) {
			return types.DocumentRecord{}, false, err
		}
		m.log.WarnContext(ctx, "failed to enumerate candidates", "date", tok.Matched, "err", err)
	}

	return types.DocumentRecord{
		Container:  container,
		Title:      Title(text),
		Date:       tok,
		Candidates: cands,
	}, true, nil
}
