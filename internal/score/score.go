/*
Package score rates how likely a control inside an announcement record is to be
that record's download trigger.
*/
package score

import (
	"context"
	"errors"
	"strings"

	"github.com/shanehull/annfetch/internal/page"
	"github.com/shanehull/annfetch/internal/types"
)

type Config struct {
	StrongKeywords   []string
	StrongWeight     int
	ModerateKeywords []string
	ModerateWeight   int

	StructuralWeight int
	IconWeight       int

	// RightFraction is where the trailing region of the container starts,
	// as a fraction of its width.
	RightFraction float64
	RightWeight   int

	IconMinSize    float64
	IconMaxSize    float64
	IconSizeWeight int
	HiddenMaxSize  float64
	HiddenPenalty  int

	MaxTextLen  int
	TextPenalty int

	MinAccept int
}

func DefaultConfig() Config {
	return Config{
		StrongKeywords:   []string{"download", "zip", "pdf"},
		StrongWeight:     4,
		ModerateKeywords: []string{"file", "export", "save", "arrow"},
		ModerateWeight:   2,
		StructuralWeight: 2,
		IconWeight:       1,
		RightFraction:    0.67,
		RightWeight:      2,
		IconMinSize:      10,
		IconMaxSize:      80,
		IconSizeWeight:   1,
		HiddenMaxSize:    1,
		HiddenPenalty:    3,
		MaxTextLen:       50,
		TextPenalty:      2,
		MinAccept:        2,
	}
}

// Signals is everything the scorer reads about one candidate.
type Signals struct {
	Tag       string
	Href      string
	OnClick   string
	Title     string
	AriaLabel string
	Class     string
	Role      string
	DataURL   string
	InnerHTML string
	Text      string

	Rect          *page.Rect
	ContainerRect *page.Rect
}

// Lexical is the lower-cased text the keyword signals search.
func (s Signals) Lexical() string {
	return strings.ToLower(strings.Join([]string{
		s.Href, s.OnClick, s.Title, s.AriaLabel, s.Class, s.DataURL, s.InnerHTML, s.Text,
	}, " "))
}

type Scorer struct {
	cfg Config
}

func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

func (s *Scorer) Config() Config { return s.cfg }

// Score adds up the independent signals; the result is never negative.
func (s *Scorer) Score(sig Signals) int {
	cfg := s.cfg
	lexical := sig.Lexical()
	tag := strings.ToLower(sig.Tag)
	class := strings.ToLower(sig.Class)
	score := 0

	for _, kw := range distinct(cfg.StrongKeywords) {
		if strings.Contains(lexical, kw) {
			score += cfg.StrongWeight
		}
	}
	for _, kw := range distinct(cfg.ModerateKeywords) {
		if strings.Contains(lexical, kw) {
			score += cfg.ModerateWeight
		}
	}

	if tag == "a" && strings.TrimSpace(sig.Href) != "" {
		score += cfg.StructuralWeight
	}
	if tag == "button" || strings.EqualFold(sig.Role, "button") {
		score += cfg.StructuralWeight
	}
	if strings.TrimSpace(sig.OnClick) != "" {
		score += cfg.StructuralWeight
	}

	if tag == "i" || tag == "svg" || tag == "img" || strings.Contains(class, "icon") {
		score += cfg.IconWeight
	}

	if r := sig.Rect; r != nil {
		if c := sig.ContainerRect; c != nil && c.Width > 0 {
			if r.X >= c.X+c.Width*cfg.RightFraction {
				score += cfg.RightWeight
			}
		}
		switch {
		case r.Width <= cfg.HiddenMaxSize || r.Height <= cfg.HiddenMaxSize:
			score -= cfg.HiddenPenalty
		case inRange(r.Width, cfg.IconMinSize, cfg.IconMaxSize) && inRange(r.Height, cfg.IconMinSize, cfg.IconMaxSize):
			score += cfg.IconSizeWeight
		}
	}

	if len(strings.TrimSpace(sig.Text)) > cfg.MaxTextLen {
		score -= cfg.TextPenalty
	}

	if score < 0 {
		return 0
	}
	return score
}

// Gather reads the signals of el. Missing geometry only drops the geometric
// signals; a lost session is returned.
func Gather(ctx context.Context, el page.Element, container page.Element) (Signals, error) {
	sig := Signals{Tag: el.Tag()}

	attrs := []struct {
		name string
		dst  *string
	}{
		{"href", &sig.Href},
		{"onclick", &sig.OnClick},
		{"title", &sig.Title},
		{"aria-label", &sig.AriaLabel},
		{"class", &sig.Class},
		{"role", &sig.Role},
	}
	for _, a := range attrs {
		v, err := el.Attr(ctx, a.name)
		if err != nil {
			return sig, err
		}
		*a.dst = v
	}
	for _, name := range []string{"data-href", "data-url", "data-download-url"} {
		v, err := el.Attr(ctx, name)
		if err != nil {
			return sig, err
		}
		if v != "" {
			sig.DataURL = v
			break
		}
	}

	var err error
	if sig.InnerHTML, err = el.InnerHTML(ctx); err != nil {
		return sig, err
	}
	if sig.Text, err = el.Text(ctx); err != nil {
		return sig, err
	}

	if sig.Rect, err = rect(ctx, el); err != nil {
		return sig, err
	}
	if container != nil {
		if sig.ContainerRect, err = rect(ctx, container); err != nil {
			return sig, err
		}
	}
	return sig, nil
}

func rect(ctx context.Context, el page.Element) (*page.Rect, error) {
	r, err := el.Rect(ctx)
	if errors.Is(err, page.ErrSessionLost) {
		return nil, err
	}
	if err != nil {
		return nil, nil
	}
	return &r, nil
}

// Rate scores every candidate of a record in place.
func (s *Scorer) Rate(ctx context.Context, rec *types.DocumentRecord) error {
	for i := range rec.Candidates {
		c := &rec.Candidates[i]
		sig, err := Gather(ctx, c.Element, rec.Container)
		if err != nil {
			return err
		}
		c.Score = s.Score(sig)
		c.Context = contextSnippet(sig)
	}
	return nil
}

// Select returns the candidate with the strictly highest score, the earliest
// one on ties. ok is false when nothing reaches MinAccept.
func (s *Scorer) Select(cands []types.Candidate) (types.Candidate, bool) {
	var best types.Candidate
	found := false
	for _, c := range cands {
		if !found || c.Score > best.Score {
			best = c
			found = true
		}
	}
	if !found || best.Score < s.cfg.MinAccept {
		return types.Candidate{}, false
	}
	return best, true
}

func contextSnippet(sig Signals) string {
	parts := []string{"<" + sig.Tag + ">"}
	for _, v := range []string{sig.Class, sig.Title, sig.AriaLabel, sig.Href, sig.OnClick, sig.DataURL, sig.Text} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	snippet := []rune(strings.Join(parts, " "))
	if len(snippet) > 120 {
		return string(snippet[:117]) + "..."
	}
	return string(snippet)
}

func distinct(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}
