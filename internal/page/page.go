/*
Package page declares the capabilities the collector needs from a live page:
querying elements, reading their text, attributes and geometry, scrolling and
clicking. Implementations live elsewhere (see the snapshot subpackage).
*/
package page

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotClickable means a click method does not apply to the element.
	ErrNotClickable = errors.New("element not clickable with this method")
	// ErrNoGeometry means the driver cannot report a bounding box.
	ErrNoGeometry = errors.New("element geometry unavailable")
	// ErrSessionLost means the driver is no longer usable.
	ErrSessionLost = errors.New("page session lost")
)

type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) Right() float64 { return r.X + r.Width }

type Element interface {
	// Key identifies the element for the lifetime of one session.
	Key() string
	Tag() string
	Text(ctx context.Context) (string, error)
	InnerHTML(ctx context.Context) (string, error)
	// Attr returns "" when the attribute is absent.
	Attr(ctx context.Context, name string) (string, error)
	Rect(ctx context.Context) (Rect, error)
	// Parent returns nil at the document root.
	Parent(ctx context.Context) (Element, error)
	Find(ctx context.Context, q Query) ([]Element, error)
}

type ClickMethod int

const (
	NativeClick ClickMethod = iota
	ScriptClick
	PointerClick
)

var DefaultClickMethods = []ClickMethod{NativeClick, ScriptClick, PointerClick}

func (m ClickMethod) String() string {
	switch m {
	case NativeClick:
		return "native"
	case ScriptClick:
		return "script"
	case PointerClick:
		return "pointer"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseClickMethod is the inverse of ClickMethod.String.
func ParseClickMethod(s string) (ClickMethod, error) {
	for _, m := range DefaultClickMethods {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown click method %q", s)
}

type Driver interface {
	Find(ctx context.Context, q Query) ([]Element, error)
	ScrollIntoView(ctx context.Context, el Element) error
	Click(ctx context.Context, el Element, method ClickMethod) error
}

// Query is one declared lookup strategy. Selector is CSS; an empty selector
// matches every element. TextPattern, when set, must match the element's own
// text (not its descendants').
type Query struct {
	Name        string
	Selector    string
	TextPattern *regexp.Regexp
}

type finder interface {
	Find(ctx context.Context, q Query) ([]Element, error)
}

// FindAll runs every query in order and returns the union, first-seen order,
// without duplicates.
func FindAll(ctx context.Context, f finder, queries []Query) ([]Element, error) {
	seen := make(map[string]struct{})
	var out []Element
	for _, q := range queries {
		found, err := f.Find(ctx, q)
		if err != nil {
			if errors.Is(err, ErrSessionLost) {
				return nil, err
			}
			continue
		}
		for _, el := range found {
			if _, ok := seen[el.Key()]; ok {
				continue
			}
			seen[el.Key()] = struct{}{}
			out = append(out, el)
		}
	}
	return out, nil
}
