package page

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeElement struct{ key string }

func (e fakeElement) Key() string { return e.key }
func (e fakeElement) Tag() string { return "a" }
func (e fakeElement) Text(context.Context) (string, error) { return "", nil }
func (e fakeElement) InnerHTML(context.Context) (string, error) { return "", nil }
func (e fakeElement) Attr(context.Context, string) (string, error) { return "", nil }
func (e fakeElement) Rect(context.Context) (Rect, error) { return Rect{}, ErrNoGeometry }
func (e fakeElement) Parent(context.Context) (Element, error) { return nil, nil }
func (e fakeElement) Find(context.Context, Query) ([]Element, error) { return nil, nil }

type fakeDriver struct {
	results map[ClickMethod]error
	calls   []ClickMethod
	found   map[string][]Element
}

func (d *fakeDriver) Find(_ context.Context, q Query) ([]Element, error) {
	els, ok := d.found[q.Selector]
	if !ok {
		return nil, errors.New("bad selector")
	}
	return els, nil
}

func (d *fakeDriver) ScrollIntoView(context.Context, Element) error { return nil }

func (d *fakeDriver) Click(_ context.Context, _ Element, m ClickMethod) error {
	d.calls = append(d.calls, m)
	return d.results[m]
}

func TestClickFallsBack(t *testing.T) {
	d := &fakeDriver{results: map[ClickMethod]error{
		NativeClick: ErrNotClickable,
		ScriptClick: nil,
	}}

	m, err := Click(context.Background(), d, fakeElement{key: "1"})
	require.NoError(t, err)
	require.Equal(t, ScriptClick, m)
	require.Equal(t, []ClickMethod{NativeClick, ScriptClick}, d.calls)
}

func TestClickAllFail(t *testing.T) {
	d := &fakeDriver{results: map[ClickMethod]error{
		NativeClick:  ErrNotClickable,
		ScriptClick:  ErrNotClickable,
		PointerClick: errors.New("intercepted"),
	}}

	_, err := Click(context.Background(), d, fakeElement{key: "1"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNotClickable)
	require.Len(t, d.calls, 3)
}

func TestClickStopsOnLostSession(t *testing.T) {
	d := &fakeDriver{results: map[ClickMethod]error{
		NativeClick: ErrSessionLost,
	}}

	_, err := Click(context.Background(), d, fakeElement{key: "1"})
	require.ErrorIs(t, err, ErrSessionLost)
	require.Equal(t, []ClickMethod{NativeClick}, d.calls)
}

func TestFindAllDedupesInOrder(t *testing.T) {
	a, b, c := fakeElement{key: "a"}, fakeElement{key: "b"}, fakeElement{key: "c"}
	d := &fakeDriver{found: map[string][]Element{
		"a":      {a, b},
		"button": {b, c},
	}}

	got, err := FindAll(context.Background(), d, []Query{
		{Selector: "a"},
		{Selector: "[broken"},
		{Selector: "button"},
	})
	require.NoError(t, err)
	require.Equal(t, []Element{a, b, c}, got)
}
