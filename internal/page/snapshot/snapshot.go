/*
Package snapshot implements page.Driver over a captured HTML page. Geometry
comes from the data-rect attribute the capture step writes on every element,
and clicks start browser-style downloads into a directory.
*/
package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"github.com/shanehull/annfetch/internal/page"
)

const RectAttr = "data-rect"

type Options struct {
	BaseURL     string
	DownloadDir string
	Client      *resty.Client
	Logger      *slog.Logger
}

type Driver struct {
	doc    *goquery.Document
	opts   Options
	client *resty.Client
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	mu       sync.Mutex
	failures []error
}

// Open loads a captured page from disk.
func Open(path string, opts Options) (*Driver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	defer f.Close()
	return New(f, opts)
}

func New(r io.Reader, opts Options) (*Driver, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot HTML: %w", err)
	}

	client := opts.Client
	if client == nil {
		client = resty.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		doc:    doc,
		opts:   opts,
		client: client,
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (d *Driver) Find(ctx context.Context, q page.Query) ([]page.Element, error) {
	if d.closed.Load() {
		return nil, page.ErrSessionLost
	}
	return find(d, d.doc.Selection, q)
}

func (d *Driver) ScrollIntoView(ctx context.Context, el page.Element) error {
	if d.closed.Load() {
		return page.ErrSessionLost
	}
	if _, ok := el.(*Element); !ok {
		return fmt.Errorf("element %s does not belong to this snapshot", el.Key())
	}
	return nil
}

// Close stops accepting calls and waits for in-flight downloads.
func (d *Driver) Close() error {
	d.closed.Store(true)
	d.wg.Wait()
	d.cancel()
	return nil
}

// Wait blocks until every download started so far has finished.
func (d *Driver) Wait() {
	d.wg.Wait()
}

// DownloadFailures returns the errors of downloads that did not complete.
func (d *Driver) DownloadFailures() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.failures...)
}

func find(d *Driver, scope *goquery.Selection, q page.Query) ([]page.Element, error) {
	selector := q.Selector
	if selector == "" {
		selector = "*"
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	var out []page.Element
	scope.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		if q.TextPattern != nil && !q.TextPattern.MatchString(ownText(n)) {
			return
		}
		out = append(out, &Element{driver: d, node: n})
	})
	return out, nil
}

// Element is one node of the snapshot.
type Element struct {
	driver *Driver
	node   *html.Node
}

func (e *Element) Key() string { return fmt.Sprintf("%p", e.node) }

func (e *Element) Tag() string { return strings.ToLower(e.node.Data) }

func (e *Element) Text(ctx context.Context) (string, error) {
	if e.driver.closed.Load() {
		return "", page.ErrSessionLost
	}
	return innerText(e.node), nil
}

func (e *Element) InnerHTML(ctx context.Context) (string, error) {
	if e.driver.closed.Load() {
		return "", page.ErrSessionLost
	}
	return goquery.NewDocumentFromNode(e.node).Html()
}

func (e *Element) Attr(ctx context.Context, name string) (string, error) {
	if e.driver.closed.Load() {
		return "", page.ErrSessionLost
	}
	return attr(e.node, name), nil
}

func (e *Element) Rect(ctx context.Context) (page.Rect, error) {
	raw := attr(e.node, RectAttr)
	if raw == "" {
		return page.Rect{}, page.ErrNoGeometry
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return page.Rect{}, fmt.Errorf("malformed %s %q: %w", RectAttr, raw, page.ErrNoGeometry)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return page.Rect{}, fmt.Errorf("malformed %s %q: %w", RectAttr, raw, page.ErrNoGeometry)
		}
		v[i] = f
	}
	return page.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func (e *Element) Parent(ctx context.Context) (page.Element, error) {
	if e.driver.closed.Load() {
		return nil, page.ErrSessionLost
	}
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil, nil
	}
	return &Element{driver: e.driver, node: p}, nil
}

func (e *Element) Find(ctx context.Context, q page.Query) ([]page.Element, error) {
	if e.driver.closed.Load() {
		return nil, page.ErrSessionLost
	}
	return find(e.driver, goquery.NewDocumentFromNode(e.node).Selection, q)
}
