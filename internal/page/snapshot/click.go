package snapshot

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"

	"github.com/shanehull/annfetch/internal/page"
)

// PartialSuffix marks a download still in flight, as Chrome does.
const PartialSuffix = ".crdownload"

var tracer = otel.Tracer("annfetch/internal/page/snapshot")

var (
	quotedURL     = regexp.MustCompile(`['"]((?:https?://|/|\./)[^'"\s]+)['"]`)
	pointerAttrs  = []string{"data-href", "data-url", "data-download-url"}
	unsafeNameChr = regexp.MustCompile(`[^A-Za-z0-9._ ()-]+`)
)

// Click resolves the URL the method would navigate to and downloads it in the
// background. It returns as soon as the download has started.
func (d *Driver) Click(ctx context.Context, el page.Element, method page.ClickMethod) error {
	if d.closed.Load() {
		return page.ErrSessionLost
	}
	e, ok := el.(*Element)
	if !ok {
		return fmt.Errorf("element %s does not belong to this snapshot", el.Key())
	}

	var target string
	switch method {
	case page.NativeClick:
		target = nativeTarget(e.node)
	case page.ScriptClick:
		target = scriptTarget(e.node)
	case page.PointerClick:
		target = pointerTarget(e.node)
	}
	if target == "" {
		return page.ErrNotClickable
	}

	u, err := d.resolve(target)
	if err != nil {
		return fmt.Errorf("%w: %v", page.ErrNotClickable, err)
	}
	if d.opts.DownloadDir == "" {
		return fmt.Errorf("no download directory configured")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.download(u); err != nil {
			d.log.Warn("download failed", "url", u, "err", err)
			d.mu.Lock()
			d.failures = append(d.failures, err)
			d.mu.Unlock()
		}
	}()
	return nil
}

// nativeTarget follows the click up to the nearest link, as event bubbling
// would.
func nativeTarget(n *html.Node) string {
	for ; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if n.Data != "a" {
			continue
		}
		href := strings.TrimSpace(attr(n, "href"))
		if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return ""
		}
		return href
	}
	return ""
}

func scriptTarget(n *html.Node) string {
	for ; n != nil && n.Type == html.ElementNode; n = n.Parent {
		handler := attr(n, "onclick")
		if handler == "" {
			continue
		}
		if m := quotedURL.FindStringSubmatch(handler); m != nil {
			return m[1]
		}
		return ""
	}
	return ""
}

func pointerTarget(n *html.Node) string {
	for ; n != nil && n.Type == html.ElementNode; n = n.Parent {
		for _, name := range pointerAttrs {
			if v := strings.TrimSpace(attr(n, name)); v != "" {
				return v
			}
		}
	}
	return ""
}

func (d *Driver) resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if d.opts.BaseURL == "" {
		return "", fmt.Errorf("relative target %q without a base URL", target)
	}
	base, err := url.Parse(d.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (d *Driver) download(rawURL string) (err error) {
	ctx, span := tracer.Start(d.ctx, "download")
	span.SetAttributes(attribute.String("url", rawURL))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "download failed")
		}
		span.End()
	}()

	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return fmt.Errorf("received status code %d from %s", resp.StatusCode(), rawURL)
	}

	name := downloadName(rawURL, resp.Header().Get("Content-Disposition"))

	// Name reservation must not interleave between concurrent downloads.
	d.mu.Lock()
	final := uniquePath(filepath.Join(d.opts.DownloadDir, name))
	partial := final + PartialSuffix
	f, err := os.Create(partial)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", partial, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(partial)
		return fmt.Errorf("failed to write %s: %w", partial, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to close %s: %w", partial, err)
	}
	if err := os.Rename(partial, final); err != nil {
		return fmt.Errorf("failed to finalise %s: %w", final, err)
	}
	span.SetAttributes(attribute.String("path", final))
	return nil
}

func downloadName(rawURL, disposition string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			return sanitizeName(params["filename"])
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." {
			return sanitizeName(base)
		}
	}
	return "download"
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeNameChr.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		return "download"
	}
	return name
}

// uniquePath appends " (n)" before the extension until the name is free.
func uniquePath(p string) string {
	if !exists(p) && !exists(p+PartialSuffix) {
		return p
	}
	ext := filepath.Ext(p)
	stem := strings.TrimSuffix(p, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if !exists(candidate) && !exists(candidate+PartialSuffix) {
			return candidate
		}
	}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
