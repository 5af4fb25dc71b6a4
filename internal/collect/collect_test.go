package collect

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/shanehull/annfetch/internal/archive"
	"github.com/shanehull/annfetch/internal/dates"
	"github.com/shanehull/annfetch/internal/download"
	"github.com/shanehull/annfetch/internal/history"
	"github.com/shanehull/annfetch/internal/match"
	"github.com/shanehull/annfetch/internal/page"
	"github.com/shanehull/annfetch/internal/page/snapshot"
	"github.com/shanehull/annfetch/internal/score"
	"github.com/shanehull/annfetch/internal/types"
)

var (
	today   = time.Date(2025, time.July, 1, 9, 30, 0, 0, time.UTC)
	pdfBody = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
)

func bundle(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string][]byte{
		"GLB_11423_1.pdf": pdfBody,
		"readme.txt":      []byte("see attached bulletin"),
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type env struct {
	collector *Collector
	driver    *snapshot.Driver
	ledger    *history.Manager
	dlDir     string
	outDir    string
}

func setup(t *testing.T, missing ...string) *env {
	t.Helper()
	override := map[string]http.HandlerFunc{}
	for _, m := range missing {
		override[m] = http.NotFound
	}
	return setupWith(t, "testdata/announcements.html", override)
}

// setupWith serves the bulletin files, letting override replace the handler
// of individual paths.
func setupWith(t *testing.T, fixture string, override map[string]http.HandlerFunc) *env {
	t.Helper()
	zipBody := bundle(t)

	mux := http.NewServeMux()
	serve := func(path string, body []byte) {
		if h, ok := override[path]; ok {
			mux.HandleFunc(path, h)
			return
		}
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Write(body)
		})
	}
	serve("/docs/glb-11423.zip", zipBody)
	serve("/docs/lac-8812.pdf", pdfBody)
	serve("/docs/glb-9001.zip", zipBody)
	serve("/docs/glb-7001.zip", zipBody)
	serve("/docs/glb-7002.zip", zipBody)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	dlDir := filepath.Join(dir, "downloads")
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dlDir, 0o755))

	drv, err := snapshot.Open(fixture, snapshot.Options{BaseURL: srv.URL, DownloadDir: dlDir})
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })

	ledger, err := history.NewManager(filepath.Join(dir, "history.json"), nil)
	require.NoError(t, err)

	wcfg := download.DefaultConfig(dlDir)
	wcfg.Interval = 10 * time.Millisecond
	wcfg.Timeout = 500 * time.Millisecond
	wcfg.MinSize = 10

	c := New(Deps{
		Driver:   drv,
		Matcher:  match.NewMatcher(match.DefaultContainerRules(), nil, nil),
		Scorer:   score.New(score.DefaultConfig()),
		Watcher:  download.NewWatcher(wcfg, nil),
		Unpacker: archive.NewUnpacker(archive.Config{OutDir: outDir}, nil),
		Ledger:   ledger,
	}, Config{
		Window: dates.WindowConfig{Anchor: time.Wednesday, Preset: dates.PresetSinceAnchor},
		OutDir: outDir,
		Pause:  time.Second,
	})
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	return &env{collector: c, driver: drv, ledger: ledger, dlDir: dlDir, outDir: outDir}
}

func TestSelectWorklist(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	records, err := e.collector.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, records, 4)

	window := dates.Compute(today, e.collector.cfg.Window)
	require.Equal(t, "25 Jun 2025 - 01 Jul 2025", window.String())

	// the same record reached through a second path collapses
	records = append(records, records[1])

	var report types.Report
	work, err := e.collector.Select(ctx, records, window, &report)
	require.NoError(t, err)
	require.Len(t, work, 2)

	require.Equal(t, "GLB 11423.1 Revised Standards for Chargeback Processing", work[0].Record.Title)
	require.Equal(t, "a", work[0].Trigger.Element.Tag())
	require.Equal(t, 13, work[0].Trigger.Score)

	require.Equal(t, "LAC 8812 Regional Pricing Update for Cross-Border Transactions", work[1].Record.Title)
	require.Equal(t, "span", work[1].Trigger.Element.Tag())
	require.Equal(t, 14, work[1].Trigger.Score)

	require.Equal(t, 4, report.RecordsInWindow)
	require.Equal(t, 1, report.NoTrigger)
	require.Equal(t, 2, report.Selected)
	require.Equal(t, Selecting, e.collector.State())
}

func TestSelectLimit(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	e.collector.cfg.MaxDownloads = 1

	records, err := e.collector.Scan(ctx)
	require.NoError(t, err)

	var report types.Report
	work, err := e.collector.Select(ctx, records, dates.Compute(today, e.collector.cfg.Window), &report)
	require.NoError(t, err)
	require.Len(t, work, 1)
	require.Equal(t, 1, report.Selected)
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	report, err := e.collector.Run(ctx, today)
	require.NoError(t, err)
	require.Equal(t, Done, e.collector.State())
	require.NotEmpty(t, report.RunID)

	require.Equal(t, 4, report.RecordsFound)
	require.Equal(t, 3, report.RecordsInWindow)
	require.Equal(t, 1, report.NoTrigger)
	require.Equal(t, 2, report.Selected)
	require.Equal(t, 2, report.TriggersInvoked)
	require.Equal(t, 2, report.DownloadsCompleted)
	require.Empty(t, report.Failures)

	downloaded, err := os.ReadDir(e.dlDir)
	require.NoError(t, err)
	var got []string
	for _, d := range downloaded {
		got = append(got, d.Name())
	}
	require.ElementsMatch(t, []string{"glb-11423.zip", "lac-8812.pdf"}, got)

	require.Len(t, report.Documents, 2)
	var names []string
	for _, d := range report.Documents {
		names = append(names, filepath.Base(d.Path))
		require.FileExists(t, d.Path)
	}
	sort.Strings(names)
	require.Equal(t, []string{"GLB_11423_1.pdf", "lac-8812.pdf"}, names)
	require.Equal(t, "GLB 11423.1 Revised Standards for Chargeback Processing", report.Documents[0].Record.Title)
	require.Equal(t, e.outDir, filepath.Dir(report.Documents[1].Path))

	// a second run skips what the ledger already holds
	again, err := e.collector.Run(ctx, today)
	require.NoError(t, err)
	require.Equal(t, 2, again.Skipped)
	require.Zero(t, again.Selected)
	require.Zero(t, again.TriggersInvoked)
	require.Equal(t, 2, e.ledger.Len())
}

func TestRunContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	e := setup(t, "/docs/glb-11423.zip")

	report, err := e.collector.Run(ctx, today)
	require.NoError(t, err)
	require.Equal(t, 2, report.TriggersInvoked)
	require.Equal(t, 1, report.DownloadsCompleted)
	require.Len(t, report.Failures, 1)
	require.Equal(t, "GLB 11423.1 Revised Standards for Chargeback Processing", report.Failures[0].Record.Title)
	require.Len(t, report.Documents, 1)
	require.Equal(t, "lac-8812.pdf", filepath.Base(report.Documents[0].Path))
	e.driver.Wait()
	require.Len(t, e.driver.DownloadFailures(), 1)
}

func TestRunRejectsLoginPage(t *testing.T) {
	ctx := context.Background()
	loginPage := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<!DOCTYPE html><html><head><title>Sign in</title></head><body><form>Session expired, please sign in again.</form></body></html>"))
	}
	e := setupWith(t, "testdata/announcements.html", map[string]http.HandlerFunc{"/docs/lac-8812.pdf": loginPage})

	report, err := e.collector.Run(ctx, today)
	require.NoError(t, err)
	require.Equal(t, 2, report.DownloadsCompleted)
	require.Len(t, report.Documents, 1)
	require.Equal(t, "GLB_11423_1.pdf", filepath.Base(report.Documents[0].Path))
	require.Len(t, report.Failures, 1)
	require.Equal(t, "LAC 8812 Regional Pricing Update for Cross-Border Transactions", report.Failures[0].Record.Title)
	require.Contains(t, report.Failures[0].Reason, "unrecognised download")
	require.NoFileExists(t, filepath.Join(e.outDir, "lac-8812.pdf"))
	require.Equal(t, 1, e.ledger.Len())

	// the rejected record is tried again
	again, err := e.collector.Run(ctx, today)
	require.NoError(t, err)
	require.Equal(t, 1, again.Skipped)
	require.Equal(t, 1, again.Selected)
	require.Equal(t, 1, again.TriggersInvoked)
}

func TestSelectUsesPublicationDate(t *testing.T) {
	ctx := context.Background()
	e := setupWith(t, "../match/testdata/effective_first.html", nil)

	records, err := e.collector.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), records[0].Date.Date)

	var report types.Report
	work, err := e.collector.Select(ctx, records, dates.Compute(today, e.collector.cfg.Window), &report)
	require.NoError(t, err)
	require.Equal(t, 1, report.RecordsInWindow)
	require.Len(t, work, 1)
	require.Equal(t, "GLB 7002 Interchange Rate Corrections for Domestic Debit Programs", work[0].Record.Title)
}

func TestRunLostSessionIsFatal(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.driver.Close())

	_, err := e.collector.Run(context.Background(), today)
	require.ErrorIs(t, err, ErrFatal)
	require.ErrorIs(t, err, page.ErrSessionLost)
}

func TestRunUncreatableOutputIsFatal(t *testing.T) {
	e := setup(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	e.collector.cfg.OutDir = filepath.Join(blocker, "out")

	report, err := e.collector.Run(context.Background(), today)
	require.ErrorIs(t, err, ErrFatal)
	require.Equal(t, 2, report.Selected)
	require.Zero(t, report.TriggersInvoked)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "scanning", Scanning.String())
	require.Equal(t, "reporting", Reporting.String())
	require.Equal(t, "state(42)", State(42).String())
}
