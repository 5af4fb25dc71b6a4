package download

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig(dir string) Config {
	cfg := DefaultConfig(dir)
	cfg.Interval = 10 * time.Millisecond
	cfg.Timeout = 300 * time.Millisecond
	cfg.MinSize = 10
	return cfg
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o644))
}

func TestWaitReturnsNewFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "old.pdf"), 100)

	w := NewWatcher(testConfig(dir), nil)
	before, err := w.Snapshot()
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "new.pdf"), bytes.Repeat([]byte("x"), 100), 0o644)
	}()

	out, err := w.Wait(context.Background(), before)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "new.pdf"), out.Path)
	require.EqualValues(t, 100, out.Size)
}

func TestWaitIgnoresPartialAndSmallFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(testConfig(dir), nil)
	before, err := w.Snapshot()
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "doc.pdf.crdownload"), 1000)
	writeFile(t, filepath.Join(dir, "doc.zip.PART"), 1000)
	writeFile(t, filepath.Join(dir, "empty.pdf"), 0)
	writeFile(t, filepath.Join(dir, "tiny.pdf"), 5)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	_, err = w.Wait(context.Background(), before)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestWaitPicksOldestThenName(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(testConfig(dir), nil)
	before, err := w.Snapshot()
	require.NoError(t, err)

	now := time.Now()
	for _, f := range []struct {
		name string
		age  time.Duration
	}{
		{"b.pdf", time.Minute},
		{"a.pdf", time.Minute},
		{"c.pdf", 2 * time.Second},
	} {
		path := filepath.Join(dir, f.name)
		writeFile(t, path, 50)
		require.NoError(t, os.Chtimes(path, now.Add(-f.age), now.Add(-f.age)))
	}

	out, err := w.Wait(context.Background(), before)
	require.NoError(t, err)
	require.Equal(t, "a.pdf", filepath.Base(out.Path))
}

func TestWaitRequireStable(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.RequireStable = true
	w := NewWatcher(cfg, nil)
	before, err := w.Snapshot()
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "doc.pdf"), 50)
	out, err := w.Wait(context.Background(), before)
	require.NoError(t, err)
	require.Equal(t, "doc.pdf", filepath.Base(out.Path))
	require.GreaterOrEqual(t, out.Elapsed, cfg.Interval)
}

func TestWaitUnreadableDir(t *testing.T) {
	w := NewWatcher(testConfig(filepath.Join(t.TempDir(), "missing")), nil)

	_, err := w.Snapshot()
	require.Error(t, err)

	_, err = w.Wait(context.Background(), Snapshot{})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTimeout)
}

func TestWaitCancelled(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(testConfig(dir), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Wait(ctx, Snapshot{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPartial(t *testing.T) {
	w := NewWatcher(DefaultConfig(""), nil)
	require.True(t, w.Partial("a.pdf.crdownload"))
	require.True(t, w.Partial("a.TMP"))
	require.True(t, w.Partial("a.zip.download"))
	require.False(t, w.Partial("a.pdf"))
	require.False(t, w.Partial("downloads.zip"))
}
