/*
Package download detects browser-initiated downloads by comparing a directory
listing against a snapshot taken before the download was triggered.

Only one download may be in flight per watched directory.
*/
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shanehull/annfetch/internal/types"
)

var ErrTimeout = errors.New("download not observed before timeout")

var DefaultPartialSuffixes = []string{".crdownload", ".part", ".tmp", ".download"}

type Config struct {
	Dir             string
	Interval        time.Duration
	Timeout         time.Duration
	MinSize         int64
	PartialSuffixes []string
	// RequireStable waits for one extra poll with an unchanged size.
	RequireStable bool
}

func DefaultConfig(dir string) Config {
	return Config{
		Dir:             dir,
		Interval:        3 * time.Second,
		Timeout:         45 * time.Second,
		MinSize:         500,
		PartialSuffixes: DefaultPartialSuffixes,
	}
}

// Snapshot is the set of names present in the watched directory.
type Snapshot map[string]struct{}

type Watcher struct {
	cfg Config
	log *slog.Logger
	now func() time.Time
}

func NewWatcher(cfg Config, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.PartialSuffixes == nil {
		cfg.PartialSuffixes = DefaultPartialSuffixes
	}
	return &Watcher{cfg: cfg, log: logger, now: time.Now}
}

func (w *Watcher) Dir() string { return w.cfg.Dir }

// Snapshot lists the directory. An unreadable directory is an error the
// caller should treat as fatal.
func (w *Watcher) Snapshot() (Snapshot, error) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("listing download dir: %w", err)
	}
	snap := make(Snapshot, len(entries))
	for _, e := range entries {
		snap[e.Name()] = struct{}{}
	}
	return snap, nil
}

// Wait polls until a completed file not in before appears. It returns
// ErrTimeout when none does within the configured timeout.
func (w *Watcher) Wait(ctx context.Context, before Snapshot) (types.DownloadOutcome, error) {
	start := w.now()
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	sizes := map[string]int64{}
	for {
		path, size, err := w.poll(before, sizes)
		if err != nil {
			return types.DownloadOutcome{}, err
		}
		if path != "" {
			elapsed := w.now().Sub(start)
			w.log.DebugContext(ctx, "download complete", "path", path, "size", size, "elapsed", elapsed)
			return types.DownloadOutcome{Path: path, Size: size, Elapsed: elapsed}, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return types.DownloadOutcome{}, fmt.Errorf("%w after %s", ErrTimeout, w.cfg.Timeout)
			}
			return types.DownloadOutcome{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

type candidate struct {
	name    string
	size    int64
	modTime time.Time
}

func (w *Watcher) poll(before Snapshot, sizes map[string]int64) (string, int64, error) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return "", 0, fmt.Errorf("listing download dir: %w", err)
	}

	var found []candidate
	for _, e := range entries {
		name := e.Name()
		if _, ok := before[name]; ok || e.IsDir() || w.Partial(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// renamed or removed between listing and stat
			continue
		}
		if info.Size() <= 0 || info.Size() < w.cfg.MinSize {
			continue
		}
		if w.cfg.RequireStable {
			prev, seen := sizes[name]
			sizes[name] = info.Size()
			if !seen || prev != info.Size() {
				continue
			}
		}
		found = append(found, candidate{name: name, size: info.Size(), modTime: info.ModTime()})
	}
	if len(found) == 0 {
		return "", 0, nil
	}

	sort.Slice(found, func(i, j int) bool {
		if !found[i].modTime.Equal(found[j].modTime) {
			return found[i].modTime.Before(found[j].modTime)
		}
		return found[i].name < found[j].name
	})
	return filepath.Join(w.cfg.Dir, found[0].name), found[0].size, nil
}

// Partial reports whether name carries an in-progress marker.
func (w *Watcher) Partial(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range w.cfg.PartialSuffixes {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}
