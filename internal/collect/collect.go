/*
Package collect runs one collection pass over a page: find the dated
announcement records, keep those inside the acceptance window that have a
usable download trigger, retrieve them one at a time, and report.
*/
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/shanehull/annfetch/internal/archive"
	"github.com/shanehull/annfetch/internal/dates"
	"github.com/shanehull/annfetch/internal/download"
	"github.com/shanehull/annfetch/internal/match"
	"github.com/shanehull/annfetch/internal/page"
	"github.com/shanehull/annfetch/internal/score"
	"github.com/shanehull/annfetch/internal/types"
)

// ErrFatal wraps any failure that leaves the page driver or the filesystem
// unusable. Everything else is folded into the report.
var ErrFatal = errors.New("collection aborted")

var tracer = otel.Tracer("annfetch/internal/collect")

type State int

const (
	Idle State = iota
	Scanning
	Selecting
	Retrieving
	Reporting
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Selecting:
		return "selecting"
	case Retrieving:
		return "retrieving"
	case Reporting:
		return "reporting"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Ledger remembers records retrieved by earlier runs.
type Ledger interface {
	Seen(key string) bool
	Record(key string, ref types.RecordRef, docs []types.ExtractedDocument) error
}

type Summarizer interface {
	Summarize(ctx context.Context, path string) (*types.Summary, error)
}

type Config struct {
	Window       dates.WindowConfig
	ScanQueries  []page.Query
	ClickMethods []page.ClickMethod
	// Settle is the pause after scrolling, before the directory snapshot.
	Settle time.Duration
	// Pause separates consecutive retrieval attempts.
	Pause        time.Duration
	MaxDownloads int // 0 means no limit
	Force        bool
	OutDir       string
}

type Deps struct {
	Driver     page.Driver
	Matcher    *match.Matcher
	Scorer     *score.Scorer
	Watcher    *download.Watcher
	Unpacker   *archive.Unpacker
	Ledger     Ledger     // optional
	Summarizer Summarizer // optional
	Logger     *slog.Logger
}

type Collector struct {
	Deps
	cfg   Config
	log   *slog.Logger
	state State
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// WorkItem is one record scheduled for retrieval with its chosen trigger.
type WorkItem struct {
	Record  types.DocumentRecord
	Trigger types.Candidate
}

func (w WorkItem) Ref() types.RecordRef {
	return types.RecordRef{Title: w.Record.Title, Date: w.Record.Date}
}

func New(deps Deps, cfg Config) *Collector {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.ScanQueries) == 0 {
		cfg.ScanQueries = match.DefaultScanQueries()
	}
	if len(cfg.ClickMethods) == 0 {
		cfg.ClickMethods = page.DefaultClickMethods
	}
	return &Collector{
		Deps:  deps,
		cfg:   cfg,
		log:   logger,
		sleep: sleepContext,
		now:   time.Now,
	}
}

func (c *Collector) State() State { return c.state }

func (c *Collector) enter(ctx context.Context, s State) {
	c.log.DebugContext(ctx, "collector state", "from", c.state, "state", s)
	c.state = s
}

// Run performs the whole pass for the given day. The report is returned even
// when a fatal error cuts the run short.
func (c *Collector) Run(ctx context.Context, today time.Time) (types.Report, error) {
	ctx, span := tracer.Start(ctx, "collect.Run")
	defer span.End()

	window := dates.Compute(today, c.cfg.Window)
	report := types.Report{
		RunID:       uuid.NewString(),
		WindowStart: window.Start,
		WindowEnd:   window.End,
		StartedAt:   c.now(),
	}
	c.log.InfoContext(ctx, "starting collection", "run", report.RunID, "window", window.String())

	err := c.run(ctx, window, &report)

	c.enter(ctx, Reporting)
	report.FinishedAt = c.now()
	c.log.InfoContext(ctx, "collection finished",
		"run", report.RunID,
		"found", report.RecordsFound,
		"in_window", report.RecordsInWindow,
		"selected", report.Selected,
		"triggered", report.TriggersInvoked,
		"downloaded", report.DownloadsCompleted,
		"extracted", len(report.Documents),
		"failed", len(report.Failures),
	)
	c.enter(ctx, Done)

	if err != nil {
		span.RecordError(err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return report, err
		}
		return report, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	return report, nil
}

func (c *Collector) run(ctx context.Context, window dates.Window, report *types.Report) error {
	records, err := c.Scan(ctx)
	if err != nil {
		return err
	}
	report.RecordsFound = len(records)

	work, err := c.Select(ctx, records, window, report)
	if err != nil {
		return err
	}
	return c.Retrieve(ctx, work, report)
}

// Scan locates every dated record on the page, each container once, in page
// order.
func (c *Collector) Scan(ctx context.Context) ([]types.DocumentRecord, error) {
	c.enter(ctx, Scanning)
	ctx, span := tracer.Start(ctx, "collect.Scan")
	defer span.End()

	dated, err := page.FindAll(ctx, c.Driver, c.cfg.ScanQueries)
	if err != nil {
		return nil, fmt.Errorf("scanning page: %w", err)
	}

	seen := make(map[string]bool)
	var records []types.DocumentRecord
	for _, el := range dated {
		rec, ok, err := c.Matcher.Locate(ctx, el)
		if err != nil {
			if errors.Is(err, page.ErrSessionLost) {
				return records, err
			}
			c.log.WarnContext(ctx, "failed to locate record", "tag", el.Tag(), "err", err)
			continue
		}
		if !ok {
			continue
		}
		if seen[rec.Container.Key()] {
			continue
		}
		seen[rec.Container.Key()] = true
		records = append(records, rec)
	}

	c.log.DebugContext(ctx, "scan complete", "dated_elements", len(dated), "records", len(records))
	return records, nil
}

// Select keeps the records inside window that have an acceptable trigger,
// collapses duplicates by record key and applies history and the download
// limit. Scan order is preserved.
func (c *Collector) Select(ctx context.Context, records []types.DocumentRecord, window dates.Window, report *types.Report) ([]WorkItem, error) {
	c.enter(ctx, Selecting)
	ctx, span := tracer.Start(ctx, "collect.Select")
	defer span.End()

	keys := make(map[string]bool)
	var work []WorkItem
	for _, rec := range records {
		if !window.Contains(rec.Date.Date) {
			c.log.DebugContext(ctx, "record outside window", "title", rec.Title, "date", dates.Format(rec.Date.Date))
			continue
		}
		report.RecordsInWindow++

		if err := c.Scorer.Rate(ctx, &rec); err != nil {
			if errors.Is(err, page.ErrSessionLost) {
				return nil, err
			}
			c.log.WarnContext(ctx, "failed to score candidates", "title", rec.Title, "err", err)
			continue
		}
		trigger, ok := c.Scorer.Select(rec.Candidates)
		if !ok {
			report.NoTrigger++
			c.log.DebugContext(ctx, "no usable trigger", "title", rec.Title, "candidates", len(rec.Candidates))
			continue
		}

		key := rec.Key()
		if keys[key] {
			c.log.DebugContext(ctx, "duplicate record", "title", rec.Title, "key", key)
			continue
		}
		keys[key] = true

		if !c.cfg.Force && c.Ledger != nil && c.Ledger.Seen(key) {
			report.Skipped++
			c.log.InfoContext(ctx, "already retrieved, skipping", "title", rec.Title)
			continue
		}

		work = append(work, WorkItem{Record: rec, Trigger: trigger})
	}

	if c.cfg.MaxDownloads > 0 && len(work) > c.cfg.MaxDownloads {
		c.log.InfoContext(ctx, "download limit reached", "limit", c.cfg.MaxDownloads, "dropped", len(work)-c.cfg.MaxDownloads)
		work = work[:c.cfg.MaxDownloads]
	}
	report.Selected = len(work)
	return work, nil
}

// Retrieve processes the worklist strictly one item at a time. A failure on
// one item is recorded and the next item proceeds.
func (c *Collector) Retrieve(ctx context.Context, work []WorkItem, report *types.Report) error {
	c.enter(ctx, Retrieving)

	for _, dir := range []string{c.Watcher.Dir(), c.cfg.OutDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	for i, item := range work {
		if i > 0 {
			if err := c.sleep(ctx, c.cfg.Pause); err != nil {
				return err
			}
		}
		if err := c.retrieve(ctx, item, report); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) retrieve(ctx context.Context, item WorkItem, report *types.Report) error {
	ctx, span := tracer.Start(ctx, "collect.retrieve")
	defer span.End()

	ref := item.Ref()
	log := c.log.With("title", ref.Title, "date", dates.Format(ref.Date.Date))
	fail := func(reason string, err error) {
		log.WarnContext(ctx, reason, "err", err)
		report.Failures = append(report.Failures, types.Failure{Record: ref, Reason: fmt.Sprintf("%s: %v", reason, err)})
	}

	el := item.Trigger.Element
	if err := c.Driver.ScrollIntoView(ctx, el); err != nil {
		if errors.Is(err, page.ErrSessionLost) {
			return err
		}
		log.DebugContext(ctx, "scroll failed", "err", err)
	}
	if err := c.sleep(ctx, c.cfg.Settle); err != nil {
		return err
	}

	before, err := c.Watcher.Snapshot()
	if err != nil {
		return err
	}

	method, err := page.Click(ctx, c.Driver, el, c.cfg.ClickMethods...)
	if err != nil {
		if errors.Is(err, page.ErrSessionLost) || ctx.Err() != nil {
			return err
		}
		fail("trigger failed", err)
		return nil
	}
	report.TriggersInvoked++
	log.InfoContext(ctx, "triggered download", "method", method, "score", item.Trigger.Score, "context", item.Trigger.Context)

	outcome, err := c.Watcher.Wait(ctx, before)
	if err != nil {
		if errors.Is(err, download.ErrTimeout) {
			fail("download not observed", err)
			return nil
		}
		return err
	}
	report.DownloadsCompleted++
	log.InfoContext(ctx, "download complete", "path", outcome.Path, "size", outcome.Size, "elapsed", outcome.Elapsed)

	docs, unpackErr := c.Unpacker.Unpack(outcome.Path, ref)
	switch {
	case unpackErr != nil:
		fail("unpack failed", unpackErr)
	case len(docs) == 0:
		log.InfoContext(ctx, "no documents in download", "path", outcome.Path)
	}

	if c.Summarizer != nil {
		for i := range docs {
			sum, err := c.Summarizer.Summarize(ctx, docs[i].Path)
			if err != nil {
				log.WarnContext(ctx, "summary failed", "path", docs[i].Path, "err", err)
				continue
			}
			docs[i].Summary = sum
		}
	}
	report.Documents = append(report.Documents, docs...)

	// Records without documents stay unrecorded and are retried next run.
	if c.Ledger != nil && unpackErr == nil && len(docs) > 0 {
		if err := c.Ledger.Record(item.Record.Key(), ref, docs); err != nil {
			log.WarnContext(ctx, "failed to record history", "err", err)
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
