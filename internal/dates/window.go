package dates

import (
	"fmt"
	"strings"
	"time"
)

type Preset string

const (
	// PresetSinceAnchor covers the most recent anchor weekday through today.
	PresetSinceAnchor Preset = "since_anchor"
	// PresetPreviousWeek covers the Monday to Sunday week that ends on the
	// last Sunday strictly before the most recent anchor.
	PresetPreviousWeek Preset = "previous_week"
)

// AnchorPolicy decides what "most recent anchor" means when today is itself
// the anchor weekday.
type AnchorPolicy string

const (
	AnchorToday        AnchorPolicy = "today"
	AnchorPreviousWeek AnchorPolicy = "previous_week"
)

type WindowConfig struct {
	Anchor      time.Weekday
	Preset      Preset
	OnAnchorDay AnchorPolicy
}

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("%s - %s", Format(w.Start), Format(w.End))
}

// Day truncates t to its calendar day at midnight UTC, keeping the wall-clock
// date of t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MostRecent returns the latest occurrence of weekday at or before today,
// resolving today == weekday with policy.
func MostRecent(today time.Time, weekday time.Weekday, policy AnchorPolicy) time.Time {
	today = Day(today)
	back := (int(today.Weekday()) - int(weekday) + 7) % 7
	if back == 0 && policy == AnchorPreviousWeek {
		back = 7
	}
	return today.AddDate(0, 0, -back)
}

// Compute returns the acceptance window for today.
func Compute(today time.Time, cfg WindowConfig) Window {
	today = Day(today)
	policy := cfg.OnAnchorDay
	if policy == "" {
		policy = DefaultPolicy(cfg.Preset)
	}
	anchor := MostRecent(today, cfg.Anchor, policy)

	if cfg.Preset == PresetPreviousWeek {
		end := MostRecent(anchor.AddDate(0, 0, -1), time.Sunday, AnchorToday)
		return Window{Start: end.AddDate(0, 0, -6), End: end}
	}
	return Window{Start: anchor, End: today}
}

// DefaultPolicy is the anchor-day behaviour each preset uses when none is set.
func DefaultPolicy(p Preset) AnchorPolicy {
	if p == PresetPreviousWeek {
		return AnchorToday
	}
	return AnchorPreviousWeek
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
