package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		cfg   WindowConfig
		want  Window
	}{
		{
			name:  "since wednesday, tuesday",
			today: day(2025, time.July, 1),
			cfg:   WindowConfig{Anchor: time.Wednesday, Preset: PresetSinceAnchor},
			want:  Window{Start: day(2025, time.June, 25), End: day(2025, time.July, 1)},
		},
		{
			name:  "since wednesday, on wednesday, default policy goes back a week",
			today: day(2025, time.July, 2),
			cfg:   WindowConfig{Anchor: time.Wednesday, Preset: PresetSinceAnchor},
			want:  Window{Start: day(2025, time.June, 25), End: day(2025, time.July, 2)},
		},
		{
			name:  "since wednesday, on wednesday, today policy",
			today: day(2025, time.July, 2),
			cfg:   WindowConfig{Anchor: time.Wednesday, Preset: PresetSinceAnchor, OnAnchorDay: AnchorToday},
			want:  Window{Start: day(2025, time.July, 2), End: day(2025, time.July, 2)},
		},
		{
			name:  "previous week from tuesday",
			today: day(2025, time.July, 1),
			cfg:   WindowConfig{Anchor: time.Monday, Preset: PresetPreviousWeek},
			want:  Window{Start: day(2025, time.June, 23), End: day(2025, time.June, 29)},
		},
		{
			name:  "previous week on monday",
			today: day(2025, time.July, 7),
			cfg:   WindowConfig{Anchor: time.Monday, Preset: PresetPreviousWeek},
			want:  Window{Start: day(2025, time.June, 30), End: day(2025, time.July, 6)},
		},
		{
			name:  "previous week anchored on wednesday ends on sunday",
			today: day(2025, time.July, 1),
			cfg:   WindowConfig{Anchor: time.Wednesday, Preset: PresetPreviousWeek},
			want:  Window{Start: day(2025, time.June, 16), End: day(2025, time.June, 22)},
		},
		{
			name:  "previous week anchored on sunday skips the anchor itself",
			today: day(2025, time.June, 29),
			cfg:   WindowConfig{Anchor: time.Sunday, Preset: PresetPreviousWeek},
			want:  Window{Start: day(2025, time.June, 16), End: day(2025, time.June, 22)},
		},
		{
			name:  "time of day is ignored",
			today: time.Date(2025, time.July, 1, 23, 59, 0, 0, time.UTC),
			cfg:   WindowConfig{Anchor: time.Wednesday, Preset: PresetSinceAnchor},
			want:  Window{Start: day(2025, time.June, 25), End: day(2025, time.July, 1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Compute(tt.today, tt.cfg))
		})
	}
}

func TestComputeInvariants(t *testing.T) {
	presets := []Preset{PresetSinceAnchor, PresetPreviousWeek}
	policies := []AnchorPolicy{AnchorToday, AnchorPreviousWeek}

	for today := day(2024, time.January, 1); today.Before(day(2025, time.March, 1)); today = today.AddDate(0, 0, 1) {
		for anchor := time.Sunday; anchor <= time.Saturday; anchor++ {
			for _, preset := range presets {
				for _, policy := range policies {
					cfg := WindowConfig{Anchor: anchor, Preset: preset, OnAnchorDay: policy}
					w := Compute(today, cfg)

					require.False(t, w.End.Before(w.Start), "%s %v", today, cfg)
					require.False(t, w.End.After(today), "%s %v", today, cfg)
					require.Equal(t, w, Compute(today, cfg))

					if preset == PresetSinceAnchor {
						require.Equal(t, anchor, w.Start.Weekday(), "%s %v", today, cfg)
						require.Equal(t, today, w.End)
						continue
					}
					require.Equal(t, time.Monday, w.Start.Weekday(), "%s %v", today, cfg)
					require.Equal(t, time.Sunday, w.End.Weekday(), "%s %v", today, cfg)
					require.Equal(t, 6, int(w.End.Sub(w.Start).Hours()/24))

					last := MostRecent(today, anchor, policy)
					gap := int(last.Sub(w.End).Hours() / 24)
					require.True(t, gap >= 1 && gap <= 7, "%s %v gap %d", today, cfg, gap)
				}
			}
		}
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{Start: day(2025, time.June, 25), End: day(2025, time.July, 1)}

	require.True(t, w.Contains(day(2025, time.June, 25)))
	require.True(t, w.Contains(time.Date(2025, time.July, 1, 18, 0, 0, 0, time.UTC)))
	require.False(t, w.Contains(day(2025, time.June, 24)))
	require.False(t, w.Contains(day(2025, time.July, 2)))
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"wednesday": time.Wednesday,
		"Wed":       time.Wednesday,
		" MONDAY ":  time.Monday,
		"sun":       time.Sunday,
	} {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseWeekday("someday")
	require.Error(t, err)
}
