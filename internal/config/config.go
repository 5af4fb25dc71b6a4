/*
Package config loads run settings from a YAML or JSON5 file, merges an optional
<name>.local.<ext> file over it and converts the result into the settings each
component takes.
*/
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"

	"github.com/shanehull/annfetch/internal/archive"
	"github.com/shanehull/annfetch/internal/collect"
	"github.com/shanehull/annfetch/internal/dates"
	"github.com/shanehull/annfetch/internal/download"
	"github.com/shanehull/annfetch/internal/history"
	"github.com/shanehull/annfetch/internal/match"
	"github.com/shanehull/annfetch/internal/notify"
	"github.com/shanehull/annfetch/internal/page"
	"github.com/shanehull/annfetch/internal/score"
)

const DefaultPath = "annfetch.yaml"

type Config struct {
	DownloadDir string `yaml:"download_dir" json:"download_dir"`
	OutputDir   string `yaml:"output_dir" json:"output_dir"`
	Extension   string `yaml:"extension" json:"extension"`
	HistoryPath string `yaml:"history_path" json:"history_path"`

	Window    WindowConfig    `yaml:"window" json:"window"`
	Container ContainerConfig `yaml:"container" json:"container"`
	Scoring   ScoringConfig   `yaml:"scoring" json:"scoring"`
	Watcher   WatcherConfig   `yaml:"watcher" json:"watcher"`
	Retrieval RetrievalConfig `yaml:"retrieval" json:"retrieval"`
	Email     EmailConfig     `yaml:"email" json:"email"`
	AI        AIConfig        `yaml:"ai" json:"ai"`
}

type WindowConfig struct {
	Anchor      string `yaml:"anchor" json:"anchor"`
	Preset      string `yaml:"preset" json:"preset"`
	OnAnchorDay string `yaml:"on_anchor_day" json:"on_anchor_day"`
}

type ContainerConfig struct {
	MaxLevels      int      `yaml:"max_levels" json:"max_levels"`
	MinTextLen     int      `yaml:"min_text_len" json:"min_text_len"`
	MaxTextLen     int      `yaml:"max_text_len" json:"max_text_len"`
	MinLines       int      `yaml:"min_lines" json:"min_lines"`
	Keywords       []string `yaml:"keywords" json:"keywords"`
	MinKeywordHits int      `yaml:"min_keyword_hits" json:"min_keyword_hits"`
	Tags           []string `yaml:"tags" json:"tags"`
	// DateLabel precedes the date that dates a record. Empty disables it.
	DateLabel string `yaml:"date_label" json:"date_label"`
	// CandidateSelectors replaces the built-in candidate queries when set.
	CandidateSelectors []string `yaml:"candidate_selectors" json:"candidate_selectors"`
	// DatePatterns replaces the built-in scan queries when set.
	DatePatterns []string `yaml:"date_patterns" json:"date_patterns"`
}

type ScoringConfig struct {
	StrongKeywords   []string `yaml:"strong_keywords" json:"strong_keywords"`
	StrongWeight     int      `yaml:"strong_weight" json:"strong_weight"`
	ModerateKeywords []string `yaml:"moderate_keywords" json:"moderate_keywords"`
	ModerateWeight   int      `yaml:"moderate_weight" json:"moderate_weight"`
	StructuralWeight int      `yaml:"structural_weight" json:"structural_weight"`
	IconWeight       int      `yaml:"icon_weight" json:"icon_weight"`
	RightFraction    float64  `yaml:"right_fraction" json:"right_fraction"`
	RightWeight      int      `yaml:"right_weight" json:"right_weight"`
	IconMinSize      float64  `yaml:"icon_min_size" json:"icon_min_size"`
	IconMaxSize      float64  `yaml:"icon_max_size" json:"icon_max_size"`
	IconSizeWeight   int      `yaml:"icon_size_weight" json:"icon_size_weight"`
	HiddenMaxSize    float64  `yaml:"hidden_max_size" json:"hidden_max_size"`
	HiddenPenalty    int      `yaml:"hidden_penalty" json:"hidden_penalty"`
	MaxTextLen       int      `yaml:"max_text_len" json:"max_text_len"`
	TextPenalty      int      `yaml:"text_penalty" json:"text_penalty"`
	MinAccept        int      `yaml:"min_accept" json:"min_accept"`
}

type WatcherConfig struct {
	Interval        Duration `yaml:"interval" json:"interval"`
	Timeout         Duration `yaml:"timeout" json:"timeout"`
	MinSize         int64    `yaml:"min_size" json:"min_size"`
	PartialSuffixes []string `yaml:"partial_suffixes" json:"partial_suffixes"`
	RequireStable   bool     `yaml:"require_stable" json:"require_stable"`
}

type RetrievalConfig struct {
	Settle       Duration `yaml:"settle" json:"settle"`
	Pause        Duration `yaml:"pause" json:"pause"`
	MaxDownloads int      `yaml:"max_downloads" json:"max_downloads"`
	ClickMethods []string `yaml:"click_methods" json:"click_methods"`
}

type EmailConfig struct {
	SMTPServer  string `yaml:"smtp_server" json:"smtp_server"`
	SMTPPort    int    `yaml:"smtp_port" json:"smtp_port"`
	SMTPUser    string `yaml:"smtp_user" json:"smtp_user"`
	PasswordEnv string `yaml:"password_env" json:"password_env"`
	From        string `yaml:"from" json:"from"`
	To          string `yaml:"to" json:"to"`
}

type AIConfig struct {
	Model     string `yaml:"model" json:"model"`
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
}

// Default mirrors the built-in defaults of every component.
func Default() Config {
	rules := match.DefaultContainerRules()
	sc := score.DefaultConfig()
	wc := download.DefaultConfig("")

	return Config{
		DownloadDir: "downloads",
		OutputDir:   "documents",
		Extension:   ".pdf",
		HistoryPath: history.DefaultPath(),
		Window: WindowConfig{
			Anchor: "wednesday",
			Preset: string(dates.PresetSinceAnchor),
		},
		Container: ContainerConfig{
			MaxLevels:      rules.MaxLevels,
			MinTextLen:     rules.MinTextLen,
			MaxTextLen:     rules.MaxTextLen,
			MinLines:       rules.MinLines,
			Keywords:       rules.Keywords,
			MinKeywordHits: rules.MinKeywordHits,
			Tags:           rules.Tags,
			DateLabel:      rules.DateLabel,
		},
		Scoring: ScoringConfig{
			StrongKeywords:   sc.StrongKeywords,
			StrongWeight:     sc.StrongWeight,
			ModerateKeywords: sc.ModerateKeywords,
			ModerateWeight:   sc.ModerateWeight,
			StructuralWeight: sc.StructuralWeight,
			IconWeight:       sc.IconWeight,
			RightFraction:    sc.RightFraction,
			RightWeight:      sc.RightWeight,
			IconMinSize:      sc.IconMinSize,
			IconMaxSize:      sc.IconMaxSize,
			IconSizeWeight:   sc.IconSizeWeight,
			HiddenMaxSize:    sc.HiddenMaxSize,
			HiddenPenalty:    sc.HiddenPenalty,
			MaxTextLen:       sc.MaxTextLen,
			TextPenalty:      sc.TextPenalty,
			MinAccept:        sc.MinAccept,
		},
		Watcher: WatcherConfig{
			Interval:        Duration(wc.Interval),
			Timeout:         Duration(wc.Timeout),
			MinSize:         wc.MinSize,
			PartialSuffixes: wc.PartialSuffixes,
		},
		Retrieval: RetrievalConfig{
			Settle:       Duration(2 * time.Second),
			Pause:        Duration(3 * time.Second),
			ClickMethods: []string{"native", "script", "pointer"},
		},
		Email: EmailConfig{
			SMTPServer:  "smtp.gmail.com",
			SMTPPort:    587,
			PasswordEnv: "ANNFETCH_SMTP_PASS",
		},
		AI: AIConfig{
			Model:     "gemini-2.5-flash",
			APIKeyEnv: "GEMINI_API_KEY",
		},
	}
}

// Load reads path over the defaults and merges <name>.local.<ext> over that.
// A missing main file is not an error; the defaults apply.
//
// Each file is decoded over a copy of the layers below it, so keys the file
// omits keep their value while keys it sets to zero, false or an empty list
// really do override.
func Load(path string, logger *slog.Logger) (Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := Default()

	for i, p := range []string{path, localPath(path)} {
		layer := cfg
		found, err := decodeFile(p, &layer)
		if err != nil {
			return cfg, err
		}
		if !found {
			continue
		}
		if err := mergo.Merge(&cfg, layer, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return cfg, fmt.Errorf("merging %s: %w", p, err)
		}
		if i > 0 {
			logger.Info("merging config with local overrides", "local", p)
		}
	}

	return cfg, cfg.Validate()
}

func decodeFile(path string, out *Config) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return false, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		err = json5.Unmarshal(data, out)
	default:
		err = yaml.Unmarshal(data, out)
	}
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}
	return true, nil
}

func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// Validate rejects settings no component can work with.
func (c Config) Validate() error {
	var errs []error
	if _, err := dates.ParseWeekday(c.Window.Anchor); err != nil {
		errs = append(errs, fmt.Errorf("window.anchor: %w", err))
	}
	switch dates.Preset(c.Window.Preset) {
	case dates.PresetSinceAnchor, dates.PresetPreviousWeek:
	default:
		errs = append(errs, fmt.Errorf("window.preset: unknown preset %q", c.Window.Preset))
	}
	switch dates.AnchorPolicy(c.Window.OnAnchorDay) {
	case "", dates.AnchorToday, dates.AnchorPreviousWeek:
	default:
		errs = append(errs, fmt.Errorf("window.on_anchor_day: unknown policy %q", c.Window.OnAnchorDay))
	}
	if c.Watcher.Interval <= 0 {
		errs = append(errs, errors.New("watcher.interval must be positive"))
	}
	if c.Watcher.Timeout <= 0 {
		errs = append(errs, errors.New("watcher.timeout must be positive"))
	}
	if c.Scoring.RightFraction <= 0 || c.Scoring.RightFraction >= 1 {
		errs = append(errs, fmt.Errorf("scoring.right_fraction %v must be between 0 and 1", c.Scoring.RightFraction))
	}
	if c.Scoring.IconMinSize > c.Scoring.IconMaxSize {
		errs = append(errs, errors.New("scoring.icon_min_size exceeds icon_max_size"))
	}
	if c.Container.MaxLevels <= 0 {
		errs = append(errs, errors.New("container.max_levels must be positive"))
	}
	if c.DownloadDir == "" {
		errs = append(errs, errors.New("download_dir is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if _, err := c.ClickMethods(); err != nil {
		errs = append(errs, fmt.Errorf("retrieval.click_methods: %w", err))
	}
	if _, err := c.ScanQueries(); err != nil {
		errs = append(errs, fmt.Errorf("container.date_patterns: %w", err))
	}
	return errors.Join(errs...)
}

func (c Config) WindowConfig() (dates.WindowConfig, error) {
	wd, err := dates.ParseWeekday(c.Window.Anchor)
	if err != nil {
		return dates.WindowConfig{}, err
	}
	return dates.WindowConfig{
		Anchor:      wd,
		Preset:      dates.Preset(c.Window.Preset),
		OnAnchorDay: dates.AnchorPolicy(c.Window.OnAnchorDay),
	}, nil
}

func (c Config) ContainerRules() match.ContainerRules {
	return match.ContainerRules{
		MaxLevels:      c.Container.MaxLevels,
		MinTextLen:     c.Container.MinTextLen,
		MaxTextLen:     c.Container.MaxTextLen,
		MinLines:       c.Container.MinLines,
		Keywords:       c.Container.Keywords,
		MinKeywordHits: c.Container.MinKeywordHits,
		Tags:           c.Container.Tags,
		DateLabel:      c.Container.DateLabel,
	}
}

// CandidateQueries returns nil when the built-in queries should be used.
func (c Config) CandidateQueries() []page.Query {
	var qs []page.Query
	for _, sel := range c.Container.CandidateSelectors {
		qs = append(qs, page.Query{Name: sel, Selector: sel})
	}
	return qs
}

// ScanQueries returns nil when the built-in queries should be used.
func (c Config) ScanQueries() ([]page.Query, error) {
	var qs []page.Query
	for _, p := range c.Container.DatePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		qs = append(qs, page.Query{Name: p, TextPattern: re})
	}
	return qs, nil
}

func (c Config) ScoreConfig() score.Config {
	s := c.Scoring
	return score.Config{
		StrongKeywords:   s.StrongKeywords,
		StrongWeight:     s.StrongWeight,
		ModerateKeywords: s.ModerateKeywords,
		ModerateWeight:   s.ModerateWeight,
		StructuralWeight: s.StructuralWeight,
		IconWeight:       s.IconWeight,
		RightFraction:    s.RightFraction,
		RightWeight:      s.RightWeight,
		IconMinSize:      s.IconMinSize,
		IconMaxSize:      s.IconMaxSize,
		IconSizeWeight:   s.IconSizeWeight,
		HiddenMaxSize:    s.HiddenMaxSize,
		HiddenPenalty:    s.HiddenPenalty,
		MaxTextLen:       s.MaxTextLen,
		TextPenalty:      s.TextPenalty,
		MinAccept:        s.MinAccept,
	}
}

func (c Config) DownloadConfig() download.Config {
	return download.Config{
		Dir:             c.DownloadDir,
		Interval:        time.Duration(c.Watcher.Interval),
		Timeout:         time.Duration(c.Watcher.Timeout),
		MinSize:         c.Watcher.MinSize,
		PartialSuffixes: c.Watcher.PartialSuffixes,
		RequireStable:   c.Watcher.RequireStable,
	}
}

func (c Config) ArchiveConfig() archive.Config {
	return archive.Config{OutDir: c.OutputDir, Extension: c.Extension}
}

func (c Config) ClickMethods() ([]page.ClickMethod, error) {
	var methods []page.ClickMethod
	for _, name := range c.Retrieval.ClickMethods {
		m, err := page.ParseClickMethod(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, nil
}

func (c Config) CollectConfig(force bool) (collect.Config, error) {
	window, err := c.WindowConfig()
	if err != nil {
		return collect.Config{}, err
	}
	methods, err := c.ClickMethods()
	if err != nil {
		return collect.Config{}, err
	}
	scan, err := c.ScanQueries()
	if err != nil {
		return collect.Config{}, err
	}
	return collect.Config{
		Window:       window,
		ScanQueries:  scan,
		ClickMethods: methods,
		Settle:       time.Duration(c.Retrieval.Settle),
		Pause:        time.Duration(c.Retrieval.Pause),
		MaxDownloads: c.Retrieval.MaxDownloads,
		Force:        force,
		OutDir:       c.OutputDir,
	}, nil
}

// EmailConfig reads the SMTP password from the configured environment
// variable. Sending is enabled only when every field is present.
func (c Config) EmailConfig(getenv func(string) string) notify.EmailConfig {
	e := c.Email
	pass := ""
	if e.PasswordEnv != "" {
		pass = getenv(e.PasswordEnv)
	}
	from := e.From
	if from == "" {
		from = e.SMTPUser
	}
	return notify.EmailConfig{
		SMTPServer: e.SMTPServer,
		SMTPPort:   e.SMTPPort,
		SMTPUser:   e.SMTPUser,
		SMTPPass:   pass,
		FromEmail:  from,
		ToEmail:    e.To,
		Enabled:    e.SMTPServer != "" && e.SMTPUser != "" && pass != "" && e.To != "",
	}
}
