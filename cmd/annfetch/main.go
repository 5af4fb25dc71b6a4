package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/shanehull/annfetch/internal/config"
)

var (
	configFile string
	debugMode  bool
	todayFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "annfetch",
	Short: "Collects dated bulletin documents from a captured announcements page",
	Long: `annfetch locates dated records on an announcements page, picks the
download control for each record inside a reporting window, triggers it,
and unpacks the resulting files into a documents directory.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if debugMode {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultPath, "Path to the YAML or JSON5 config file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&todayFlag, "today", "", "Reference day as YYYY-MM-DD (default: today)")
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

func loadConfig() config.Config {
	cfg, err := config.Load(configFile, slog.Default())
	if err != nil {
		fatal("failed to read config", err)
	}
	return cfg
}

func today() (time.Time, error) {
	if todayFlag == "" {
		return time.Now(), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, todayFlag, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --today %q: %w", todayFlag, err)
	}
	return t, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
