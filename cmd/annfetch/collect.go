package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shanehull/annfetch/internal/ai"
	"github.com/shanehull/annfetch/internal/archive"
	"github.com/shanehull/annfetch/internal/collect"
	"github.com/shanehull/annfetch/internal/config"
	"github.com/shanehull/annfetch/internal/download"
	"github.com/shanehull/annfetch/internal/history"
	"github.com/shanehull/annfetch/internal/match"
	"github.com/shanehull/annfetch/internal/notify"
	"github.com/shanehull/annfetch/internal/page/snapshot"
	"github.com/shanehull/annfetch/internal/score"
)

var (
	snapshotPath  string
	baseURL       string
	sendEmail     bool
	summarize     bool
	forceRetrieve bool
)

func init() {
	collectCmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "", "Captured announcements page (HTML)")
	collectCmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL for resolving relative download links")
	collectCmd.Flags().BoolVarP(&sendEmail, "email", "e", false, "E-mail the run report with the extracted documents attached")
	collectCmd.Flags().BoolVar(&summarize, "summarize", false, "Summarize extracted documents with the configured model")
	collectCmd.Flags().BoolVarP(&forceRetrieve, "force", "f", false, "Retrieve records already present in the history")
	_ = collectCmd.MarkFlagRequired("snapshot")
	rootCmd.AddCommand(collectCmd)
}

var collectCmd = &cobra.Command{
	Use:   "collect --snapshot <page.html>",
	Short: "Retrieves the documents of every record inside the reporting window",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := loadConfig()
		day, err := today()
		if err != nil {
			fatal("invalid reference day", err)
		}

		if err := runCollect(ctx, cmd, cfg, day); err != nil {
			fatal("collection failed", err)
		}
	},
}

func runCollect(ctx context.Context, cmd *cobra.Command, cfg config.Config, day time.Time) error {
	logger := slog.Default()

	cc, err := cfg.CollectConfig(forceRetrieve)
	if err != nil {
		return err
	}

	driver, err := snapshot.Open(snapshotPath, snapshot.Options{
		BaseURL:     baseURL,
		DownloadDir: cfg.DownloadDir,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	historyPath := cfg.HistoryPath
	if historyPath == "" {
		historyPath = history.DefaultPath()
	}
	ledger, err := history.NewManager(historyPath, logger)
	if err != nil {
		return fmt.Errorf("setting up history: %w", err)
	}

	deps := collect.Deps{
		Driver:   driver,
		Matcher:  match.NewMatcher(cfg.ContainerRules(), cfg.CandidateQueries(), logger),
		Scorer:   score.New(cfg.ScoreConfig()),
		Watcher:  download.NewWatcher(cfg.DownloadConfig(), logger),
		Unpacker: archive.NewUnpacker(cfg.ArchiveConfig(), logger),
		Ledger:   ledger,
		Logger:   logger,
	}
	if summarize {
		s, err := ai.NewSummarizer(ctx, os.Getenv(cfg.AI.APIKeyEnv), cfg.AI.Model, logger)
		if err != nil {
			return fmt.Errorf("setting up summarizer: %w", err)
		}
		deps.Summarizer = s
	}

	report, runErr := collect.New(deps, cc).Run(ctx, day)
	notify.ReportRun(cmd.OutOrStdout(), report, ledger.HistoryFilePath())
	if runErr != nil {
		return runErr
	}

	if !sendEmail {
		return nil
	}
	msg, err := notify.NewHTMLEmailRenderer().Render(notify.NotificationData{Report: report})
	if err != nil {
		return fmt.Errorf("rendering e-mail: %w", err)
	}
	ec := cfg.EmailConfig(os.Getenv)
	if !ec.Enabled {
		logger.Warn("e-mail requested but SMTP settings are incomplete", "password_env", cfg.Email.PasswordEnv)
		return nil
	}
	return notify.NewEmailSender(ec, logger).Send(msg)
}
