package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shanehull/annfetch/internal/archive"
	"github.com/shanehull/annfetch/internal/dates"
	"github.com/shanehull/annfetch/internal/types"
)

var (
	unpackTitle string
	unpackDate  string
)

func init() {
	unpackCmd.Flags().StringVar(&unpackTitle, "title", "", "Record title used to name the extraction directory")
	unpackCmd.Flags().StringVar(&unpackDate, "date", "", "Record date as YYYY-MM-DD (default: reference day)")
	rootCmd.AddCommand(unpackCmd)
}

var unpackCmd = &cobra.Command{
	Use:   "unpack <file>",
	Short: "Extracts documents from a downloaded file into the output directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		day, err := today()
		if err != nil {
			fatal("invalid reference day", err)
		}
		if unpackDate != "" {
			day, err = time.Parse(time.DateOnly, unpackDate)
			if err != nil {
				fatal("invalid --date", err)
			}
		}
		rec := types.RecordRef{Title: unpackTitle, Date: types.DateToken{Date: dates.Day(day)}}

		docs, err := archive.NewUnpacker(cfg.ArchiveConfig(), slog.Default()).Unpack(args[0], rec)
		if err != nil {
			fatal("unpack failed", err)
		}
		if len(docs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No documents extracted.")
			return
		}
		for _, d := range docs {
			fmt.Fprintln(cmd.OutOrStdout(), d.Path)
		}
	},
}
