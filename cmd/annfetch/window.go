package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shanehull/annfetch/internal/dates"
)

func init() {
	rootCmd.AddCommand(windowCmd)
}

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Prints the reporting window for the reference day",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		wc, err := cfg.WindowConfig()
		if err != nil {
			fatal("invalid window config", err)
		}
		day, err := today()
		if err != nil {
			fatal("invalid reference day", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), dates.Compute(day, wc).String())
	},
}
