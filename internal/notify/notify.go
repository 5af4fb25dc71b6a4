/*
Package notify handles reporting of a collection run via console output and
email notifications.
*/
package notify

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/shanehull/annfetch/internal/dates"
	"github.com/shanehull/annfetch/internal/types"
)

func formatBulletList(points []string) string {
	if len(points) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range points {
		sb.WriteString(fmt.Sprintf("\t- %s\n", p))
	}
	return sb.String()
}

// ReportRun writes the run counts, the extracted documents and any failures.
// The counts are always printed so partial success is visible.
func ReportRun(w io.Writer, report types.Report, historyFilePath string) {
	fmt.Fprintln(w, "\n===========================================")
	fmt.Fprintf(w, "Run %s: %s - %s\n", report.RunID, dates.Format(report.WindowStart), dates.Format(report.WindowEnd))
	fmt.Fprintln(w, "===========================================")

	counts := table.NewWriter()
	counts.SetOutputMirror(w)
	counts.SetStyle(table.StyleRounded)
	counts.AppendHeader(table.Row{"Stage", "Count"})
	counts.AppendRows([]table.Row{
		{"Records found", report.RecordsFound},
		{"In window", report.RecordsInWindow},
		{"No download control", report.NoTrigger},
		{"Already retrieved", report.Skipped},
		{"Selected", report.Selected},
		{"Triggers invoked", report.TriggersInvoked},
		{"Downloads completed", report.DownloadsCompleted},
		{"Documents extracted", len(report.Documents)},
		{"Failures", len(report.Failures)},
	})
	counts.Render()

	if len(report.Documents) > 0 {
		docs := table.NewWriter()
		docs.SetOutputMirror(w)
		docs.SetStyle(table.StyleRounded)
		docs.AppendHeader(table.Row{"#", "Date", "Title", "File"})
		for i, d := range report.Documents {
			docs.AppendRow(table.Row{i + 1, dates.Format(d.Record.Date.Date), d.Record.Title, d.Path})
		}
		docs.Render()

		for i, d := range report.Documents {
			if d.Summary == nil {
				continue
			}
			fmt.Fprintf(w, "\n--- DOCUMENT #%d ---\n", i+1)
			fmt.Fprintf(w, "%s\n", d.Summary.Headline)
			if s := formatBulletList(d.Summary.Bullets); s != "" {
				fmt.Fprintf(w, "AI Summary:\n%s", s)
			}
			if s := formatBulletList(d.Summary.KeyDates); s != "" {
				fmt.Fprintf(w, "Key Dates:\n%s", s)
			}
			if s := formatBulletList(d.Summary.RequiredActions); s != "" {
				fmt.Fprintf(w, "Required Actions:\n%s", s)
			}
		}
	}

	if len(report.Failures) > 0 {
		fails := table.NewWriter()
		fails.SetOutputMirror(w)
		fails.SetStyle(table.StyleRounded)
		fails.AppendHeader(table.Row{"Date", "Title", "Reason"})
		for _, f := range report.Failures {
			fails.AppendRow(table.Row{dates.Format(f.Record.Date.Date), f.Record.Title, f.Reason})
		}
		fails.Render()
	}

	fmt.Fprintln(w, "\n===========================================")
	if historyFilePath != "" {
		fmt.Fprintf(w, "Collection complete. History saved to %s.\n", historyFilePath)
	} else {
		fmt.Fprintln(w, "Collection complete.")
	}
	fmt.Fprintln(w, "===========================================")
}
