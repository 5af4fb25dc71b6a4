package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/shanehull/annfetch/internal/dates"
	"github.com/shanehull/annfetch/internal/types"
)

// NotificationData is what the email templates render.
type NotificationData struct {
	Report types.Report
}

// RenderedMessage is a ready-to-send email.
type RenderedMessage struct {
	Subject     string
	Text        string
	HTML        string
	Attachments []string
}

// HTMLEmailRenderer renders notifications as HTML emails with a plain text fallback.
type HTMLEmailRenderer struct {
	tmpl *template.Template
}

// NewHTMLEmailRenderer creates a renderer with the default email template.
func NewHTMLEmailRenderer() *HTMLEmailRenderer {
	t := template.Must(template.New("email").Funcs(template.FuncMap{
		"day": dates.Format,
	}).Parse(emailHTMLTemplate))
	return &HTMLEmailRenderer{tmpl: t}
}

// Render produces an HTML email with plain text alternative. Every extracted
// document is attached.
func (r *HTMLEmailRenderer) Render(data NotificationData) (*RenderedMessage, error) {
	rep := data.Report
	subject := fmt.Sprintf("Bulletins %s - %s: %d document(s)",
		dates.Format(rep.WindowStart), dates.Format(rep.WindowEnd), len(rep.Documents))
	if len(rep.Failures) > 0 {
		subject += fmt.Sprintf(", %d failed", len(rep.Failures))
	}

	var htmlBuf bytes.Buffer
	if err := r.tmpl.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}

	var attachments []string
	for _, d := range rep.Documents {
		attachments = append(attachments, d.Path)
	}

	return &RenderedMessage{
		Subject:     subject,
		Text:        renderPlainText(data),
		HTML:        htmlBuf.String(),
		Attachments: attachments,
	}, nil
}

// renderPlainText produces a readable plain text version for email clients that don't support HTML.
func renderPlainText(data NotificationData) string {
	rep := data.Report
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Bulletins published %s - %s\n", dates.Format(rep.WindowStart), dates.Format(rep.WindowEnd)))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	sb.WriteString(fmt.Sprintf("Records found: %d\n", rep.RecordsFound))
	sb.WriteString(fmt.Sprintf("In window: %d\n", rep.RecordsInWindow))
	sb.WriteString(fmt.Sprintf("Downloads completed: %d of %d\n", rep.DownloadsCompleted, rep.Selected))
	sb.WriteString(fmt.Sprintf("Documents extracted: %d\n\n", len(rep.Documents)))

	for _, d := range rep.Documents {
		sb.WriteString(fmt.Sprintf("%s  %s\n", dates.Format(d.Record.Date.Date), d.Record.Title))
		if d.Summary != nil {
			if d.Summary.Headline != "" {
				sb.WriteString(d.Summary.Headline + "\n")
			}
			for _, s := range d.Summary.Bullets {
				sb.WriteString(fmt.Sprintf("• %s\n", s))
			}
			for _, s := range d.Summary.KeyDates {
				sb.WriteString(fmt.Sprintf("• Date: %s\n", s))
			}
			for _, s := range d.Summary.RequiredActions {
				sb.WriteString(fmt.Sprintf("• Action: %s\n", s))
			}
		}
		sb.WriteString("\n")
	}

	if len(rep.Failures) > 0 {
		sb.WriteString("FAILURES\n")
		sb.WriteString(strings.Repeat("-", 20) + "\n")
		for _, f := range rep.Failures {
			sb.WriteString(fmt.Sprintf("%s  %s: %s\n", dates.Format(f.Record.Date.Date), f.Record.Title, f.Reason))
		}
	}

	return sb.String()
}
