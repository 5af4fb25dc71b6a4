package notify

const emailHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Bulletins {{day .Report.WindowStart}} - {{day .Report.WindowEnd}}</title>
  <style>
    body {
      margin: 0;
      padding: 24px;
      background-color: #f1f5f9;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      color: #0f172a;
      line-height: 1.5;
    }

    .container {
      max-width: 680px;
      margin: 0 auto;
      background: #ffffff;
      border-radius: 8px;
      border: 1px solid #e2e8f0;
      overflow: hidden;
    }

    .header {
      padding: 20px 24px;
      background: #1e293b;
      color: #ffffff;
    }

    .window {
      font-size: 22px;
      font-weight: 700;
    }

    .run {
      font-size: 12px;
      opacity: 0.7;
    }

    .section {
      padding: 16px 24px;
      border-top: 1px solid #f1f5f9;
    }

    .section-title {
      font-size: 11px;
      font-weight: 700;
      color: #64748b;
      text-transform: uppercase;
      letter-spacing: 0.1em;
      margin-bottom: 12px;
    }

    .counts td {
      padding: 4px 16px 4px 0;
      font-size: 14px;
    }

    .doc-date {
      font-size: 12px;
      color: #64748b;
    }

    .doc-title {
      font-size: 15px;
      font-weight: 600;
    }

    .summary-list {
      margin: 8px 0 0 0;
      padding-left: 20px;
      font-size: 14px;
    }

    .tag {
      display: inline-block;
      padding: 2px 6px;
      font-size: 10px;
      font-weight: 600;
      border-radius: 3px;
      text-transform: uppercase;
      margin-right: 4px;
    }

    .tag-date { background: #e0f2fe; color: #0369a1; }
    .tag-action { background: #fef3c7; color: #92400e; }

    .failure {
      font-size: 13px;
      color: #b91c1c;
    }

    .footer {
      padding: 16px 24px;
      font-size: 12px;
      color: #94a3b8;
      text-align: center;
      background: #f8fafc;
    }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <div class="window">{{day .Report.WindowStart}} – {{day .Report.WindowEnd}}</div>
      <div class="run">Run {{.Report.RunID}}</div>
    </div>

    <div class="section">
      <div class="section-title">Run Summary</div>
      <table class="counts">
        <tr><td>Records found</td><td>{{.Report.RecordsFound}}</td></tr>
        <tr><td>In window</td><td>{{.Report.RecordsInWindow}}</td></tr>
        <tr><td>Selected</td><td>{{.Report.Selected}}</td></tr>
        <tr><td>Downloads completed</td><td>{{.Report.DownloadsCompleted}}</td></tr>
        <tr><td>Documents extracted</td><td>{{len .Report.Documents}}</td></tr>
      </table>
    </div>

    {{range .Report.Documents}}
    <div class="section">
      <div class="doc-date">{{day .Record.Date.Date}}</div>
      <div class="doc-title">{{.Record.Title}}</div>
      {{with .Summary}}
        {{if .Headline}}<div>{{.Headline}}</div>{{end}}
        <ul class="summary-list">
          {{range .Bullets}}<li>{{.}}</li>{{end}}
          {{range .KeyDates}}<li><span class="tag tag-date">Date</span>{{.}}</li>{{end}}
          {{range .RequiredActions}}<li><span class="tag tag-action">Action</span>{{.}}</li>{{end}}
        </ul>
      {{end}}
    </div>
    {{end}}

    {{if .Report.Failures}}
    <div class="section">
      <div class="section-title">Failures</div>
      {{range .Report.Failures}}
      <div class="failure">{{day .Record.Date.Date}} {{.Record.Title}}: {{.Reason}}</div>
      {{end}}
    </div>
    {{end}}

    <div class="footer">Generated by annfetch</div>
  </div>
</body>
</html>`
