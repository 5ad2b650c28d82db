package mailer

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

// EmailData feeds both the HTML and the plain text layout.
type EmailData struct {
	AppName   string
	Title     string
	Intro     string
	Lines     []string
	ButtonURL string
	ButtonTxt string
	Year      int
}

const baseHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}}</title>
</head>
<body style="margin:0;padding:32px 16px;background:#f1f5f9;font-family:-apple-system,Segoe UI,Roboto,Helvetica,Arial,sans-serif;color:#0f172a;">
  <div style="max-width:600px;margin:0 auto;background:#ffffff;border-radius:12px;padding:32px;">
    <div style="font-weight:700;font-size:18px;margin-bottom:24px;">{{.AppName}}</div>
    <h1 style="font-size:22px;margin:0 0 16px;">{{.Title}}</h1>
    <p style="line-height:1.6;color:#475569;">{{.Intro}}</p>
    {{range .Lines}}<p style="margin:4px 0;color:#334155;">{{.}}</p>{{end}}
    {{if .ButtonURL}}
    <p style="margin:28px 0;">
      <a href="{{.ButtonURL}}" style="background:#2563eb;color:#ffffff;padding:12px 24px;border-radius:8px;text-decoration:none;">{{.ButtonTxt}}</a>
    </p>
    <p style="font-size:13px;color:#64748b;">If the button doesn't work, copy and paste this link into your browser:<br>{{.ButtonURL}}</p>
    {{end}}
    <p style="font-size:12px;color:#94a3b8;margin-top:32px;">© {{.Year}} {{.AppName}}</p>
  </div>
</body>
</html>`

const plainTextTemplate = `{{.Title}}

{{.Intro}}
{{range .Lines}}
{{.}}{{end}}
{{if .ButtonURL}}
{{.ButtonTxt}}: {{.ButtonURL}}
{{end}}
-- {{.AppName}} (c) {{.Year}}
`

var (
	htmlTpl = htmltemplate.Must(htmltemplate.New("html").Parse(baseHTMLTemplate))
	textTpl = texttemplate.Must(texttemplate.New("text").Parse(plainTextTemplate))
)

// Render produces the HTML and plain text bodies for data.
func Render(data EmailData) (html string, text string, err error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	var hb, tb bytes.Buffer
	if err = htmlTpl.Execute(&hb, data); err != nil {
		return "", "", err
	}
	if err = textTpl.Execute(&tb, data); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}
