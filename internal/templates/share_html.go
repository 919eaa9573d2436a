package templates

import (
	"bytes"
	"html/template"
)

type ShareEmailData struct {
	Title        string
	Link         string
	MessageCount int
	Transcript   template.HTML
	Year         int
}

const shareHTML = `
<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8"/>
  <title>{{.Title}}</title>
  <style>
    body {
      margin: 0;
      padding: 0;
      font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif;
      background-color: #f5f5f5;
      color: #1f2328;
    }
    .email-container {
      width: 100%;
      max-width: 720px;
      margin: 0 auto;
      background-color: #ffffff;
      border-radius: 6px;
      overflow: hidden;
      box-shadow: 0 2px 5px rgba(0,0,0,0.1);
    }
    .header {
      background-color: #24292f;
      padding: 20px;
      color: #fff;
    }
    .header h1 {
      margin: 0;
      font-size: 22px;
    }
    .header p {
      margin: 6px 0 0;
      font-size: 13px;
      color: #d0d7de;
    }
    .content {
      padding: 20px;
    }
    .msg {
      border: 1px solid #d0d7de;
      border-radius: 8px;
      padding: 0.5rem 1rem;
      margin: 1rem 0;
    }
    .msg.user { background: #f6f8fa; }
    .msg.system { background: #fff8c5; }
    .role {
      font-weight: 600;
      font-size: 0.85rem;
      color: #57606a;
    }
    pre {
      overflow-x: auto;
      padding: 0.75rem;
      border-radius: 6px;
    }
    .button-container {
      text-align: center;
      margin: 20px 0;
    }
    .cta-button {
      display: inline-block;
      padding: 12px 24px;
      background-color: #24292f;
      color: #ffffff;
      text-decoration: none;
      border-radius: 4px;
      font-weight: bold;
    }
    .footer {
      font-size: 12px;
      color: #999;
      text-align: center;
      padding: 10px 20px;
    }
  </style>
</head>
<body>
  <table class="email-container" role="presentation" cellspacing="0" cellpadding="0">
    <tr>
      <td>
        <div class="header">
          <h1>{{.Title}}</h1>
          <p>A DevForge conversation with {{.MessageCount}} {{if eq .MessageCount 1}}message{{else}}messages{{end}} was shared with you.</p>
        </div>

        <div class="content">
          <div class="button-container">
            <a class="cta-button" href="{{.Link}}">Open in DevForge</a>
          </div>
          {{.Transcript}}
        </div>

        <div class="footer">
          <p>&copy; {{.Year}} DevForge</p>
        </div>
      </td>
    </tr>
  </table>
</body>
</html>
`

// RenderShareHTML builds the email body. Transcript is trusted, already
// rendered HTML.
func RenderShareHTML(data ShareEmailData) (string, error) {
	tmpl, err := template.New("share").Parse(shareHTML)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
