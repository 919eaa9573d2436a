// Package export renders a conversation as Markdown, HTML or JSON.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/devforge-org/devforge-backend/internal/types"
)

const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatJSON     = "json"
)

var ErrUnknownFormat = errors.New("unknown export format")

type Document struct {
	Body        []byte
	ContentType string
	Extension   string
}

// Render produces the export document. format defaults to markdown.
func Render(format string, conv *types.Conversation, msgs []*types.Message, now time.Time) (*Document, error) {
	switch strings.ToLower(format) {
	case "", FormatMarkdown, "md":
		return &Document{Body: []byte(Markdown(conv, msgs, now)), ContentType: "text/markdown; charset=utf-8", Extension: "md"}, nil
	case FormatHTML:
		body, err := HTML(conv, msgs, now)
		if err != nil {
			return nil, err
		}
		return &Document{Body: body, ContentType: "text/html; charset=utf-8", Extension: "html"}, nil
	case FormatJSON:
		body, err := json.MarshalIndent(struct {
			Conversation *types.Conversation `json:"conversation"`
			Messages     []*types.Message    `json:"messages"`
			ExportedAt   time.Time           `json:"exportedAt"`
		}{conv, msgs, now.UTC()}, "", "  ")
		if err != nil {
			return nil, err
		}
		return &Document{Body: body, ContentType: "application/json", Extension: "json"}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func Title(conv *types.Conversation) string {
	if t := strings.TrimSpace(conv.Title); t != "" {
		return t
	}
	return "Untitled conversation"
}

func roleLabel(role string) string {
	switch role {
	case types.RoleUser:
		return "User"
	case types.RoleAssistant:
		return "Assistant"
	case types.RoleSystem:
		return "System"
	}
	return role
}

func Markdown(conv *types.Conversation, msgs []*types.Message, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", Title(conv))
	fmt.Fprintf(&b, "_Exported %s_\n\n", now.UTC().Format(time.RFC3339))
	for _, m := range msgs {
		fmt.Fprintf(&b, "## %s (%s)\n\n", roleLabel(m.Role), m.CreatedAt.UTC().Format("2006-01-02 15:04"))
		b.WriteString(strings.TrimRight(m.Content, "\n"))
		b.WriteString("\n\n")
	}
	return b.String()
}

const pageStyle = `body{font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;max-width:860px;margin:2rem auto;padding:0 1rem;color:#1f2328}
.msg{border:1px solid #d0d7de;border-radius:8px;padding:0.5rem 1rem;margin:1rem 0}
.msg.user{background:#f6f8fa}.msg.system{background:#fff8c5}
.role{font-weight:600;font-size:0.85rem;color:#57606a}
pre{overflow-x:auto;padding:0.75rem;border-radius:6px}`

func HTML(conv *types.Conversation, msgs []*types.Message, now time.Time) ([]byte, error) {
	title := html.EscapeString(Title(conv))
	var b bytes.Buffer
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title><style>%s</style></head><body>\n", title, pageStyle)
	fmt.Fprintf(&b, "<h1>%s</h1>\n<p><em>Exported %s</em></p>\n", title, now.UTC().Format(time.RFC3339))
	if err := writeMessages(&b, msgs); err != nil {
		return nil, err
	}
	b.WriteString("</body></html>\n")
	return b.Bytes(), nil
}

// MessagesHTML renders only the message blocks, for embedding in other pages.
func MessagesHTML(msgs []*types.Message) ([]byte, error) {
	var b bytes.Buffer
	if err := writeMessages(&b, msgs); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func writeMessages(b *bytes.Buffer, msgs []*types.Message) error {
	for _, m := range msgs {
		fmt.Fprintf(b, "<div class=\"msg %s\"><div class=\"role\">%s &middot; %s</div>\n",
			html.EscapeString(m.Role), roleLabel(m.Role), m.CreatedAt.UTC().Format("2006-01-02 15:04"))
		if err := RenderMarkdown(b, m.Content); err != nil {
			return err
		}
		b.WriteString("</div>\n")
	}
	return nil
}
