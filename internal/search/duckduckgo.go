package search

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/devforge-org/devforge-backend/internal/types"
)

const (
	ddgEndpoint  = "https://html.duckduckgo.com/html/"
	ddgUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	ddgTitleRegex      = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.+?)</a>`)
	ddgSnippetRegex    = regexp.MustCompile(`(?s)<a[^>]+class="result__snippet"[^>]*>(.+?)</a>`)
	ddgTagRegex        = regexp.MustCompile(`<[^>]*>`)
	ddgWhitespaceRegex = regexp.MustCompile(`\s+`)
)

// DuckDuckGo scrapes the keyless HTML endpoint.
type DuckDuckGo struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

func NewDuckDuckGo(name, endpoint string, hc *http.Client) *DuckDuckGo {
	return &DuckDuckGo{name: name, endpoint: endpoint, httpClient: hc}
}

func (d *DuckDuckGo) Name() string { return d.name }

func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	endpoint := d.endpoint
	if endpoint == "" {
		endpoint = ddgEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ddgUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	hc := d.httpClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, err
	}
	results := ParseDuckDuckGoHTML(string(body))
	if len(results) == 0 && strings.Contains(string(body), "anomaly") {
		return nil, errors.New("duckduckgo rejected the request")
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ParseDuckDuckGoHTML extracts result links and snippets from the HTML page.
func ParseDuckDuckGoHTML(page string) []types.SearchResult {
	titles := ddgTitleRegex.FindAllStringSubmatch(page, 30)
	snippets := ddgSnippetRegex.FindAllStringSubmatch(page, 30)

	var out []types.SearchResult
	for i, m := range titles {
		if len(m) < 3 {
			continue
		}
		target := unwrapDuckDuckGoURL(strings.ReplaceAll(m[1], "&amp;", "&"))
		title := cleanHTML(m[2])
		if target == "" || title == "" {
			continue
		}
		snippet := ""
		if i < len(snippets) && len(snippets[i]) >= 2 {
			snippet = cleanHTML(snippets[i][1])
		}
		out = append(out, types.SearchResult{Title: title, URL: target, Snippet: snippet})
		if len(out) >= MaxLimit {
			break
		}
	}
	return out
}

// unwrapDuckDuckGoURL resolves the /l/?uddg= redirect to the real target.
func unwrapDuckDuckGoURL(raw string) string {
	if strings.Contains(raw, "uddg=") {
		if strings.HasPrefix(raw, "//") {
			raw = "https:" + raw
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return ""
}

func cleanHTML(s string) string {
	s = ddgTagRegex.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(ddgWhitespaceRegex.ReplaceAllString(s, " "))
}
