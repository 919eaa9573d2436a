package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/devforge-org/devforge-backend/internal/types"
)

const bingEndpoint = "https://api.bing.microsoft.com/v7.0/search"

// Bing uses the Web Search v7 JSON API.
type Bing struct {
	name       string
	apiKey     string
	market     string
	endpoint   string
	httpClient *http.Client
}

func NewBing(name, apiKey, market, endpoint string, hc *http.Client) *Bing {
	return &Bing{name: name, apiKey: apiKey, market: market, endpoint: endpoint, httpClient: hc}
}

func (b *Bing) Name() string { return b.name }

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (b *Bing) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	endpoint := b.endpoint
	if endpoint == "" {
		endpoint = bingEndpoint
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(limit))
	if b.market != "" {
		q.Set("mkt", b.market)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.apiKey)
	req.Header.Set("Accept", "application/json")

	hc := b.httpClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, err
	}
	var parsed bingResponse
	_ = json.Unmarshal(body, &parsed)
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return nil, fmt.Errorf("bing HTTP %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("bing HTTP %d", resp.StatusCode)
	}
	out := make([]types.SearchResult, 0, len(parsed.WebPages.Value))
	for _, v := range parsed.WebPages.Value {
		out = append(out, types.SearchResult{Title: v.Name, URL: v.URL, Snippet: v.Snippet})
	}
	return out, nil
}
