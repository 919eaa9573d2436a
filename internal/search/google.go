package search

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/devforge-org/devforge-backend/internal/types"
)

// Google uses the Custom Search JSON API.
type Google struct {
	name       string
	apiKey     string
	cx         string
	endpoint   string
	httpClient *http.Client
}

func NewGoogle(name, apiKey, cx, endpoint string, hc *http.Client) *Google {
	return &Google{name: name, apiKey: apiKey, cx: cx, endpoint: endpoint, httpClient: hc}
}

func (g *Google) Name() string { return g.name }

func (g *Google) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	opts := []option.ClientOption{option.WithAPIKey(g.apiKey)}
	if g.httpClient != nil {
		// WithHTTPClient overrides WithAPIKey, so the key also goes on the call.
		opts = append(opts, option.WithHTTPClient(g.httpClient))
	}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("customsearch client: %w", err)
	}
	// the API caps num at 10
	num := limit
	if num > 10 {
		num = 10
	}
	var callOpts []googleapi.CallOption
	if g.httpClient != nil {
		callOpts = append(callOpts, googleapi.QueryParameter("key", g.apiKey))
	}
	res, err := svc.Cse.List().Cx(g.cx).Q(query).Num(int64(num)).Context(ctx).Do(callOpts...)
	if err != nil {
		return nil, fmt.Errorf("google search: %w", err)
	}
	out := make([]types.SearchResult, 0, len(res.Items))
	for _, item := range res.Items {
		out = append(out, types.SearchResult{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return out, nil
}
