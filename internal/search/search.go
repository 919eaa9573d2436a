// Package search fans a query out to several web search engines and merges
// the answers.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
)

const (
	DefaultLimit         = 8
	MaxLimit             = 20
	DefaultEngineTimeout = 10 * time.Second
)

type Engine interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error)
}

type Response struct {
	Query   string               `json:"query"`
	Results []types.SearchResult `json:"results"`
	Errors  map[string]string    `json:"errors"`
}

type Aggregator struct {
	log     *logger.Logger
	timeout time.Duration
}

func NewAggregator(log *logger.Logger, perEngineTimeout time.Duration) *Aggregator {
	if perEngineTimeout <= 0 {
		perEngineTimeout = DefaultEngineTimeout
	}
	return &Aggregator{log: log.With("service", "SearchAggregator"), timeout: perEngineTimeout}
}

// ClampLimit applies the default and the upper bound.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Search queries every engine concurrently, each under its own timeout. An
// engine failure lands in Response.Errors and never cancels its siblings.
// engines must be ordered by priority.
func (a *Aggregator) Search(ctx context.Context, query string, engines []Engine, limit int) *Response {
	limit = ClampLimit(limit)
	perEngine := make([][]types.SearchResult, len(engines))
	errs := map[string]string{}
	keys := errorKeys(engines)
	var mu sync.Mutex

	var g errgroup.Group
	for i, engine := range engines {
		i, engine := i, engine
		g.Go(func() error {
			ectx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			start := time.Now()
			results, err := engine.Search(ectx, query, limit)
			if err != nil {
				a.log.Warn("search engine failed", "engine", engine.Name(), "error", err, "durationMs", time.Since(start).Milliseconds())
				mu.Lock()
				errs[keys[i]] = err.Error()
				mu.Unlock()
				return nil
			}
			for j := range results {
				results[j].Engine = engine.Name()
			}
			perEngine[i] = results
			a.log.Debug("search engine answered", "engine", engine.Name(), "count", len(results), "durationMs", time.Since(start).Milliseconds())
			return nil
		})
	}
	_ = g.Wait()

	return &Response{Query: query, Results: Merge(perEngine, limit), Errors: errs}
}

// errorKeys names each engine in Response.Errors. Repeated names get a
// " (2)", " (3)" suffix so one failure never hides another.
func errorKeys(engines []Engine) []string {
	keys := make([]string, len(engines))
	seen := map[string]int{}
	for i, engine := range engines {
		name := engine.Name()
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}
		keys[i] = name
	}
	return keys
}

// Merge interleaves per-engine lists round-robin in the given order, drops
// duplicate URLs and stops at limit.
func Merge(perEngine [][]types.SearchResult, limit int) []types.SearchResult {
	out := make([]types.SearchResult, 0, limit)
	seen := map[string]bool{}
	for round := 0; len(out) < limit; round++ {
		progressed := false
		for _, list := range perEngine {
			if round >= len(list) {
				continue
			}
			progressed = true
			r := list[round]
			key := NormalizeURL(r.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

// NormalizeURL keys a result for dedupe: lowercased scheme, host without
// "www." and path without trailing slash. Query and fragment are ignored.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return strings.ToLower(u.Scheme) + "://" + host + strings.TrimSuffix(u.EscapedPath(), "/")
}

// Builtin is the fallback engine set when a user has configured none.
func Builtin(hc *http.Client, googleKey, googleCX, bingKey string) []Engine {
	engines := []Engine{}
	if googleKey != "" && googleCX != "" {
		engines = append(engines, &Google{name: "Google", apiKey: googleKey, cx: googleCX, httpClient: hc})
	}
	if bingKey != "" {
		engines = append(engines, &Bing{name: "Bing", apiKey: bingKey, httpClient: hc})
	}
	engines = append(engines, &DuckDuckGo{name: "DuckDuckGo", httpClient: hc})
	return engines
}

// FromRow builds the engine for a stored row. Missing keys fall back to the
// server-wide ones.
func FromRow(row *types.SearchEngine, hc *http.Client, googleKey, googleCX, bingKey string) (Engine, error) {
	switch row.Kind {
	case types.EngineGoogle:
		key, cx := row.APIKey, row.ConfigString("cx")
		if key == "" {
			key = googleKey
		}
		if cx == "" {
			cx = googleCX
		}
		if key == "" || cx == "" {
			return nil, fmt.Errorf("google engine %q needs an API key and cx", row.Name)
		}
		return &Google{name: row.Name, apiKey: key, cx: cx, endpoint: row.ConfigString("endpoint"), httpClient: hc}, nil
	case types.EngineBing:
		key := row.APIKey
		if key == "" {
			key = bingKey
		}
		if key == "" {
			return nil, fmt.Errorf("bing engine %q needs an API key", row.Name)
		}
		return &Bing{name: row.Name, apiKey: key, market: row.ConfigString("market"), endpoint: row.ConfigString("endpoint"), httpClient: hc}, nil
	case types.EngineDuckDuckGo:
		return &DuckDuckGo{name: row.Name, endpoint: row.ConfigString("endpoint"), httpClient: hc}, nil
	}
	return nil, fmt.Errorf("unknown search engine kind %q", row.Kind)
}
