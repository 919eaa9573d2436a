package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
)

type fakeEngine struct {
	name    string
	results []types.SearchResult
	err     error
	delay   time.Duration
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.SearchResult, len(f.results))
	copy(out, f.results)
	return out, nil
}

func res(url string) types.SearchResult {
	return types.SearchResult{Title: url, URL: url}
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com/a", NormalizeURL("https://www.Example.com/a/"))
	assert.Equal(t, "https://example.com/a", NormalizeURL("https://example.com/a?x=1#frag"))
	assert.Equal(t, "http://example.com", NormalizeURL("http://example.com/"))
	assert.Equal(t, "", NormalizeURL("not a url"))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, MaxLimit, ClampLimit(100))
	assert.Equal(t, 3, ClampLimit(3))
}

func TestMergeInterleavesAndDedupes(t *testing.T) {
	a := []types.SearchResult{res("https://a.com/1"), res("https://a.com/2"), res("https://a.com/3")}
	b := []types.SearchResult{res("https://www.a.com/1/"), res("https://b.com/2")}

	merged := Merge([][]types.SearchResult{a, b}, 10)
	urls := []string{}
	for _, r := range merged {
		urls = append(urls, r.URL)
	}
	assert.Equal(t, []string{"https://a.com/1", "https://a.com/2", "https://b.com/2", "https://a.com/3"}, urls)

	assert.Len(t, Merge([][]types.SearchResult{a, b}, 2), 2)
}

func TestAggregatorIsolatesFailures(t *testing.T) {
	agg := NewAggregator(logger.NewNop(), 50*time.Millisecond)
	engines := []Engine{
		&fakeEngine{name: "ok", results: []types.SearchResult{res("https://ok.com")}},
		&fakeEngine{name: "broken", err: errors.New("boom")},
		&fakeEngine{name: "slow", delay: time.Second, results: []types.SearchResult{res("https://slow.com")}},
	}

	resp := agg.Search(context.Background(), "golang", engines, 5)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "ok", resp.Results[0].Engine)
	assert.Equal(t, "boom", resp.Errors["broken"])
	assert.Contains(t, resp.Errors, "slow")
	assert.Equal(t, "golang", resp.Query)
}

func TestAggregatorKeepsErrorsOfSameNamedEngines(t *testing.T) {
	agg := NewAggregator(logger.NewNop(), time.Second)
	engines := []Engine{
		&fakeEngine{name: "DDG", err: errors.New("first down")},
		&fakeEngine{name: "DDG", err: errors.New("second down")},
		&fakeEngine{name: "DDG", results: []types.SearchResult{res("https://ok.com")}},
	}

	resp := agg.Search(context.Background(), "q", engines, 5)
	assert.Equal(t, map[string]string{"DDG": "first down", "DDG (2)": "second down"}, resp.Errors)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "DDG", resp.Results[0].Engine)
}

func TestAggregatorAllFailing(t *testing.T) {
	agg := NewAggregator(logger.NewNop(), time.Second)
	resp := agg.Search(context.Background(), "q", []Engine{&fakeEngine{name: "x", err: errors.New("down")}}, 0)
	assert.Empty(t, resp.Results)
	assert.Len(t, resp.Errors, 1)
}

const ddgPage = `
<div class="result">
  <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">The <b>Go</b> Programming Language</a>
  <a class="result__snippet" href="#">Documentation for   <b>Go</b> &amp; friends</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="https://pkg.go.dev/">pkg.go.dev</a>
  <a class="result__snippet" href="#">Packages</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="/relative">skip me</a>
</div>`

func TestParseDuckDuckGoHTML(t *testing.T) {
	results := ParseDuckDuckGoHTML(ddgPage)
	require.Len(t, results, 2)
	assert.Equal(t, "https://go.dev/doc/", results[0].URL)
	assert.Equal(t, "The Go Programming Language", results[0].Title)
	assert.Equal(t, "Documentation for Go & friends", results[0].Snippet)
	assert.Equal(t, "https://pkg.go.dev/", results[1].URL)
}

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang tips", r.URL.Query().Get("q"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	d := NewDuckDuckGo("DuckDuckGo", srv.URL, srv.Client())
	results, err := d.Search(context.Background(), "golang tips", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestBingSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "en-US", r.URL.Query().Get("mkt"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"webPages":{"value":[{"name":"Go","url":"https://go.dev","snippet":"lang"}]}}`))
	}))
	defer srv.Close()

	b := NewBing("Bing", "secret", "en-US", srv.URL, srv.Client())
	results, err := b.Search(context.Background(), "go", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev", results[0].URL)
}

func TestBingSearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	_, err := NewBing("Bing", "nope", "", srv.URL, srv.Client()).Search(context.Background(), "go", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestFromRow(t *testing.T) {
	_, err := FromRow(&types.SearchEngine{Name: "g", Kind: types.EngineGoogle}, nil, "", "", "")
	assert.Error(t, err)

	e, err := FromRow(&types.SearchEngine{Name: "g", Kind: types.EngineGoogle}, nil, "key", "cx", "")
	require.NoError(t, err)
	assert.Equal(t, "g", e.Name())

	e, err = FromRow(&types.SearchEngine{Name: "ddg", Kind: types.EngineDuckDuckGo}, nil, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "ddg", e.Name())

	_, err = FromRow(&types.SearchEngine{Name: "x", Kind: "yahoo"}, nil, "", "", "")
	assert.Error(t, err)
}

func TestBuiltin(t *testing.T) {
	assert.Len(t, Builtin(nil, "", "", ""), 1)
	assert.Len(t, Builtin(nil, "k", "cx", "b"), 3)
}

func TestGoogleSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "my-cx", r.URL.Query().Get("cx"))
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"title":"Go","link":"https://go.dev","snippet":"lang"}]}`))
	}))
	defer srv.Close()

	g := NewGoogle("Google", "k", "my-cx", srv.URL+"/", srv.Client())
	results, err := g.Search(context.Background(), "golang", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev", results[0].URL)
}
