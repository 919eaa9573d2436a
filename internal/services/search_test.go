package services

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge-org/devforge-backend/internal/types"
)

const ddgResultsPage = `
<div class="result">
  <a rel="nofollow" class="result__a" href="https://go.dev/doc/">Go docs</a>
  <a class="result__snippet" href="#">Official documentation</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="https://www.go.dev/doc">Go docs mirror</a>
  <a class="result__snippet" href="#">Same page</a>
</div>`

func ddgServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(ddgResultsPage))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchEngines_CRUD(t *testing.T) {
	e := newTestEnv(t)
	ctx, _ := e.userCtx(t, "iris")

	_, err := e.search.CreateEngine(ctx, SearchEngineInput{Name: strPtr("x"), Kind: strPtr("altavista")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	engine, err := e.search.CreateEngine(ctx, SearchEngineInput{
		Name:   strPtr("Google"),
		Kind:   strPtr("Google"),
		APIKey: strPtr("key"),
		Config: map[string]interface{}{"cx": "abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.EngineGoogle, engine.Kind)
	assert.True(t, engine.Enabled)

	updated, err := e.search.UpdateEngine(ctx, engine.ID, SearchEngineInput{Enabled: boolPtr(false), Priority: intPtr(3)})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Equal(t, 3, updated.Priority)
	assert.Equal(t, "key", updated.APIKey)

	list, err := e.search.ListEngines(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, e.search.DeleteEngine(ctx, engine.ID))
	assert.ErrorIs(t, e.search.DeleteEngine(ctx, engine.ID), ErrNotFound)
}

func TestSearchEngine_NamesAreUniquePerUser(t *testing.T) {
	e := newTestEnv(t)
	ctx, _ := e.userCtx(t, "kira")
	otherCtx, _ := e.userCtx(t, "liam")

	first, err := e.search.CreateEngine(ctx, SearchEngineInput{Name: strPtr("DDG"), Kind: strPtr("duckduckgo")})
	require.NoError(t, err)
	_, err = e.search.CreateEngine(ctx, SearchEngineInput{Name: strPtr("ddg"), Kind: strPtr("duckduckgo")})
	assert.ErrorIs(t, err, ErrConflict)

	second, err := e.search.CreateEngine(ctx, SearchEngineInput{Name: strPtr("Bing"), Kind: strPtr("bing")})
	require.NoError(t, err)
	_, err = e.search.UpdateEngine(ctx, second.ID, SearchEngineInput{Name: strPtr("DDG")})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = e.search.UpdateEngine(ctx, first.ID, SearchEngineInput{Name: strPtr("DDG"), Priority: intPtr(3)})
	require.NoError(t, err)
	_, err = e.search.CreateEngine(otherCtx, SearchEngineInput{Name: strPtr("DDG"), Kind: strPtr("duckduckgo")})
	require.NoError(t, err)
}

func TestSearch_DedupesAndIsolatesFailures(t *testing.T) {
	e := newTestEnv(t)
	ctx, _ := e.userCtx(t, "jack")
	ok := ddgServer(t, http.StatusOK)
	broken := ddgServer(t, http.StatusInternalServerError)

	_, err := e.search.CreateEngine(ctx, SearchEngineInput{
		Name: strPtr("Working"), Kind: strPtr("duckduckgo"), Priority: intPtr(1),
		Config: map[string]interface{}{"endpoint": ok.URL},
	})
	require.NoError(t, err)
	_, err = e.search.CreateEngine(ctx, SearchEngineInput{
		Name: strPtr("Broken"), Kind: strPtr("duckduckgo"), Priority: intPtr(2),
		Config: map[string]interface{}{"endpoint": broken.URL},
	})
	require.NoError(t, err)
	// a google row without any key cannot be built and is reported, not fatal
	_, err = e.search.CreateEngine(ctx, SearchEngineInput{Name: strPtr("NoKey"), Kind: strPtr("google")})
	require.NoError(t, err)

	resp, err := e.search.Search(ctx, SearchInput{Query: "  golang   docs "})
	require.NoError(t, err)
	assert.Equal(t, "golang docs", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://go.dev/doc/", resp.Results[0].URL)
	assert.Equal(t, "Working", resp.Results[0].Engine)
	assert.Contains(t, resp.Errors, "Broken")
	assert.Contains(t, resp.Errors, "NoKey")
}

func TestSearch_InputErrors(t *testing.T) {
	e := newTestEnv(t)
	ctx, _ := e.userCtx(t, "kim")

	_, err := e.search.Search(ctx, SearchInput{Query: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.search.Search(ctx, SearchInput{Query: "go", EngineIDs: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
