package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge-org/devforge-backend/internal/bucket"
	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/github"
	"github.com/devforge-org/devforge-backend/internal/handlers"
	"github.com/devforge-org/devforge-backend/internal/llm"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/middleware"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/search"
	"github.com/devforge-org/devforge-backend/internal/services"
	"github.com/devforge-org/devforge-backend/internal/session"
	"github.com/devforge-org/devforge-backend/internal/socket"
	"github.com/devforge-org/devforge-backend/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newFakeLLM answers chat completions with "pong", streamed or not.
func newFakeLLM(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"po"}}]}`+"\n\n")
			fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"ng"}}]}`+"\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		fmt.Fprintf(w, `{"model":%q,"choices":[{"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`, req.Model)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testApp struct {
	router  *gin.Engine
	emitter *testutil.Emitter
	llmURL  string
}

func newTestApp(t *testing.T, rps float64, burst int) *testApp {
	t.Helper()
	gdb := testutil.NewSQLite(t)
	log := logger.NewNop()
	b, err := bucket.NewLocal(t.TempDir(), log)
	require.NoError(t, err)
	fake := newFakeLLM(t)
	emitter := &testutil.Emitter{}

	userRepo := repos.NewUserRepo(gdb, log)
	prefRepo := repos.NewPreferenceRepo(gdb, log)
	llmConfigRepo := repos.NewLLMConfigRepo(gdb, log)
	searchEngineRepo := repos.NewSearchEngineRepo(gdb, log)
	templateRepo := repos.NewTemplateRepo(gdb, log)
	projectRepo := repos.NewProjectRepo(gdb, log)
	fileRepo := repos.NewFileRepo(gdb, log)
	client := llm.NewClientWithHTTP(log, fake.Client())
	githubClient, err := github.NewClient(log, "https://api.github.com", http.DefaultClient)
	require.NoError(t, err)

	authService := services.NewAuthService(gdb, log, userRepo, prefRepo, nil, session.NewMemoryStore(log), "test-secret", time.Hour)
	llmConfigs := services.NewLLMConfigService(gdb, log, llmConfigRepo, prefRepo, client, config.LLMConfig{})
	searchService := services.NewSearchService(gdb, log, searchEngineRepo, search.NewAggregator(log, time.Second), http.DefaultClient, config.SearchConfig{})
	fileService := services.NewFileService(log, fileRepo, projectRepo, b, nil, client, llmConfigs, config.VectorConfig{}, emitter, 1<<20)
	conversations := services.NewConversationService(gdb, log, repos.NewConversationRepo(gdb, log), repos.NewMessageRepo(gdb, log), llmConfigRepo, prefRepo, llmConfigs, searchService, fileService, client, emitter)
	share := services.NewShareService(log, conversations, services.NewEmailService(log, config.ShareConfig{}), services.NewTextService(log, config.ShareConfig{}), "http://localhost")
	projects := services.NewProjectService(gdb, log, projectRepo, templateRepo, repos.NewPlanVersionRepo(gdb, log), fileRepo, b, client, llmConfigs, emitter)

	router := NewRouter(RouterConfig{
		Log:                 log,
		LogMode:             "test",
		CorsOrigins:         []string{"http://localhost:5173"},
		Emitter:             emitter,
		RateLimiter:         middleware.NewRateLimiter(log, rps, burst),
		AuthMiddleware:      middleware.NewAuthMiddleware(log, authService),
		AuthHandler:         handlers.NewAuthHandler(authService),
		MeHandler:           handlers.NewMeHandler(services.NewMeService(gdb, log, userRepo, prefRepo, llmConfigRepo, searchEngineRepo, nil, b)),
		LLMConfigHandler:    handlers.NewLLMConfigHandler(llmConfigs),
		ConversationHandler: handlers.NewConversationHandler(log, conversations, share),
		SearchHandler:       handlers.NewSearchHandler(searchService),
		FileHandler:         handlers.NewFileHandler(fileService, 1<<20),
		GitHubHandler:       handlers.NewGitHubHandler(log, services.NewGitHubService(log, githubClient, prefRepo, ""), ""),
		TemplateHandler:     handlers.NewTemplateHandler(services.NewTemplateService(log, templateRepo)),
		ProjectHandler:      handlers.NewProjectHandler(projects),
		WsHandler:           handlers.WsHandler(socket.NewHub(log), log, nil),
	})
	return &testApp{router: router, emitter: emitter, llmURL: fake.URL + "/v1"}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func (a *testApp) login(t *testing.T, username string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": username})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, w.Code, w.Body.String())
	var res struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, w, &res)
	require.NotEmpty(t, res.AccessToken)
	return res.AccessToken
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, 0, 1)
	w := app.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t, 0, 1)

	w := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = app.do(t, http.MethodGet, "/api/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := app.login(t, "alice")
	w = app.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Username string `json:"username"`
	}
	decode(t, w, &me)
	assert.Equal(t, "alice", me.Username)

	// Query tokens are accepted for clients that cannot set headers.
	w = app.do(t, http.MethodGet, "/api/me?token="+token, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversationRoutes(t *testing.T) {
	app := newTestApp(t, 0, 1)
	token := app.login(t, "bob")

	w := app.do(t, http.MethodPost, "/api/llm-configs", token, map[string]string{
		"name": "Local", "baseURL": app.llmURL, "model": "llama3",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/conversations", token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var conv struct {
		ID string `json:"id"`
	}
	decode(t, w, &conv)

	w = app.do(t, http.MethodGet, "/api/conversations/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", token, map[string]interface{}{"content": "ping"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sent struct {
		AssistantMessage struct {
			Content string `json:"content"`
		} `json:"assistantMessage"`
	}
	decode(t, w, &sent)
	assert.Equal(t, "pong", sent.AssistantMessage.Content)
	assert.Contains(t, app.emitter.Types(), "conversation_updated")

	w = app.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", token, map[string]interface{}{"content": "again", "stream": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	body := w.Body.String()
	assert.Contains(t, body, "event:delta")
	assert.Contains(t, body, "event:done")

	w = app.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", token, map[string]interface{}{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []map[string]interface{}
	decode(t, w, &msgs)
	assert.Len(t, msgs, 4)

	w = app.do(t, http.MethodGet, "/api/conversations/"+conv.ID+"/export?format=md", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "conversation-"+conv.ID+".md")
	assert.Contains(t, w.Body.String(), "pong")

	// Another user cannot see it.
	other := app.login(t, "carol")
	w = app.do(t, http.MethodGet, "/api/conversations/"+conv.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodDelete, "/api/conversations/"+conv.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = app.do(t, http.MethodGet, "/api/conversations/"+conv.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGitHubWebhook(t *testing.T) {
	app := newTestApp(t, 0, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", strings.NewReader(`{"zen":"hi"}`))
	req.Header.Set("X-GitHub-Event", "ping")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pong":true}`, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/webhooks/github", strings.NewReader(`{}`))
	req.Header.Set("X-GitHub-Event", "push")
	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"received":true,"event":"push"}`, w.Body.String())
}

func TestRateLimit(t *testing.T) {
	app := newTestApp(t, 0.001, 2)
	for i := 0; i < 2; i++ {
		w := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "dave"})
		require.Less(t, w.Code, 300)
	}
	w := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "dave"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t, 0, 1)
	req := httptest.NewRequest(http.MethodOptions, "/api/me", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
