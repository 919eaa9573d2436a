package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/bucket"
	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/llm"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/search"
	"github.com/devforge-org/devforge-backend/internal/session"
	"github.com/devforge-org/devforge-backend/internal/testutil"
	"github.com/devforge-org/devforge-backend/internal/types"
)

// fakeLLM is an OpenAI-compatible endpoint that answers with a fixed reply.
type fakeLLM struct {
	srv   *httptest.Server
	reply string

	mu      sync.Mutex
	prompts [][]llm.Message
}

func newFakeLLM(t *testing.T, reply string) *fakeLLM {
	t.Helper()
	f := &fakeLLM{reply: reply}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"llama3"},{"id":"qwen2"}]}`)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string        `json:"model"`
			Messages []llm.Message `json:"messages"`
			Stream   bool          `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.prompts = append(f.prompts, req.Messages)
		f.mu.Unlock()
		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, word := range strings.SplitAfter(f.reply, " ") {
				b, _ := json.Marshal(map[string]interface{}{
					"model":   req.Model,
					"choices": []map[string]interface{}{{"delta": map[string]string{"content": word}}},
				})
				fmt.Fprintf(w, "data: %s\n\n", b)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		b, _ := json.Marshal(map[string]interface{}{
			"model": req.Model,
			"choices": []map[string]interface{}{{
				"message":       map[string]string{"role": "assistant", "content": f.reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
		})
		w.Write(b)
	})
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]interface{}, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]interface{}{"index": i, "embedding": []float32{0.1, 0.2, 0.3}}
		}
		b, _ := json.Marshal(map[string]interface{}{"data": data})
		w.Write(b)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLLM) baseURL() string { return f.srv.URL + "/v1" }

func (f *fakeLLM) lastPrompt() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil
	}
	return f.prompts[len(f.prompts)-1]
}

type testEnv struct {
	db      *gorm.DB
	log     *logger.Logger
	emitter *testutil.Emitter
	bucket  bucket.Bucket
	llm     *fakeLLM

	userRepo         repos.UserRepo
	prefRepo         repos.PreferenceRepo
	llmConfigRepo    repos.LLMConfigRepo
	searchEngineRepo repos.SearchEngineRepo
	conversationRepo repos.ConversationRepo
	messageRepo      repos.MessageRepo
	fileRepo         repos.FileRepo
	templateRepo     repos.TemplateRepo
	projectRepo      repos.ProjectRepo
	planVersionRepo  repos.PlanVersionRepo

	auth          AuthService
	me            MeService
	llmConfigs    LLMConfigService
	search        SearchService
	files         FileService
	conversations ConversationService
	projects      ProjectService
	templates     TemplateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := testutil.NewSQLite(t)
	log := logger.NewNop()
	b, err := bucket.NewLocal(t.TempDir(), log)
	require.NoError(t, err)

	e := &testEnv{
		db:               gdb,
		log:              log,
		emitter:          &testutil.Emitter{},
		bucket:           b,
		llm:              newFakeLLM(t, "Hello from the model"),
		userRepo:         repos.NewUserRepo(gdb, log),
		prefRepo:         repos.NewPreferenceRepo(gdb, log),
		llmConfigRepo:    repos.NewLLMConfigRepo(gdb, log),
		searchEngineRepo: repos.NewSearchEngineRepo(gdb, log),
		conversationRepo: repos.NewConversationRepo(gdb, log),
		messageRepo:      repos.NewMessageRepo(gdb, log),
		fileRepo:         repos.NewFileRepo(gdb, log),
		templateRepo:     repos.NewTemplateRepo(gdb, log),
		projectRepo:      repos.NewProjectRepo(gdb, log),
		planVersionRepo:  repos.NewPlanVersionRepo(gdb, log),
	}
	client := llm.NewClientWithHTTP(log, e.llm.srv.Client())

	e.auth = NewAuthService(gdb, log, e.userRepo, e.prefRepo, nil, session.NewMemoryStore(log), "test-secret", time.Hour)
	e.me = NewMeService(gdb, log, e.userRepo, e.prefRepo, e.llmConfigRepo, e.searchEngineRepo, nil, b)
	e.llmConfigs = NewLLMConfigService(gdb, log, e.llmConfigRepo, e.prefRepo, client, config.LLMConfig{})
	e.search = NewSearchService(gdb, log, e.searchEngineRepo, search.NewAggregator(log, search.DefaultEngineTimeout), http.DefaultClient, config.SearchConfig{})
	e.files = NewFileService(log, e.fileRepo, e.projectRepo, b, nil, client, e.llmConfigs, config.VectorConfig{}, e.emitter, 1<<20)
	e.conversations = NewConversationService(gdb, log, e.conversationRepo, e.messageRepo, e.llmConfigRepo, e.prefRepo, e.llmConfigs, e.search, e.files, client, e.emitter)
	e.projects = NewProjectService(gdb, log, e.projectRepo, e.templateRepo, e.planVersionRepo, e.fileRepo, b, client, e.llmConfigs, e.emitter)
	e.templates = NewTemplateService(log, e.templateRepo)
	return e
}

// userCtx creates a user and returns a context authenticated as them.
func (e *testEnv) userCtx(t *testing.T, username string) (context.Context, *types.User) {
	t.Helper()
	user := testutil.CreateUser(t, e.db, username)
	return testutil.AsUser(context.Background(), user), user
}

// withLLMConfig stores a config pointing at the fake endpoint.
func (e *testEnv) withLLMConfig(t *testing.T, ctx context.Context) *types.LLMConfiguration {
	t.Helper()
	cfg, err := e.llmConfigs.Create(ctx, LLMConfigInput{
		Name:    strPtr("Local"),
		BaseURL: strPtr(e.llm.baseURL()),
		Model:   strPtr("llama3"),
	})
	require.NoError(t, err)
	return cfg
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func stringsReader(s string) io.Reader { return strings.NewReader(s) }
