package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/normalization"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/search"
	"github.com/devforge-org/devforge-backend/internal/types"
)

const maxQueryRunes = 500

type SearchEngineInput struct {
	Name     *string                `json:"name"`
	Kind     *string                `json:"kind"`
	APIKey   *string                `json:"apiKey"`
	Config   map[string]interface{} `json:"config"`
	Enabled  *bool                  `json:"enabled"`
	Priority *int                   `json:"priority"`
}

type SearchInput struct {
	Query     string      `json:"query"`
	EngineIDs []uuid.UUID `json:"engineIds"`
	Limit     int         `json:"limit"`
}

type SearchService interface {
	ListEngines(ctx context.Context) ([]*types.SearchEngine, error)
	GetEngine(ctx context.Context, id uuid.UUID) (*types.SearchEngine, error)
	CreateEngine(ctx context.Context, in SearchEngineInput) (*types.SearchEngine, error)
	UpdateEngine(ctx context.Context, id uuid.UUID, in SearchEngineInput) (*types.SearchEngine, error)
	DeleteEngine(ctx context.Context, id uuid.UUID) error

	Search(ctx context.Context, in SearchInput) (*search.Response, error)
	SearchForUser(ctx context.Context, userID uuid.UUID, query string, engineIDs []uuid.UUID, limit int) (*search.Response, error)
}

type searchService struct {
	db               *gorm.DB
	log              *logger.Logger
	searchEngineRepo repos.SearchEngineRepo
	aggregator       *search.Aggregator
	httpClient       *http.Client
	keys             config.SearchConfig
}

func NewSearchService(
	db *gorm.DB,
	log *logger.Logger,
	searchEngineRepo repos.SearchEngineRepo,
	aggregator *search.Aggregator,
	httpClient *http.Client,
	keys config.SearchConfig,
) SearchService {
	return &searchService{
		db:               db,
		log:              log.With("service", "SearchService"),
		searchEngineRepo: searchEngineRepo,
		aggregator:       aggregator,
		httpClient:       httpClient,
		keys:             keys,
	}
}

func (ss *searchService) ListEngines(ctx context.Context) ([]*types.SearchEngine, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	engines, err := ss.searchEngineRepo.ListByUser(ctx, nil, userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list search engines: %w", err)
	}
	return engines, nil
}

func (ss *searchService) GetEngine(ctx context.Context, id uuid.UUID) (*types.SearchEngine, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	engine, err := ss.searchEngineRepo.GetByIDForUser(ctx, nil, userID, id)
	if err != nil {
		return nil, notFoundOr(err, "search engine")
	}
	return engine, nil
}

func (ss *searchService) CreateEngine(ctx context.Context, in SearchEngineInput) (*types.SearchEngine, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	engine := &types.SearchEngine{UserID: userID, Enabled: true}
	if err := applySearchEngineInput(engine, in); err != nil {
		return nil, err
	}
	if err := ss.ensureUniqueName(ctx, engine); err != nil {
		return nil, err
	}
	if _, err := ss.searchEngineRepo.Create(ctx, nil, engine); err != nil {
		return nil, fmt.Errorf("failed to create search engine: %w", err)
	}
	ss.log.Info("Search engine created :)", "id", engine.ID, "kind", engine.Kind)
	return engine, nil
}

func (ss *searchService) UpdateEngine(ctx context.Context, id uuid.UUID, in SearchEngineInput) (*types.SearchEngine, error) {
	engine, err := ss.GetEngine(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applySearchEngineInput(engine, in); err != nil {
		return nil, err
	}
	if err := ss.ensureUniqueName(ctx, engine); err != nil {
		return nil, err
	}
	if err := ss.searchEngineRepo.Save(ctx, nil, engine); err != nil {
		return nil, fmt.Errorf("failed to update search engine: %w", err)
	}
	return engine, nil
}

// ensureUniqueName rejects a second engine with the same name (case
// insensitive) for one user; search errors are reported by name.
func (ss *searchService) ensureUniqueName(ctx context.Context, engine *types.SearchEngine) error {
	existing, err := ss.searchEngineRepo.ListByUser(ctx, nil, engine.UserID, false)
	if err != nil {
		return fmt.Errorf("failed to list search engines: %w", err)
	}
	for _, other := range existing {
		if other.ID != engine.ID && strings.EqualFold(other.Name, engine.Name) {
			return fmt.Errorf("%w: a search engine named %q already exists", ErrConflict, engine.Name)
		}
	}
	return nil
}

func (ss *searchService) DeleteEngine(ctx context.Context, id uuid.UUID) error {
	userID, err := currentUserID(ctx)
	if err != nil {
		return err
	}
	if err := ss.searchEngineRepo.Delete(ctx, nil, userID, id); err != nil {
		return notFoundOr(err, "search engine")
	}
	return nil
}

func (ss *searchService) Search(ctx context.Context, in SearchInput) (*search.Response, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	return ss.SearchForUser(ctx, userID, in.Query, in.EngineIDs, in.Limit)
}

// SearchForUser never fails because an engine failed; those land in
// Response.Errors. Only bad input and storage errors are returned.
func (ss *searchService) SearchForUser(ctx context.Context, userID uuid.UUID, query string, engineIDs []uuid.UUID, limit int) (*search.Response, error) {
	query = normalization.CollapseWhitespace(query)
	if query == "" {
		return nil, invalidInput("query is required")
	}
	query = normalization.Truncate(query, maxQueryRunes)

	engines, buildErrs, err := ss.enginesFor(ctx, userID, engineIDs)
	if err != nil {
		return nil, err
	}
	resp := ss.aggregator.Search(ctx, query, engines, search.ClampLimit(limit))
	for name, msg := range buildErrs {
		resp.Errors[name] = msg
	}
	ss.log.Info("Search finished", "engines", len(engines), "results", len(resp.Results), "errors", len(resp.Errors))
	return resp, nil
}

func (ss *searchService) enginesFor(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]search.Engine, map[string]string, error) {
	var rows []*types.SearchEngine
	if len(ids) > 0 {
		ids = dedupeIDs(ids)
		found, err := ss.searchEngineRepo.GetByIDsForUser(ctx, nil, userID, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load search engines: %w", err)
		}
		if len(found) != len(ids) {
			return nil, nil, invalidInput("unknown search engine id")
		}
		rows = found
	} else {
		found, err := ss.searchEngineRepo.ListByUser(ctx, nil, userID, true)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load search engines: %w", err)
		}
		rows = found
	}

	buildErrs := map[string]string{}
	if len(rows) == 0 {
		return search.Builtin(ss.httpClient, ss.keys.GoogleAPIKey, ss.keys.GoogleCX, ss.keys.BingAPIKey), buildErrs, nil
	}
	engines := make([]search.Engine, 0, len(rows))
	for _, row := range rows {
		e, err := search.FromRow(row, ss.httpClient, ss.keys.GoogleAPIKey, ss.keys.GoogleCX, ss.keys.BingAPIKey)
		if err != nil {
			buildErrs[row.Name] = err.Error()
			continue
		}
		engines = append(engines, e)
	}
	return engines, buildErrs, nil
}

func applySearchEngineInput(engine *types.SearchEngine, in SearchEngineInput) error {
	if in.Name != nil {
		engine.Name = normalization.CollapseWhitespace(*in.Name)
	}
	if in.Kind != nil {
		engine.Kind = strings.ToLower(strings.TrimSpace(*in.Kind))
	}
	if in.APIKey != nil {
		engine.APIKey = strings.TrimSpace(*in.APIKey)
	}
	if in.Config != nil {
		engine.Config = datatypes.JSONMap(in.Config)
	}
	if in.Enabled != nil {
		engine.Enabled = *in.Enabled
	}
	if in.Priority != nil {
		engine.Priority = *in.Priority
	}
	if engine.Name == "" {
		return invalidInput("name is required")
	}
	if !types.IsValidEngineKind(engine.Kind) {
		return invalidInput("kind must be google, bing or duckduckgo")
	}
	return nil
}

// searchContext renders the top results as a system message for the model.
func searchContext(resp *search.Response) string {
	if resp == nil || len(resp.Results) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Web search results for %q:\n", resp.Query)
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	b.WriteString("Cite the URLs you rely on.")
	return b.String()
}
