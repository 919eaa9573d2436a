package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/llm"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/normalization"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/types"
)

const (
	DefaultTemperature = 0.7
	maxTemperature     = 2.0
	maxConfigNameRunes = 80
)

// LLMConfigInput is shared by create and update; on update nil fields are
// left alone and an empty APIKey clears the stored key.
type LLMConfigInput struct {
	Name         *string                `json:"name"`
	BaseURL      *string                `json:"baseURL"`
	APIKey       *string                `json:"apiKey"`
	Model        *string                `json:"model"`
	Temperature  *float64               `json:"temperature"`
	MaxTokens    *int                   `json:"maxTokens"`
	SystemPrompt *string                `json:"systemPrompt"`
	Metadata     map[string]interface{} `json:"metadata"`
}

type LLMConfigService interface {
	List(ctx context.Context) ([]*types.LLMConfiguration, error)
	Get(ctx context.Context, id uuid.UUID) (*types.LLMConfiguration, error)
	Create(ctx context.Context, in LLMConfigInput) (*types.LLMConfiguration, error)
	Update(ctx context.Context, id uuid.UUID, in LLMConfigInput) (*types.LLMConfiguration, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetDefault(ctx context.Context, id uuid.UUID) (*types.LLMConfiguration, error)
	Test(ctx context.Context, id uuid.UUID) (*llm.ProbeResult, error)
	Models(ctx context.Context, id uuid.UUID) ([]string, error)

	// Resolve picks the configuration for a chat turn: explicit id, then the
	// conversation's, then the user's default, then the built-in one.
	Resolve(ctx context.Context, userID uuid.UUID, explicit, conversation *uuid.UUID) (*types.LLMConfiguration, error)
}

type llmConfigService struct {
	db            *gorm.DB
	log           *logger.Logger
	llmConfigRepo repos.LLMConfigRepo
	prefRepo      repos.PreferenceRepo
	client        *llm.Client
	builtin       config.LLMConfig
}

func NewLLMConfigService(
	db *gorm.DB,
	log *logger.Logger,
	llmConfigRepo repos.LLMConfigRepo,
	prefRepo repos.PreferenceRepo,
	client *llm.Client,
	builtin config.LLMConfig,
) LLMConfigService {
	return &llmConfigService{
		db:            db,
		log:           log.With("service", "LLMConfigService"),
		llmConfigRepo: llmConfigRepo,
		prefRepo:      prefRepo,
		client:        client,
		builtin:       builtin,
	}
}

// EndpointFor converts a stored configuration into client parameters.
func EndpointFor(cfg *types.LLMConfiguration) llm.Endpoint {
	return llm.Endpoint{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

func (ls *llmConfigService) builtinConfig() *types.LLMConfiguration {
	if ls.builtin.DefaultBaseURL == "" || ls.builtin.DefaultModel == "" {
		return nil
	}
	return &types.LLMConfiguration{
		Name:        "Built-in",
		BaseURL:     ls.builtin.DefaultBaseURL,
		APIKey:      ls.builtin.DefaultAPIKey,
		Model:       ls.builtin.DefaultModel,
		Temperature: DefaultTemperature,
		IsDefault:   true,
		Builtin:     true,
	}
}

func (ls *llmConfigService) List(ctx context.Context) ([]*types.LLMConfiguration, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	cfgs, err := ls.llmConfigRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list LLM configurations: %w", err)
	}
	if len(cfgs) == 0 {
		if b := ls.builtinConfig(); b != nil {
			cfgs = append(cfgs, b)
		}
	}
	return cfgs, nil
}

func (ls *llmConfigService) Get(ctx context.Context, id uuid.UUID) (*types.LLMConfiguration, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := ls.llmConfigRepo.GetByIDForUser(ctx, nil, userID, id)
	if err != nil {
		return nil, notFoundOr(err, "LLM configuration")
	}
	return cfg, nil
}

func (ls *llmConfigService) Create(ctx context.Context, in LLMConfigInput) (*types.LLMConfiguration, error) {
	ls.log.Info("Starting Create LLM configuration now...")
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	cfg := &types.LLMConfiguration{UserID: userID, Temperature: DefaultTemperature}
	if err := applyLLMConfigInput(cfg, in); err != nil {
		return nil, err
	}

	txErr := ls.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := ls.llmConfigRepo.CountByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		cfg.IsDefault = count == 0
		if _, err = ls.llmConfigRepo.Create(ctx, tx, cfg); err != nil {
			return err
		}
		if cfg.IsDefault {
			return ls.mirrorDefault(ctx, tx, userID, &cfg.ID)
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, ErrInvalidInput) {
			return nil, txErr
		}
		return nil, fmt.Errorf("failed to create LLM configuration: %w", txErr)
	}
	ls.log.Info("LLM configuration created :)", "id", cfg.ID, "default", cfg.IsDefault)
	return cfg, nil
}

func (ls *llmConfigService) Update(ctx context.Context, id uuid.UUID, in LLMConfigInput) (*types.LLMConfiguration, error) {
	cfg, err := ls.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyLLMConfigInput(cfg, in); err != nil {
		return nil, err
	}
	if err := ls.llmConfigRepo.Save(ctx, nil, cfg); err != nil {
		return nil, fmt.Errorf("failed to update LLM configuration: %w", err)
	}
	return cfg, nil
}

// Delete removes the row; when it was the default the oldest
// remaining config takes over.
func (ls *llmConfigService) Delete(ctx context.Context, id uuid.UUID) error {
	userID, err := currentUserID(ctx)
	if err != nil {
		return err
	}
	return ls.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := ls.llmConfigRepo.GetByIDForUser(ctx, tx, userID, id)
		if err != nil {
			return notFoundOr(err, "LLM configuration")
		}
		if err := ls.llmConfigRepo.Delete(ctx, tx, userID, id); err != nil {
			return notFoundOr(err, "LLM configuration")
		}
		if !cfg.IsDefault {
			return nil
		}
		rest, err := ls.llmConfigRepo.ListByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(rest) == 0 {
			return ls.mirrorDefault(ctx, tx, userID, nil)
		}
		if err := ls.llmConfigRepo.SetDefault(ctx, tx, userID, rest[0].ID); err != nil {
			return err
		}
		return ls.mirrorDefault(ctx, tx, userID, &rest[0].ID)
	})
}

func (ls *llmConfigService) SetDefault(ctx context.Context, id uuid.UUID) (*types.LLMConfiguration, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	txErr := ls.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ls.llmConfigRepo.SetDefault(ctx, tx, userID, id); err != nil {
			return notFoundOr(err, "LLM configuration")
		}
		return ls.mirrorDefault(ctx, tx, userID, &id)
	})
	if txErr != nil {
		return nil, txErr
	}
	return ls.Get(ctx, id)
}

// mirrorDefault copies the is_default flag into the user's preferences so
// both read the same configuration.
func (ls *llmConfigService) mirrorDefault(ctx context.Context, tx *gorm.DB, userID uuid.UUID, id *uuid.UUID) error {
	pref, err := ls.prefRepo.GetOrCreate(ctx, tx, userID)
	if err != nil {
		return err
	}
	pref.DefaultLLMConfigID = id
	return ls.prefRepo.Save(ctx, tx, pref)
}

func (ls *llmConfigService) Test(ctx context.Context, id uuid.UUID) (*llm.ProbeResult, error) {
	cfg, err := ls.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res := ls.client.Probe(ctx, EndpointFor(cfg))
	ls.log.Info("Probed LLM endpoint", "id", cfg.ID, "ok", res.OK, "status", res.Status, "latencyMs", res.LatencyMs)
	return &res, nil
}

func (ls *llmConfigService) Models(ctx context.Context, id uuid.UUID) ([]string, error) {
	cfg, err := ls.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	models, err := ls.client.ListModels(ctx, EndpointFor(cfg))
	if err != nil {
		return nil, upstreamError("failed to list models: %v", err)
	}
	return models, nil
}

func (ls *llmConfigService) Resolve(ctx context.Context, userID uuid.UUID, explicit, conversation *uuid.UUID) (*types.LLMConfiguration, error) {
	if explicit != nil {
		cfg, err := ls.llmConfigRepo.GetByIDForUser(ctx, nil, userID, *explicit)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, invalidInput("unknown LLM configuration %s", *explicit)
			}
			return nil, err
		}
		return cfg, nil
	}
	if conversation != nil {
		cfg, err := ls.llmConfigRepo.GetByIDForUser(ctx, nil, userID, *conversation)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	cfg, err := ls.llmConfigRepo.GetDefault(ctx, nil, userID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	// No flagged default: the oldest configuration wins.
	rest, err := ls.llmConfigRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return rest[0], nil
	}
	if b := ls.builtinConfig(); b != nil {
		return b, nil
	}
	return nil, invalidInput("no LLM configuration available; create one first")
}

func applyLLMConfigInput(cfg *types.LLMConfiguration, in LLMConfigInput) error {
	if in.Name != nil {
		cfg.Name = normalization.CollapseWhitespace(*in.Name)
	}
	if in.BaseURL != nil {
		cfg.BaseURL = strings.TrimSuffix(strings.TrimSpace(*in.BaseURL), "/")
	}
	if in.APIKey != nil {
		cfg.APIKey = strings.TrimSpace(*in.APIKey)
	}
	if in.Model != nil {
		cfg.Model = strings.TrimSpace(*in.Model)
	}
	if in.Temperature != nil {
		cfg.Temperature = *in.Temperature
	}
	if in.MaxTokens != nil {
		switch {
		case *in.MaxTokens < 0:
			return invalidInput("maxTokens must be positive")
		case *in.MaxTokens == 0:
			cfg.MaxTokens = nil
		default:
			v := *in.MaxTokens
			cfg.MaxTokens = &v
		}
	}
	if in.SystemPrompt != nil {
		cfg.SystemPrompt = strings.TrimSpace(*in.SystemPrompt)
	}
	if in.Metadata != nil {
		cfg.Metadata = datatypes.JSONMap(in.Metadata)
	}

	if cfg.Name == "" || len([]rune(cfg.Name)) > maxConfigNameRunes {
		return invalidInput("name is required (max %d characters)", maxConfigNameRunes)
	}
	if cfg.Model == "" {
		return invalidInput("model is required")
	}
	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return err
	}
	if cfg.Temperature < 0 || cfg.Temperature > maxTemperature {
		return invalidInput("temperature must be between 0 and 2")
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalidInput("baseURL must be an absolute http(s) URL")
	}
	return nil
}
