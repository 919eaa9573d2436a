package services

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/llm"
	"github.com/devforge-org/devforge-backend/internal/logger"
)

func TestLLMConfig_FirstBecomesDefault(t *testing.T) {
	e := newTestEnv(t)
	ctx, _ := e.userCtx(t, "ann")

	first := e.withLLMConfig(t, ctx)
	assert.True(t, first.IsDefault)
	assert.Equal(t, DefaultTemperature, first.Temperature)

	second, err := e.llmConfigs.Create(ctx, LLMConfigInput{
		Name:    strPtr("Remote"),
		BaseURL: strPtr("https://api.example.com/v1/"),
		APIKey:  strPtr("sk-123"),
		Model:   strPtr("gpt-4o-mini"),
	})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)
	assert.Equal(t, "https://api.example.com/v1", second.BaseURL)

	raw, err := json.Marshal(second)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-123")
	assert.Contains(t, string(raw), `"apiKeySet":true`)

	_, err = e.llmConfigs.SetDefault(ctx, second.ID)
	require.NoError(t, err)
	list, err := e.llmConfigs.List(ctx)
	require.NoError(t, err)
	defaults := 0
	for _, c := range list {
		if c.IsDefault {
			defaults++
			assert.Equal(t, second.ID, c.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestLLMConfig_Validation(t *testing.T) {
	e := newTestEnv(t)
	ctx, _ := e.userCtx(t, "ben")

	cases := []LLMConfigInput{
		{Name: strPtr(""), BaseURL: strPtr("http://x"), Model: strPtr("m")},
		{Name: strPtr("n"), BaseURL: strPtr("ftp://x"), Model: strPtr("m")},
		{Name: strPtr("n"), BaseURL: strPtr("/relative"), Model: strPtr("m")},
		{Name: strPtr("n"), BaseURL: strPtr("http://x"), Model: strPtr("")},
		{Name: strPtr("n"), BaseURL: strPtr("http://x"), Model: strPtr("m"), Temperature: floatPtr(2.5)},
		{Name: strPtr("n"), BaseURL: strPtr("http://x"), Model: strPtr("m"), MaxTokens: intPtr(-1)},
	}
	for i, in := range cases {
		_, err := e.llmConfigs.Create(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidInput, "case %d", i)
	}
}

func TestLLMConfig_DeletePromotesNextDefault(t *testing.T) {
	e := newTestEnv(t)
	ctx, _ := e.userCtx(t, "cleo")
	first := e.withLLMConfig(t, ctx)
	second := e.withLLMConfig(t, ctx)

	require.NoError(t, e.llmConfigs.Delete(ctx, first.ID))
	got, err := e.llmConfigs.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	assert.ErrorIs(t, e.llmConfigs.Delete(ctx, first.ID), ErrNotFound)
}

func TestLLMConfig_OwnershipIsNotFound(t *testing.T) {
	e := newTestEnv(t)
	ctx, _ := e.userCtx(t, "dora")
	otherCtx, _ := e.userCtx(t, "eli")
	cfg := e.withLLMConfig(t, otherCtx)

	_, err := e.llmConfigs.Get(ctx, cfg.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.llmConfigs.Update(ctx, cfg.ID, LLMConfigInput{Name: strPtr("mine")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLLMConfig_TestAndModels(t *testing.T) {
	e := newTestEnv(t)
	ctx, _ := e.userCtx(t, "fay")
	cfg := e.withLLMConfig(t, ctx)

	res, err := e.llmConfigs.Test(ctx, cfg.ID)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, 2, res.Models)

	models, err := e.llmConfigs.Models(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3", "qwen2"}, models)
}

func TestLLMConfig_ResolveOrder(t *testing.T) {
	e := newTestEnv(t)
	ctx, user := e.userCtx(t, "gus")

	_, err := e.llmConfigs.Resolve(ctx, user.ID, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	def := e.withLLMConfig(t, ctx)
	other := e.withLLMConfig(t, ctx)

	got, err := e.llmConfigs.Resolve(ctx, user.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, def.ID, got.ID)

	got, err = e.llmConfigs.Resolve(ctx, user.ID, nil, &other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.ID)

	got, err = e.llmConfigs.Resolve(ctx, user.ID, &def.ID, &other.ID)
	require.NoError(t, err)
	assert.Equal(t, def.ID, got.ID)

	missing := uuid.New()
	_, err = e.llmConfigs.Resolve(ctx, user.ID, &missing, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLLMConfig_DefaultStaysInSyncWithPreferences(t *testing.T) {
	e := newTestEnv(t)
	ctx, user := e.userCtx(t, "gwen")
	a := e.withLLMConfig(t, ctx)
	b := e.withLLMConfig(t, ctx)

	aID := a.ID.String()
	_, err := e.me.UpdatePreferences(ctx, PreferencesInput{DefaultLLMConfigID: &aID})
	require.NoError(t, err)

	_, err = e.llmConfigs.SetDefault(ctx, b.ID)
	require.NoError(t, err)

	got, err := e.llmConfigs.Resolve(ctx, user.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	pref, err := e.me.GetPreferences(ctx)
	require.NoError(t, err)
	require.NotNil(t, pref.DefaultLLMConfigID)
	assert.Equal(t, b.ID, *pref.DefaultLLMConfigID)

	_, err = e.me.UpdatePreferences(ctx, PreferencesInput{DefaultLLMConfigID: &aID})
	require.NoError(t, err)
	got, err = e.llmConfigs.Resolve(ctx, user.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	stored, err := e.llmConfigs.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDefault)

	cleared := ""
	_, err = e.me.UpdatePreferences(ctx, PreferencesInput{DefaultLLMConfigID: &cleared})
	require.NoError(t, err)
	got, err = e.llmConfigs.Resolve(ctx, user.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID, "oldest config is used when none is flagged")
}

func TestLLMConfig_BuiltinFallback(t *testing.T) {
	e := newTestEnv(t)
	ctx, user := e.userCtx(t, "hal")
	svc := NewLLMConfigService(e.db, logger.NewNop(), e.llmConfigRepo, e.prefRepo, llm.NewClient(logger.NewNop()), config.LLMConfig{
		DefaultBaseURL: "http://localhost:11434/v1",
		DefaultModel:   "llama3",
	})

	got, err := svc.Resolve(ctx, user.ID, nil, nil)
	require.NoError(t, err)
	assert.True(t, got.Builtin)
	assert.Equal(t, "llama3", got.Model)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Builtin)
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
