package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/eventdata"
	"github.com/devforge-org/devforge-backend/internal/export"
	"github.com/devforge-org/devforge-backend/internal/llm"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/normalization"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/search"
	"github.com/devforge-org/devforge-backend/internal/socket"
	"github.com/devforge-org/devforge-backend/internal/types"
)

const (
	HistoryWindow    = 40
	AutoTitleRunes   = 60
	maxMessageRunes  = 100000
	maxTitleRunes    = 200
	defaultListLimit = 50
	maxListLimit     = 200
)

type ConversationInput struct {
	Title        *string                `json:"title"`
	LLMConfigID  *string                `json:"llmConfigId"`
	SystemPrompt *string                `json:"systemPrompt"`
	Metadata     map[string]interface{} `json:"metadata"`
}

type SendInput struct {
	Content     string      `json:"content"`
	LLMConfigID *uuid.UUID  `json:"llmConfigId"`
	WebSearch   *bool       `json:"webSearch"`
	EngineIDs   []uuid.UUID `json:"engineIds"`
	FileIDs     []uuid.UUID `json:"fileIds"`
	Stream      bool        `json:"stream"`
}

type SendResult struct {
	UserMessage      *types.Message `json:"userMessage"`
	AssistantMessage *types.Message `json:"assistantMessage"`
}

type ConversationService interface {
	List(ctx context.Context, limit, offset int) ([]*types.Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Conversation, error)
	Create(ctx context.Context, in ConversationInput) (*types.Conversation, error)
	Update(ctx context.Context, id uuid.UUID, in ConversationInput) (*types.Conversation, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Messages(ctx context.Context, id uuid.UUID) ([]*types.Message, error)
	ClearMessages(ctx context.Context, id uuid.UUID) (int64, error)

	// Send runs one chat turn. A nil onDelta gets a single completion; otherwise
	// fragments are streamed to onDelta as they arrive.
	Send(ctx context.Context, id uuid.UUID, in SendInput, onDelta llm.DeltaFunc) (*SendResult, error)

	Export(ctx context.Context, id uuid.UUID, format string) (*export.Document, *types.Conversation, error)
}

type conversationService struct {
	db               *gorm.DB
	log              *logger.Logger
	conversationRepo repos.ConversationRepo
	messageRepo      repos.MessageRepo
	llmConfigRepo    repos.LLMConfigRepo
	prefRepo         repos.PreferenceRepo
	llmConfigs       LLMConfigService
	searchService    SearchService
	fileService      FileService
	llmClient        *llm.Client
	emitter          Emitter
	now              func() time.Time
}

func NewConversationService(
	db *gorm.DB,
	log *logger.Logger,
	conversationRepo repos.ConversationRepo,
	messageRepo repos.MessageRepo,
	llmConfigRepo repos.LLMConfigRepo,
	prefRepo repos.PreferenceRepo,
	llmConfigs LLMConfigService,
	searchService SearchService,
	fileService FileService,
	llmClient *llm.Client,
	emitter Emitter,
) ConversationService {
	return &conversationService{
		db:               db,
		log:              log.With("service", "ConversationService"),
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		llmConfigRepo:    llmConfigRepo,
		prefRepo:         prefRepo,
		llmConfigs:       llmConfigs,
		searchService:    searchService,
		fileService:      fileService,
		llmClient:        llmClient,
		emitter:          emitter,
		now:              time.Now,
	}
}

func (cs *conversationService) List(ctx context.Context, limit, offset int) ([]*types.Conversation, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	convs, err := cs.conversationRepo.ListByUser(ctx, nil, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

func (cs *conversationService) Get(ctx context.Context, id uuid.UUID) (*types.Conversation, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := cs.conversationRepo.GetByIDForUser(ctx, nil, userID, id)
	if err != nil {
		return nil, notFoundOr(err, "conversation")
	}
	return conv, nil
}

func (cs *conversationService) Create(ctx context.Context, in ConversationInput) (*types.Conversation, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	conv := &types.Conversation{UserID: userID}
	if err := cs.applyInput(ctx, userID, conv, in); err != nil {
		return nil, err
	}
	if _, err := cs.conversationRepo.Create(ctx, nil, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	cs.log.Info("Conversation created :)", "conversationID", conv.ID)
	return conv, nil
}

func (cs *conversationService) Update(ctx context.Context, id uuid.UUID, in ConversationInput) (*types.Conversation, error) {
	conv, err := cs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := cs.applyInput(ctx, conv.UserID, conv, in); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{
		"title":         conv.Title,
		"llm_config_id": conv.LLMConfigID,
		"system_prompt": conv.SystemPrompt,
		"metadata":      conv.Metadata,
	}
	if err := cs.conversationRepo.UpdateFields(ctx, nil, conv.ID, fields); err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	cs.emitUpdated(ctx, conv)
	return conv, nil
}

func (cs *conversationService) applyInput(ctx context.Context, userID uuid.UUID, conv *types.Conversation, in ConversationInput) error {
	if in.Title != nil {
		conv.Title = normalization.Truncate(normalization.CollapseWhitespace(*in.Title), maxTitleRunes)
	}
	if in.LLMConfigID != nil {
		if *in.LLMConfigID == "" {
			conv.LLMConfigID = nil
		} else {
			id, err := uuid.Parse(*in.LLMConfigID)
			if err != nil {
				return invalidInput("llmConfigId is not a valid id")
			}
			if _, err := cs.llmConfigRepo.GetByIDForUser(ctx, nil, userID, id); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return invalidInput("unknown LLM configuration %s", id)
				}
				return err
			}
			conv.LLMConfigID = &id
		}
	}
	if in.SystemPrompt != nil {
		conv.SystemPrompt = strings.TrimSpace(*in.SystemPrompt)
	}
	if in.Metadata != nil {
		conv.Metadata = datatypes.JSONMap(in.Metadata)
	}
	return nil
}

func (cs *conversationService) Delete(ctx context.Context, id uuid.UUID) error {
	userID, err := currentUserID(ctx)
	if err != nil {
		return err
	}
	return cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := cs.conversationRepo.GetByIDForUser(ctx, tx, userID, id); err != nil {
			return notFoundOr(err, "conversation")
		}
		if _, err := cs.messageRepo.DeleteByConversation(ctx, tx, id); err != nil {
			return err
		}
		if err := cs.conversationRepo.Delete(ctx, tx, userID, id); err != nil {
			return notFoundOr(err, "conversation")
		}
		return nil
	})
}

func (cs *conversationService) Messages(ctx context.Context, id uuid.UUID) ([]*types.Message, error) {
	conv, err := cs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := cs.messageRepo.ListByConversation(ctx, nil, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

func (cs *conversationService) ClearMessages(ctx context.Context, id uuid.UUID) (int64, error) {
	conv, err := cs.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	n, err := cs.messageRepo.DeleteByConversation(ctx, nil, conv.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear messages: %w", err)
	}
	cs.emitUpdated(ctx, conv)
	return n, nil
}

func (cs *conversationService) Send(ctx context.Context, id uuid.UUID, in SendInput, onDelta llm.DeltaFunc) (*SendResult, error) {
	cs.log.Info("Starting Send now...", "conversationID", id, "stream", onDelta != nil)
	conv, err := cs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, invalidInput("content is required")
	}
	if len([]rune(content)) > maxMessageRunes {
		return nil, invalidInput("content is longer than %d characters", maxMessageRunes)
	}

	// Input errors surface before anything is written.
	cfg, err := cs.llmConfigs.Resolve(ctx, conv.UserID, in.LLMConfigID, conv.LLMConfigID)
	if err != nil {
		return nil, err
	}
	fileIDs := dedupeIDs(in.FileIDs)
	var fileContext string
	if len(fileIDs) > 0 {
		fileContext, err = cs.fileService.PromptContext(ctx, conv.UserID, fileIDs, content)
		if err != nil {
			return nil, err
		}
	}

	// 1) user message
	userMeta := types.MessageMeta{FileIDs: idStrings(fileIDs)}
	userMsg := &types.Message{
		ConversationID: conv.ID,
		Role:           types.RoleUser,
		Content:        content,
		Metadata:       datatypes.NewJSONType(userMeta),
	}
	if _, err := cs.messageRepo.Create(ctx, nil, userMsg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	// 2) web search, best effort
	var searchResp *search.Response
	if cs.wantsSearch(ctx, conv.UserID, in.WebSearch) {
		engineIDs := in.EngineIDs
		if len(engineIDs) == 0 {
			engineIDs = cs.defaultEngines(ctx, conv.UserID)
		}
		resp, err := cs.searchService.SearchForUser(ctx, conv.UserID, content, engineIDs, search.DefaultLimit)
		if err != nil {
			cs.log.Warn("Web search failed, continuing without it", "error", err)
		} else {
			searchResp = resp
		}
	}

	// 3) prompt
	history, err := cs.messageRepo.ListRecent(ctx, nil, conv.ID, HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	prompt := buildPrompt(conv, cfg, history, searchContext(searchResp), fileContext)

	// 4) completion
	var res *llm.ChatResult
	if onDelta != nil {
		res, err = cs.llmClient.ChatStream(ctx, EndpointFor(cfg), prompt, onDelta)
	} else {
		res, err = cs.llmClient.Chat(ctx, EndpointFor(cfg), prompt)
	}
	if err != nil {
		cs.log.Warn("Chat completion failed", "conversationID", conv.ID, "model", cfg.Model, "error", err)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, upstreamError("chat completion failed: %v", err)
	}

	// 5) assistant message
	meta := types.MessageMeta{
		Model:            res.Model,
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		DurationMs:       res.Duration.Milliseconds(),
		FileIDs:          userMeta.FileIDs,
	}
	if !cfg.Builtin {
		meta.LLMConfigID = cfg.ID.String()
	}
	if searchResp != nil {
		meta.SearchQuery = searchResp.Query
		meta.SearchResults = searchResp.Results
	}
	assistantMsg := &types.Message{
		ConversationID: conv.ID,
		Role:           types.RoleAssistant,
		Content:        res.Content,
		Metadata:       datatypes.NewJSONType(meta),
	}
	if _, err := cs.messageRepo.Create(ctx, nil, assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to store reply: %w", err)
	}

	fields := map[string]interface{}{"updated_at": cs.now()}
	if conv.Title == "" {
		conv.Title = autoTitle(history, content)
		fields["title"] = conv.Title
	}
	if err := cs.conversationRepo.UpdateFields(ctx, nil, conv.ID, fields); err != nil {
		cs.log.Warn("Failed to update conversation after reply", "conversationID", conv.ID, "error", err)
	}
	conv.UpdatedAt = fields["updated_at"].(time.Time)

	cs.emitUpdated(ctx, conv)
	cs.log.Info("Send finished :)", "conversationID", conv.ID, "model", res.Model, "durationMs", meta.DurationMs)
	return &SendResult{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

func (cs *conversationService) wantsSearch(ctx context.Context, userID uuid.UUID, explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	pref, err := cs.prefRepo.GetByUserID(ctx, nil, userID)
	return err == nil && pref.WebSearchEnabled
}

func (cs *conversationService) defaultEngines(ctx context.Context, userID uuid.UUID) []uuid.UUID {
	pref, err := cs.prefRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil
	}
	return pref.DefaultSearchEngineIDs.Data()
}

func (cs *conversationService) emitUpdated(ctx context.Context, conv *types.Conversation) {
	publish(ctx, cs.emitter, eventdata.Event{
		Channel: socket.UserChannel(conv.UserID),
		Type:    eventdata.ConversationUpdated,
		Data:    conv,
	})
}

func (cs *conversationService) Export(ctx context.Context, id uuid.UUID, format string) (*export.Document, *types.Conversation, error) {
	conv, err := cs.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := cs.messageRepo.ListByConversation(ctx, nil, conv.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if format == "" {
		format = export.FormatMarkdown
	}
	doc, err := export.Render(format, conv, msgs, cs.now())
	if err != nil {
		if errors.Is(err, export.ErrUnknownFormat) {
			return nil, nil, invalidInput("format must be markdown, html or json")
		}
		return nil, nil, err
	}
	return doc, conv, nil
}

// buildPrompt lays out system prompt, earlier history, retrieved context and
// finally the newest user turn, so context sits next to the question.
func buildPrompt(conv *types.Conversation, cfg *types.LLMConfiguration, history []*types.Message, searchCtx, fileCtx string) []llm.Message {
	out := make([]llm.Message, 0, len(history)+3)
	system := conv.SystemPrompt
	if system == "" {
		system = cfg.SystemPrompt
	}
	if system != "" {
		out = append(out, llm.Message{Role: types.RoleSystem, Content: system})
	}

	last := len(history) - 1
	for i, m := range history {
		if i == last {
			break
		}
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	if searchCtx != "" {
		out = append(out, llm.Message{Role: types.RoleSystem, Content: searchCtx})
	}
	if fileCtx != "" {
		out = append(out, llm.Message{Role: types.RoleSystem, Content: "Attached files:\n" + fileCtx})
	}
	if last >= 0 {
		out = append(out, llm.Message{Role: history[last].Role, Content: history[last].Content})
	}
	return out
}

// autoTitle uses the oldest user message in the window, falling back to the
// current one.
func autoTitle(history []*types.Message, current string) string {
	src := current
	for _, m := range history {
		if m.Role == types.RoleUser {
			src = m.Content
			break
		}
	}
	return normalization.Truncate(normalization.CollapseWhitespace(src), AutoTitleRunes)
}

func idStrings(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
