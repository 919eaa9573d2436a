package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageMeta is stored alongside every message; assistant rows carry the usage fields.
type MessageMeta struct {
	Model            string         `json:"model,omitempty"`
	LLMConfigID      string         `json:"llmConfigID,omitempty"`
	PromptTokens     int            `json:"promptTokens,omitempty"`
	CompletionTokens int            `json:"completionTokens,omitempty"`
	DurationMs       int64          `json:"durationMs,omitempty"`
	FileIDs          []string       `json:"fileIDs,omitempty"`
	SearchQuery      string         `json:"searchQuery,omitempty"`
	SearchResults    []SearchResult `json:"searchResults,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// SearchResult is the persisted shape of a web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Engine  string `json:"engine"`
}

type Message struct {
	ID             uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID                       `gorm:"type:uuid;index;not null" json:"conversationID"`
	Role           string                          `gorm:"column:role;not null" json:"role"`
	Content        string                          `gorm:"column:content;type:text;not null" json:"content"`
	Metadata       datatypes.JSONType[MessageMeta] `gorm:"column:metadata" json:"metadata"`
	CreatedAt      time.Time                       `gorm:"not null;index" json:"createdAt"`
	UpdatedAt      time.Time                       `gorm:"not null" json:"updatedAt"`
}

func (Message) TableName() string {
	return "message"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
