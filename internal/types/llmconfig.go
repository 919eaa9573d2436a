package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LLMConfiguration is a saved endpoint/model/temperature preset.
type LLMConfiguration struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID         `gorm:"type:uuid;index;not null" json:"userID"`
	User         *User             `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Name         string            `gorm:"column:name;not null" json:"name"`
	BaseURL      string            `gorm:"column:base_url;not null" json:"baseURL"`
	APIKey       string            `gorm:"column:api_key" json:"-"`
	Model        string            `gorm:"column:model;not null" json:"model"`
	Temperature  float64           `gorm:"column:temperature;not null" json:"temperature"`
	MaxTokens    *int              `gorm:"column:max_tokens" json:"maxTokens,omitempty"`
	SystemPrompt string            `gorm:"type:text;column:system_prompt" json:"systemPrompt"`
	IsDefault    bool              `gorm:"column:is_default;index" json:"isDefault"`
	Metadata     datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
	CreatedAt    time.Time         `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updatedAt"`

	// Builtin marks the in-memory config derived from DEFAULT_LLM_*; never persisted.
	Builtin bool `gorm:"-" json:"builtin,omitempty"`
}

func (LLMConfiguration) TableName() string {
	return "llm_configuration"
}

func (l *LLMConfiguration) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (l *LLMConfiguration) APIKeySet() bool {
	return l.APIKey != ""
}

// MarshalJSON reports whether a key is stored without echoing it.
func (l LLMConfiguration) MarshalJSON() ([]byte, error) {
	type alias LLMConfiguration
	return json.Marshal(struct {
		alias
		APIKeySet bool `json:"apiKeySet"`
	}{alias(l), l.APIKey != ""})
}
