package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Conversation struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID         `gorm:"type:uuid;index;not null" json:"userID"`
	User         *User             `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Title        string            `gorm:"column:title" json:"title"`
	LLMConfigID  *uuid.UUID        `gorm:"type:uuid;index;column:llm_config_id" json:"llmConfigID,omitempty"`
	SystemPrompt string            `gorm:"type:text;column:system_prompt" json:"systemPrompt"`
	Metadata     datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
	Messages     []*Message        `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
	CreatedAt    time.Time         `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time         `gorm:"not null;index" json:"updatedAt"`
}

func (Conversation) TableName() string {
	return "conversation"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
