package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

type UserPreference struct {
	ID                     uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                 uuid.UUID                       `gorm:"type:uuid;uniqueIndex;not null" json:"userID"`
	User                   *User                           `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Theme                  string                          `gorm:"column:theme;not null" json:"theme"`
	DefaultLLMConfigID     *uuid.UUID                      `gorm:"type:uuid;column:default_llm_config_id" json:"defaultLLMConfigID,omitempty"`
	DefaultSearchEngineIDs datatypes.JSONType[[]uuid.UUID] `gorm:"column:default_search_engine_ids" json:"defaultSearchEngineIDs"`
	WebSearchEnabled       bool                            `gorm:"column:web_search_enabled" json:"webSearchEnabled"`
	GitHubToken            string                          `gorm:"column:github_token" json:"-"`
	Extra                  datatypes.JSONMap               `gorm:"column:extra" json:"extra"`
	CreatedAt              time.Time                       `gorm:"not null" json:"createdAt"`
	UpdatedAt              time.Time                       `gorm:"not null" json:"updatedAt"`
}

func (UserPreference) TableName() string {
	return "user_preference"
}

func (p *UserPreference) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// GitHubTokenSet lets responses report a token without echoing it.
func (p *UserPreference) GitHubTokenSet() bool {
	return p.GitHubToken != ""
}

func (p UserPreference) MarshalJSON() ([]byte, error) {
	type alias UserPreference
	return json.Marshal(struct {
		alias
		GitHubTokenSet bool `json:"githubTokenSet"`
	}{alias(p), p.GitHubToken != ""})
}
