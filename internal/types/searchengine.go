package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EngineGoogle     = "google"
	EngineBing       = "bing"
	EngineDuckDuckGo = "duckduckgo"
)

type SearchEngine struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID         `gorm:"type:uuid;index;not null" json:"userID"`
	User      *User             `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Name      string            `gorm:"column:name;not null" json:"name"`
	Kind      string            `gorm:"column:kind;not null" json:"kind"`
	APIKey    string            `gorm:"column:api_key" json:"-"`
	Config    datatypes.JSONMap `gorm:"column:config" json:"config"`
	Enabled   bool              `gorm:"column:enabled" json:"enabled"`
	Priority  int               `gorm:"column:priority" json:"priority"`
	CreatedAt time.Time         `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time         `gorm:"not null" json:"updatedAt"`

	Builtin bool `gorm:"-" json:"builtin,omitempty"`
}

func (SearchEngine) TableName() string {
	return "search_engine"
}

func (s *SearchEngine) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ConfigString reads a string entry of the engine config map.
func (s *SearchEngine) ConfigString(key string) string {
	if s.Config == nil {
		return ""
	}
	if v, ok := s.Config[key].(string); ok {
		return v
	}
	return ""
}

func IsValidEngineKind(kind string) bool {
	switch kind {
	case EngineGoogle, EngineBing, EngineDuckDuckGo:
		return true
	}
	return false
}

func (s SearchEngine) MarshalJSON() ([]byte, error) {
	type alias SearchEngine
	return json.Marshal(struct {
		alias
		APIKeySet bool `json:"apiKeySet"`
	}{alias(s), s.APIKey != ""})
}
