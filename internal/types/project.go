package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ProjectStatusDraft     = "draft"
	ProjectStatusGenerated = "generated"
	ProjectStatusFailed    = "failed"
)

type Project struct {
	ID          uuid.UUID                             `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID                             `gorm:"type:uuid;index;not null" json:"userID"`
	User        *User                                 `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Name        string                                `gorm:"column:name;not null" json:"name"`
	Description string                                `gorm:"type:text;column:description" json:"description"`
	TemplateID  *uuid.UUID                            `gorm:"type:uuid;index" json:"templateID,omitempty"`
	Template    *ProjectTemplate                      `gorm:"constraint:OnDelete:SET NULL;foreignKey:TemplateID;references:ID" json:"template,omitempty"`
	Variables   datatypes.JSONType[map[string]string] `gorm:"column:variables" json:"variables"`
	Status      string                                `gorm:"column:status;not null" json:"status"`
	ArchiveKey  string                                `gorm:"column:archive_key" json:"-"`
	GeneratedAt *time.Time                            `gorm:"column:generated_at" json:"generatedAt,omitempty"`
	Metadata    datatypes.JSONMap                     `gorm:"column:metadata" json:"metadata"`
	CreatedAt   time.Time                             `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time                             `gorm:"not null" json:"updatedAt"`
}

func (Project) TableName() string {
	return "project"
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

const (
	PlanSourceManual = "manual"
	PlanSourceLLM    = "llm"
)

// ProjectPlanVersion rows are append-only; Version is 1-based per project.
type ProjectPlanVersion struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_plan_project_version" json:"projectID"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"-"`
	Version   int       `gorm:"not null;uniqueIndex:idx_plan_project_version" json:"version"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Summary   string    `gorm:"column:summary" json:"summary"`
	Source    string    `gorm:"column:source;not null" json:"source"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (ProjectPlanVersion) TableName() string {
	return "project_plan_version"
}

func (v *ProjectPlanVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
