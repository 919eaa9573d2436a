package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TemplateSourceBuiltin   = "builtin"
	TemplateSourceDirectory = "directory"
)

// TemplateFile is one starter file; Path and Content may contain {{tokens}}.
type TemplateFile struct {
	Path    string `json:"path" yaml:"path"`
	Content string `json:"content" yaml:"content"`
}

type TemplateVariable struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	Default     string `json:"default,omitempty" yaml:"default"`
}

type ProjectTemplate struct {
	ID          uuid.UUID                              `gorm:"type:uuid;primaryKey" json:"id"`
	Slug        string                                 `gorm:"uniqueIndex;not null;column:slug" json:"slug"`
	Name        string                                 `gorm:"column:name;not null" json:"name"`
	Description string                                 `gorm:"type:text;column:description" json:"description"`
	Language    string                                 `gorm:"column:language" json:"language"`
	Tags        datatypes.JSONType[[]string]           `gorm:"column:tags" json:"tags"`
	Files       datatypes.JSONType[[]TemplateFile]     `gorm:"column:files" json:"-"`
	Variables   datatypes.JSONType[[]TemplateVariable] `gorm:"column:variables" json:"variables"`
	Source      string                                 `gorm:"column:source;not null" json:"source"`
	Version     string                                 `gorm:"column:version" json:"version"`
	CreatedAt   time.Time                              `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time                              `gorm:"not null" json:"updatedAt"`
}

func (ProjectTemplate) TableName() string {
	return "project_template"
}

func (t *ProjectTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// FilePaths lists template paths without content, for browsing.
func (t *ProjectTemplate) FilePaths() []string {
	files := t.Files.Data()
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}
