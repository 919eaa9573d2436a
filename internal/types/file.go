package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	FileStatusUploaded = "uploaded"
	FileStatusAnalyzed = "analyzed"
	FileStatusIndexed  = "indexed"
	FileStatusFailed   = "failed"
)

type File struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID         `gorm:"type:uuid;index;not null" json:"userID"`
	User         *User             `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	ProjectID    *uuid.UUID        `gorm:"type:uuid;index" json:"projectID,omitempty"`
	Name         string            `gorm:"column:name;not null" json:"name"`
	Size         int64             `gorm:"column:size" json:"size"`
	ContentType  string            `gorm:"column:content_type" json:"contentType"`
	BucketKey    string            `gorm:"column:bucket_key;not null" json:"-"`
	ThumbnailKey string            `gorm:"column:thumbnail_key" json:"-"`
	SHA256       string            `gorm:"column:sha256;index" json:"sha256"`
	Status       string            `gorm:"column:status;not null" json:"status"`
	Analysis     datatypes.JSONMap `gorm:"column:analysis" json:"analysis"`
	CreatedAt    time.Time         `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updatedAt"`
}

func (File) TableName() string {
	return "file"
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

func (f *File) HasThumbnail() bool {
	return f.ThumbnailKey != ""
}
