package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username        string     `gorm:"uniqueIndex;not null;column:username" json:"username"`
	Email           *string    `gorm:"column:email" json:"email,omitempty"`
	DisplayName     string     `gorm:"not null;column:display_name" json:"displayName"`
	PasswordHash    string     `gorm:"column:password_hash" json:"-"`
	AvatarBucketKey string     `gorm:"column:avatar_bucket_key" json:"-"`
	AvatarURL       string     `gorm:"column:avatar_url" json:"avatarURL"`
	LastLoginAt     *time.Time `gorm:"column:last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string {
	return "user"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
