package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
)

type ConversationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, conv *types.Conversation) (*types.Conversation, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Conversation, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*types.Conversation, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Delete(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: baseLog.With("repo", "ConversationRepo")}
}

func (cr *conversationRepo) Create(ctx context.Context, tx *gorm.DB, conv *types.Conversation) (*types.Conversation, error) {
	if tx == nil {
		tx = cr.db
	}
	if err := tx.WithContext(ctx).Create(conv).Error; err != nil {
		cr.log.Error("failed to create conversation", "error", err)
		return nil, err
	}
	return conv, nil
}

func (cr *conversationRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Conversation, error) {
	if tx == nil {
		tx = cr.db
	}
	q := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*types.Conversation
	if err := q.Find(&out).Error; err != nil {
		cr.log.Error("failed to list conversations", "userID", userID, "error", err)
		return nil, err
	}
	return out, nil
}

func (cr *conversationRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*types.Conversation, error) {
	if tx == nil {
		tx = cr.db
	}
	var conv types.Conversation
	if err := tx.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (cr *conversationRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	if tx == nil {
		tx = cr.db
	}
	if len(fields) == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Updates(fields).Error; err != nil {
		cr.log.Error("failed to update conversation", "id", id, "error", err)
		return err
	}
	return nil
}

// Touch bumps updated_at so the conversation sorts first in listings.
func (cr *conversationRepo) Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		tx = cr.db
	}
	return tx.WithContext(ctx).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

func (cr *conversationRepo) Delete(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error {
	if tx == nil {
		tx = cr.db
	}
	res := tx.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.Conversation{})
	if res.Error != nil {
		cr.log.Error("failed to delete conversation", "id", id, "error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
