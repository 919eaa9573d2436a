package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
)

type MessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error)
	ListByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]*types.Message, error)
	ListRecent(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, n int) ([]*types.Message, error)
	CountByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) (int64, error)
	DeleteByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) (int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "MessageRepo")}
}

func (mr *messageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error) {
	if tx == nil {
		tx = mr.db
	}
	if err := tx.WithContext(ctx).Create(msg).Error; err != nil {
		mr.log.Error("failed to create message", "conversationID", msg.ConversationID, "error", err)
		return nil, err
	}
	return msg, nil
}

func (mr *messageRepo) ListByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]*types.Message, error) {
	if tx == nil {
		tx = mr.db
	}
	var out []*types.Message
	if err := tx.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListRecent returns the last n messages in chronological order.
func (mr *messageRepo) ListRecent(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, n int) ([]*types.Message, error) {
	if tx == nil {
		tx = mr.db
	}
	var out []*types.Message
	if err := tx.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(n).
		Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (mr *messageRepo) CountByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) (int64, error) {
	if tx == nil {
		tx = mr.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&types.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

func (mr *messageRepo) DeleteByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) (int64, error) {
	if tx == nil {
		tx = mr.db
	}
	res := tx.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&types.Message{})
	if res.Error != nil {
		mr.log.Error("failed to clear messages", "conversationID", conversationID, "error", res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
