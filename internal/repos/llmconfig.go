package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
)

type LLMConfigRepo interface {
	Create(ctx context.Context, tx *gorm.DB, cfg *types.LLMConfiguration) (*types.LLMConfiguration, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.LLMConfiguration, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*types.LLMConfiguration, error)
	GetDefault(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.LLMConfiguration, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	Save(ctx context.Context, tx *gorm.DB, cfg *types.LLMConfiguration) error
	SetDefault(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error
	ClearDefault(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
	Delete(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error
}

type llmConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLLMConfigRepo(db *gorm.DB, baseLog *logger.Logger) LLMConfigRepo {
	return &llmConfigRepo{db: db, log: baseLog.With("repo", "LLMConfigRepo")}
}

func (lr *llmConfigRepo) Create(ctx context.Context, tx *gorm.DB, cfg *types.LLMConfiguration) (*types.LLMConfiguration, error) {
	if tx == nil {
		tx = lr.db
	}
	if err := tx.WithContext(ctx).Create(cfg).Error; err != nil {
		lr.log.Error("failed to create llm configuration", "error", err)
		return nil, err
	}
	return cfg, nil
}

func (lr *llmConfigRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.LLMConfiguration, error) {
	if tx == nil {
		tx = lr.db
	}
	var out []*types.LLMConfiguration
	if err := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at ASC").
		Find(&out).Error; err != nil {
		lr.log.Error("failed to list llm configurations", "userID", userID, "error", err)
		return nil, err
	}
	return out, nil
}

func (lr *llmConfigRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*types.LLMConfiguration, error) {
	if tx == nil {
		tx = lr.db
	}
	var cfg types.LLMConfiguration
	if err := tx.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (lr *llmConfigRepo) GetDefault(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.LLMConfiguration, error) {
	if tx == nil {
		tx = lr.db
	}
	var cfg types.LLMConfiguration
	if err := tx.WithContext(ctx).
		Where("user_id = ? AND is_default = ?", userID, true).
		First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (lr *llmConfigRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	if tx == nil {
		tx = lr.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&types.LLMConfiguration{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (lr *llmConfigRepo) Save(ctx context.Context, tx *gorm.DB, cfg *types.LLMConfiguration) error {
	if tx == nil {
		tx = lr.db
	}
	if err := tx.WithContext(ctx).Save(cfg).Error; err != nil {
		lr.log.Error("failed to save llm configuration", "id", cfg.ID, "error", err)
		return err
	}
	return nil
}

// SetDefault clears the flag on every other row of the user, then sets it on id.
func (lr *llmConfigRepo) SetDefault(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error {
	if tx == nil {
		tx = lr.db
	}
	return tx.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.Model(&types.LLMConfiguration{}).
			Where("user_id = ? AND id <> ?", userID, id).
			Update("is_default", false).Error; err != nil {
			return err
		}
		res := inner.Model(&types.LLMConfiguration{}).
			Where("user_id = ? AND id = ?", userID, id).
			Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (lr *llmConfigRepo) ClearDefault(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if tx == nil {
		tx = lr.db
	}
	return tx.WithContext(ctx).
		Model(&types.LLMConfiguration{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}

func (lr *llmConfigRepo) Delete(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error {
	if tx == nil {
		tx = lr.db
	}
	res := tx.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.LLMConfiguration{})
	if res.Error != nil {
		lr.log.Error("failed to delete llm configuration", "id", id, "error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
