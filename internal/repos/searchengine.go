package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
)

type SearchEngineRepo interface {
	Create(ctx context.Context, tx *gorm.DB, engine *types.SearchEngine) (*types.SearchEngine, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, enabledOnly bool) ([]*types.SearchEngine, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*types.SearchEngine, error)
	GetByIDsForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []uuid.UUID) ([]*types.SearchEngine, error)
	Save(ctx context.Context, tx *gorm.DB, engine *types.SearchEngine) error
	Delete(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error
}

type searchEngineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSearchEngineRepo(db *gorm.DB, baseLog *logger.Logger) SearchEngineRepo {
	return &searchEngineRepo{db: db, log: baseLog.With("repo", "SearchEngineRepo")}
}

func (sr *searchEngineRepo) Create(ctx context.Context, tx *gorm.DB, engine *types.SearchEngine) (*types.SearchEngine, error) {
	if tx == nil {
		tx = sr.db
	}
	if err := tx.WithContext(ctx).Create(engine).Error; err != nil {
		sr.log.Error("failed to create search engine", "error", err)
		return nil, err
	}
	return engine, nil
}

func (sr *searchEngineRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, enabledOnly bool) ([]*types.SearchEngine, error) {
	if tx == nil {
		tx = sr.db
	}
	q := tx.WithContext(ctx).Where("user_id = ?", userID)
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	var out []*types.SearchEngine
	if err := q.Order("priority ASC, created_at ASC").Find(&out).Error; err != nil {
		sr.log.Error("failed to list search engines", "userID", userID, "error", err)
		return nil, err
	}
	return out, nil
}

func (sr *searchEngineRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*types.SearchEngine, error) {
	if tx == nil {
		tx = sr.db
	}
	var engine types.SearchEngine
	if err := tx.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&engine).Error; err != nil {
		return nil, err
	}
	return &engine, nil
}

func (sr *searchEngineRepo) GetByIDsForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []uuid.UUID) ([]*types.SearchEngine, error) {
	if tx == nil {
		tx = sr.db
	}
	var out []*types.SearchEngine
	if len(ids) == 0 {
		return out, nil
	}
	if err := tx.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Order("priority ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (sr *searchEngineRepo) Save(ctx context.Context, tx *gorm.DB, engine *types.SearchEngine) error {
	if tx == nil {
		tx = sr.db
	}
	return tx.WithContext(ctx).Save(engine).Error
}

func (sr *searchEngineRepo) Delete(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error {
	if tx == nil {
		tx = sr.db
	}
	res := tx.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.SearchEngine{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
