package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
)

type ProjectRepo interface {
	Create(ctx context.Context, tx *gorm.DB, project *types.Project) (*types.Project, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Project, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*types.Project, error)
	Save(ctx context.Context, tx *gorm.DB, project *types.Project) error
	Delete(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: baseLog.With("repo", "ProjectRepo")}
}

func (pr *projectRepo) Create(ctx context.Context, tx *gorm.DB, project *types.Project) (*types.Project, error) {
	if tx == nil {
		tx = pr.db
	}
	if err := tx.WithContext(ctx).Omit("Template").Create(project).Error; err != nil {
		pr.log.Error("failed to create project", "name", project.Name, "error", err)
		return nil, err
	}
	return project, nil
}

func (pr *projectRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Project, error) {
	if tx == nil {
		tx = pr.db
	}
	var out []*types.Project
	if err := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&out).Error; err != nil {
		pr.log.Error("failed to list projects", "userID", userID, "error", err)
		return nil, err
	}
	return out, nil
}

func (pr *projectRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*types.Project, error) {
	if tx == nil {
		tx = pr.db
	}
	var project types.Project
	if err := tx.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (pr *projectRepo) Save(ctx context.Context, tx *gorm.DB, project *types.Project) error {
	if tx == nil {
		tx = pr.db
	}
	if err := tx.WithContext(ctx).Omit("Template").Save(project).Error; err != nil {
		pr.log.Error("failed to save project", "id", project.ID, "error", err)
		return err
	}
	return nil
}

func (pr *projectRepo) Delete(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error {
	if tx == nil {
		tx = pr.db
	}
	res := tx.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.Project{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
