package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
)

type TemplateRepo interface {
	// CREATE
	Create(ctx context.Context, tx *gorm.DB, templates []*types.ProjectTemplate) ([]*types.ProjectTemplate, error)

	// READ
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.ProjectTemplate, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.ProjectTemplate, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ProjectTemplate, error)

	// UPDATE
	Save(ctx context.Context, tx *gorm.DB, tmpl *types.ProjectTemplate) error

	// DELETE
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type templateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTemplateRepo(db *gorm.DB, baseLog *logger.Logger) TemplateRepo {
	return &templateRepo{db: db, log: baseLog.With("repo", "TemplateRepo")}
}

func (tr *templateRepo) Create(ctx context.Context, tx *gorm.DB, templates []*types.ProjectTemplate) ([]*types.ProjectTemplate, error) {
	tr.log.Info("Starting Create ProjectTemplates now...", "count", len(templates))
	if tx == nil {
		tx = tr.db
	}
	if len(templates) == 0 {
		return []*types.ProjectTemplate{}, nil
	}
	if err := tx.WithContext(ctx).Create(&templates).Error; err != nil {
		tr.log.Error("Failed to create project templates", "error", err)
		return nil, err
	}
	tr.log.Info("Successfully created project templates", "count", len(templates))
	return templates, nil
}

func (tr *templateRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.ProjectTemplate, error) {
	if tx == nil {
		tx = tr.db
	}
	var out []*types.ProjectTemplate
	if err := tx.WithContext(ctx).Order("slug ASC").Find(&out).Error; err != nil {
		tr.log.Error("Failed to list project templates", "error", err)
		return nil, err
	}
	return out, nil
}

func (tr *templateRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.ProjectTemplate, error) {
	if tx == nil {
		tx = tr.db
	}
	var tmpl types.ProjectTemplate
	if err := tx.WithContext(ctx).Where("slug = ?", slug).First(&tmpl).Error; err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (tr *templateRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ProjectTemplate, error) {
	if tx == nil {
		tx = tr.db
	}
	var tmpl types.ProjectTemplate
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&tmpl).Error; err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (tr *templateRepo) Save(ctx context.Context, tx *gorm.DB, tmpl *types.ProjectTemplate) error {
	if tx == nil {
		tx = tr.db
	}
	if err := tx.WithContext(ctx).Save(tmpl).Error; err != nil {
		tr.log.Error("Failed to save project template", "slug", tmpl.Slug, "error", err)
		return err
	}
	return nil
}

func (tr *templateRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	if tx == nil {
		tx = tr.db
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Delete(&types.ProjectTemplate{}).Error; err != nil {
		tr.log.Error("Failed to delete project templates", "count", len(ids), "error", err)
		return err
	}
	tr.log.Info("Deleted project templates", "count", len(ids))
	return nil
}
