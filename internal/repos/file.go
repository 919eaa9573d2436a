package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
)

type FileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, file *types.File) (*types.File, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, projectID *uuid.UUID) ([]*types.File, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*types.File, error)
	GetByIDsForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []uuid.UUID) ([]*types.File, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	DetachProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error
}

type fileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileRepo(db *gorm.DB, baseLog *logger.Logger) FileRepo {
	return &fileRepo{db: db, log: baseLog.With("repo", "FileRepo")}
}

func (fr *fileRepo) Create(ctx context.Context, tx *gorm.DB, file *types.File) (*types.File, error) {
	if tx == nil {
		tx = fr.db
	}
	if err := tx.WithContext(ctx).Create(file).Error; err != nil {
		fr.log.Error("failed to create file row", "name", file.Name, "error", err)
		return nil, err
	}
	return file, nil
}

func (fr *fileRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, projectID *uuid.UUID) ([]*types.File, error) {
	if tx == nil {
		tx = fr.db
	}
	q := tx.WithContext(ctx).Where("user_id = ?", userID)
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	}
	var out []*types.File
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		fr.log.Error("failed to list files", "userID", userID, "error", err)
		return nil, err
	}
	return out, nil
}

func (fr *fileRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*types.File, error) {
	if tx == nil {
		tx = fr.db
	}
	var file types.File
	if err := tx.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (fr *fileRepo) GetByIDsForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []uuid.UUID) ([]*types.File, error) {
	if tx == nil {
		tx = fr.db
	}
	var out []*types.File
	if len(ids) == 0 {
		return out, nil
	}
	if err := tx.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (fr *fileRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	if tx == nil {
		tx = fr.db
	}
	if err := tx.WithContext(ctx).
		Model(&types.File{}).
		Where("id = ?", id).
		Updates(fields).Error; err != nil {
		fr.log.Error("failed to update file row", "id", id, "error", err)
		return err
	}
	return nil
}

// DetachProject clears project_id on every file attached to the project.
func (fr *fileRepo) DetachProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (int64, error) {
	if tx == nil {
		tx = fr.db
	}
	res := tx.WithContext(ctx).
		Model(&types.File{}).
		Where("project_id = ?", projectID).
		Update("project_id", nil)
	if res.Error != nil {
		fr.log.Error("failed to detach files from project", "projectID", projectID, "error", res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (fr *fileRepo) Delete(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) error {
	if tx == nil {
		tx = fr.db
	}
	res := tx.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.File{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
