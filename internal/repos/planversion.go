package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
)

type PlanVersionRepo interface {
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectPlanVersion, error)
	GetByVersion(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, version int) (*types.ProjectPlanVersion, error)
	GetLatest(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.ProjectPlanVersion, error)
	CreateNext(ctx context.Context, tx *gorm.DB, plan *types.ProjectPlanVersion) (*types.ProjectPlanVersion, error)
	DeleteByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (int64, error)
}

type planVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanVersionRepo(db *gorm.DB, baseLog *logger.Logger) PlanVersionRepo {
	return &planVersionRepo{db: db, log: baseLog.With("repo", "PlanVersionRepo")}
}

func (pr *planVersionRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectPlanVersion, error) {
	if tx == nil {
		tx = pr.db
	}
	var out []*types.ProjectPlanVersion
	if err := tx.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (pr *planVersionRepo) GetByVersion(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, version int) (*types.ProjectPlanVersion, error) {
	if tx == nil {
		tx = pr.db
	}
	var plan types.ProjectPlanVersion
	if err := tx.WithContext(ctx).
		Where("project_id = ? AND version = ?", projectID, version).
		First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (pr *planVersionRepo) GetLatest(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.ProjectPlanVersion, error) {
	if tx == nil {
		tx = pr.db
	}
	var plan types.ProjectPlanVersion
	if err := tx.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version DESC").
		First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// CreateNext assigns plan.Version = max(version)+1 for the project and inserts it.
// The unique (project_id, version) index turns a concurrent writer into an error
// rather than a duplicate version.
func (pr *planVersionRepo) CreateNext(ctx context.Context, tx *gorm.DB, plan *types.ProjectPlanVersion) (*types.ProjectPlanVersion, error) {
	if tx == nil {
		tx = pr.db
	}
	err := tx.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		// Lock the parent row so writers on one project serialise (no-op on sqlite).
		if inner.Dialector.Name() == "postgres" {
			if err := inner.Model(&types.Project{}).
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", plan.ProjectID).
				Select("id").
				Find(&[]types.Project{}).Error; err != nil {
				return err
			}
		}
		var maxVersion int
		if err := inner.Model(&types.ProjectPlanVersion{}).
			Where("project_id = ?", plan.ProjectID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}
		plan.Version = maxVersion + 1
		return inner.Create(plan).Error
	})
	if err != nil {
		pr.log.Error("failed to create plan version", "projectID", plan.ProjectID, "error", err)
		return nil, err
	}
	pr.log.Info("created plan version", "projectID", plan.ProjectID, "version", plan.Version)
	return plan, nil
}

func (pr *planVersionRepo) DeleteByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (int64, error) {
	if tx == nil {
		tx = pr.db
	}
	res := tx.WithContext(ctx).
		Where("project_id = ?", projectID).
		Delete(&types.ProjectPlanVersion{})
	if res.Error != nil {
		pr.log.Error("failed to delete plan versions", "projectID", projectID, "error", res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
