package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/types"
)

type PreferenceRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserPreference, error)
	GetOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserPreference, error)
	Save(ctx context.Context, tx *gorm.DB, pref *types.UserPreference) error
}

type preferenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPreferenceRepo(db *gorm.DB, baseLog *logger.Logger) PreferenceRepo {
	return &preferenceRepo{db: db, log: baseLog.With("repo", "PreferenceRepo")}
}

func (pr *preferenceRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserPreference, error) {
	if tx == nil {
		tx = pr.db
	}
	var pref types.UserPreference
	if err := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&pref).Error; err != nil {
		return nil, err
	}
	return &pref, nil
}

// GetOrCreate returns the user's row, inserting one with defaults on first use.
func (pr *preferenceRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserPreference, error) {
	if tx == nil {
		tx = pr.db
	}
	pref, err := pr.GetByUserID(ctx, tx, userID)
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		pr.log.Error("failed to load preferences", "userID", userID, "error", err)
		return nil, err
	}
	pref = &types.UserPreference{
		UserID: userID,
		Theme:  types.ThemeSystem,
		Extra:  map[string]interface{}{},
	}
	if err := tx.WithContext(ctx).Create(pref).Error; err != nil {
		pr.log.Error("failed to create default preferences", "userID", userID, "error", err)
		return nil, err
	}
	pr.log.Debug("created default preferences", "userID", userID)
	return pref, nil
}

func (pr *preferenceRepo) Save(ctx context.Context, tx *gorm.DB, pref *types.UserPreference) error {
	if tx == nil {
		tx = pr.db
	}
	if err := tx.WithContext(ctx).Save(pref).Error; err != nil {
		pr.log.Error("failed to save preferences", "userID", pref.UserID, "error", err)
		return err
	}
	return nil
}
