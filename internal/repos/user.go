package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/requestdata"
	"github.com/devforge-org/devforge-backend/internal/types"
)

type UserRepo interface {
	// CREATE
	Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error)

	// READ
	GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error)
	GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*types.User, error)
	UsernameExists(ctx context.Context, tx *gorm.DB, username string) (bool, error)

	// UPDATE
	UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fields map[string]interface{}) error
	TouchLogin(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error

	// MISC
	GetMe(ctx context.Context, tx *gorm.DB) (*types.User, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

// ----------------------------------------------------------------
// CREATE
// ----------------------------------------------------------------

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
	ur.log.Info("Starting Create Users now...")

	// 1) Check transaction
	transaction := tx
	if transaction == nil {
		transaction = ur.db
		ur.log.Debug("Transaction is nil, using ur.db instead")
	}

	// 2) Check if empty
	if len(users) == 0 {
		ur.log.Debug("Users array is empty, returning empty slice", "count", 0)
		return []*types.User{}, nil
	}

	// 3) Create
	ur.log.Info("Creating users now in DB...", "count", len(users))
	if err := transaction.WithContext(ctx).Create(&users).Error; err != nil {
		ur.log.Error("Failed to create users", "error", err)
		return nil, err
	}
	ur.log.Info("Successfully created users", "count", len(users))
	return users, nil
}

// ----------------------------------------------------------------
// READ
// ----------------------------------------------------------------

func (ur *userRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
	ur.log.Info("Starting GetByIDs for Users now...")

	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	var results []*types.User
	if len(userIDs) == 0 {
		ur.log.Debug("No userIDs provided, returning empty slice")
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", userIDs).
		Find(&results).Error; err != nil {
		ur.log.Error("Failed to fetch users by IDs", "error", err)
		return nil, err
	}
	ur.log.Info("Successfully fetched users by IDs", "count", len(results))
	return results, nil
}

func (ur *userRepo) GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*types.User, error) {
	ur.log.Info("Starting GetByUsername now...", "username", username)

	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	var user types.User
	if err := transaction.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error; err != nil {
		ur.log.Debug("User lookup by username failed", "username", username, "error", err)
		return nil, err
	}
	return &user, nil
}

func (ur *userRepo) UsernameExists(ctx context.Context, tx *gorm.DB, username string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		ur.log.Error("Failed to count users by username", "error", err)
		return false, err
	}
	return count > 0, nil
}

// ----------------------------------------------------------------
// UPDATE
// ----------------------------------------------------------------

func (ur *userRepo) UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fields map[string]interface{}) error {
	ur.log.Info("Starting UpdateFields for User now...", "userID", userID)

	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	if len(fields) == 0 {
		return nil
	}
	res := transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Updates(fields)
	if res.Error != nil {
		ur.log.Error("Failed to update user", "userID", userID, "error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (ur *userRepo) TouchLogin(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	return transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		UpdateColumn("last_login_at", at).Error
}

// ----------------------------------------------------------------
// MISC - GET ME
// ----------------------------------------------------------------

func (ur *userRepo) GetMe(ctx context.Context, tx *gorm.DB) (*types.User, error) {
	ur.log.Info("Starting GetMe now...")

	// 1) Transaction
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	// 2) Grab request data
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		ur.log.Error("No request data in context, cannot get me!")
		return nil, fmt.Errorf("no request data found in context")
	}

	// 3) Query
	var user types.User
	if err := transaction.WithContext(ctx).
		Where("id = ?", rd.UserID).
		First(&user).Error; err != nil {
		ur.log.Error("Failed to fetch current user (GetMe)", "error", err, "userID", rd.UserID)
		return nil, err
	}
	ur.log.Info("Successfully fetched current user (GetMe)", "userID", rd.UserID)
	return &user, nil
}
