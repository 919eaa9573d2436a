package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/bucket"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/normalization"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/types"
	"github.com/devforge-org/devforge-backend/internal/utils"
)

const maxDisplayNameRunes = 80

type UpdateMeInput struct {
	DisplayName *string `json:"displayName"`
	Email       *string `json:"email"`
}

// PreferencesInput is a partial update; nil fields stay as they are. An empty
// DefaultLLMConfigID or GitHubToken clears the value.
type PreferencesInput struct {
	Theme                  *string                `json:"theme"`
	DefaultLLMConfigID     *string                `json:"defaultLLMConfigID"`
	DefaultSearchEngineIDs *[]uuid.UUID           `json:"defaultSearchEngineIDs"`
	WebSearchEnabled       *bool                  `json:"webSearchEnabled"`
	GitHubToken            *string                `json:"githubToken"`
	Extra                  map[string]interface{} `json:"extra"`
}

type MeService interface {
	GetMe(ctx context.Context) (*types.User, error)
	UpdateMe(ctx context.Context, in UpdateMeInput) (*types.User, error)
	OpenAvatar(ctx context.Context, userID uuid.UUID) (io.ReadCloser, *bucket.ObjectInfo, error)
	GetPreferences(ctx context.Context) (*types.UserPreference, error)
	UpdatePreferences(ctx context.Context, in PreferencesInput) (*types.UserPreference, error)
}

type meService struct {
	db               *gorm.DB
	log              *logger.Logger
	userRepo         repos.UserRepo
	prefRepo         repos.PreferenceRepo
	llmConfigRepo    repos.LLMConfigRepo
	searchEngineRepo repos.SearchEngineRepo
	avatarService    AvatarService
	bucket           bucket.Bucket
}

func NewMeService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	prefRepo repos.PreferenceRepo,
	llmConfigRepo repos.LLMConfigRepo,
	searchEngineRepo repos.SearchEngineRepo,
	avatarService AvatarService,
	b bucket.Bucket,
) MeService {
	return &meService{
		db:               db,
		log:              log.With("service", "MeService"),
		userRepo:         userRepo,
		prefRepo:         prefRepo,
		llmConfigRepo:    llmConfigRepo,
		searchEngineRepo: searchEngineRepo,
		avatarService:    avatarService,
		bucket:           b,
	}
}

func (ms *meService) GetMe(ctx context.Context) (*types.User, error) {
	user, err := ms.userRepo.GetMe(ctx, nil)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return user, nil
}

func (ms *meService) UpdateMe(ctx context.Context, in UpdateMeInput) (*types.User, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	user, err := ms.GetMe(ctx)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	regenerateAvatar := false
	if in.DisplayName != nil {
		name := normalization.CollapseWhitespace(*in.DisplayName)
		if name == "" || utf8.RuneCountInString(name) > maxDisplayNameRunes {
			return nil, invalidInput("displayName must be 1-%d characters", maxDisplayNameRunes)
		}
		if name != user.DisplayName {
			fields["display_name"] = name
			user.DisplayName = name
			regenerateAvatar = true
		}
	}
	if in.Email != nil {
		email, err := utils.NormalizeEmail(in.Email)
		if err != nil {
			return nil, invalidInput("%s", err.Error())
		}
		fields["email"] = email
		user.Email = email
	}
	if regenerateAvatar && ms.avatarService != nil {
		if err := ms.avatarService.CreateAndUploadUserAvatar(ctx, user); err != nil {
			ms.log.Warn("Failed to regenerate avatar", "error", err)
		} else {
			fields["avatar_bucket_key"] = user.AvatarBucketKey
			fields["avatar_url"] = user.AvatarURL
		}
	}
	if len(fields) == 0 {
		return user, nil
	}
	if err := ms.userRepo.UpdateFields(ctx, nil, userID, fields); err != nil {
		return nil, notFoundOr(err, "user")
	}
	return user, nil
}

// OpenAvatar streams the stored avatar. Users without one (or whose object
// went missing) get a freshly drawn image.
func (ms *meService) OpenAvatar(ctx context.Context, userID uuid.UUID) (io.ReadCloser, *bucket.ObjectInfo, error) {
	users, err := ms.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if len(users) == 0 {
		return nil, nil, fmt.Errorf("%w: user", ErrNotFound)
	}
	user := users[0]
	if user.AvatarBucketKey != "" {
		rc, info, err := ms.bucket.Open(ctx, user.AvatarBucketKey)
		if err == nil {
			return rc, info, nil
		}
		if !errors.Is(err, bucket.ErrObjectNotFound) {
			return nil, nil, fmt.Errorf("failed to open avatar: %w", err)
		}
	}
	if ms.avatarService == nil {
		return nil, nil, fmt.Errorf("%w: avatar", ErrNotFound)
	}
	png, err := ms.avatarService.GenerateUserAvatar(user)
	if err != nil {
		return nil, nil, err
	}
	return io.NopCloser(bytes.NewReader(png)), &bucket.ObjectInfo{Key: AvatarKey(user), Size: int64(len(png)), ContentType: "image/png"}, nil
}

func (ms *meService) GetPreferences(ctx context.Context) (*types.UserPreference, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	pref, err := ms.prefRepo.GetOrCreate(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return pref, nil
}

func (ms *meService) UpdatePreferences(ctx context.Context, in PreferencesInput) (*types.UserPreference, error) {
	ms.log.Info("Starting UpdatePreferences now...")
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var pref *types.UserPreference
	txErr := ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := ms.prefRepo.GetOrCreate(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("failed to load preferences: %w", err)
		}
		pref = p

		if in.Theme != nil {
			switch *in.Theme {
			case types.ThemeLight, types.ThemeDark, types.ThemeSystem:
				pref.Theme = *in.Theme
			default:
				return invalidInput("theme must be light, dark or system")
			}
		}
		if in.DefaultLLMConfigID != nil {
			// The preference mirrors the is_default flag, so both move together.
			if *in.DefaultLLMConfigID == "" {
				if err := ms.llmConfigRepo.ClearDefault(ctx, tx, userID); err != nil {
					return err
				}
				pref.DefaultLLMConfigID = nil
			} else {
				id, err := uuid.Parse(*in.DefaultLLMConfigID)
				if err != nil {
					return invalidInput("defaultLLMConfigID is not a valid id")
				}
				if err := ms.llmConfigRepo.SetDefault(ctx, tx, userID, id); err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return invalidInput("unknown LLM configuration %s", id)
					}
					return err
				}
				pref.DefaultLLMConfigID = &id
			}
		}
		if in.DefaultSearchEngineIDs != nil {
			ids := dedupeIDs(*in.DefaultSearchEngineIDs)
			if len(ids) > 0 {
				found, err := ms.searchEngineRepo.GetByIDsForUser(ctx, tx, userID, ids)
				if err != nil {
					return err
				}
				if len(found) != len(ids) {
					return invalidInput("unknown search engine id in defaultSearchEngineIDs")
				}
			}
			pref.DefaultSearchEngineIDs = datatypes.NewJSONType(ids)
		}
		if in.WebSearchEnabled != nil {
			pref.WebSearchEnabled = *in.WebSearchEnabled
		}
		if in.GitHubToken != nil {
			pref.GitHubToken = normalization.CollapseWhitespace(*in.GitHubToken)
		}
		if in.Extra != nil {
			pref.Extra = datatypes.JSONMap(in.Extra)
		}
		return ms.prefRepo.Save(ctx, tx, pref)
	})
	if txErr != nil {
		return nil, txErr
	}
	ms.log.Info("Preferences updated :)", "userID", userID)
	return pref, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
