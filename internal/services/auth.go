package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/requestdata"
	"github.com/devforge-org/devforge-backend/internal/session"
	"github.com/devforge-org/devforge-backend/internal/types"
	"github.com/devforge-org/devforge-backend/internal/utils"
)

type JWTClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
}

type LoginInput struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
}

type LoginResult struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	User        *types.User `json:"user"`
	Created     bool        `json:"created"`
}

type AuthService interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Logout(ctx context.Context) error
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetSessionTTL() time.Duration
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	prefRepo      repos.PreferenceRepo
	avatarService AvatarService
	sessions      session.Store
	jwtSecretKey  string
	sessionTTL    time.Duration
	now           func() time.Time
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	prefRepo repos.PreferenceRepo,
	avatarService AvatarService,
	sessions session.Store,
	jwtSecretKey string,
	sessionTTL time.Duration,
) AuthService {
	return &authService{
		db:            db,
		log:           log.With("service", "AuthService"),
		userRepo:      userRepo,
		prefRepo:      prefRepo,
		avatarService: avatarService,
		sessions:      sessions,
		jwtSecretKey:  jwtSecretKey,
		sessionTTL:    sessionTTL,
		now:           time.Now,
	}
}

func (as *authService) GetSessionTTL() time.Duration {
	return as.sessionTTL
}

// Login signs a demo user in. Unknown usernames are registered on the spot;
// a user with a stored password hash must present the matching password.
func (as *authService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	as.log.Info("Starting Login now...")

	//1) Normalize input
	username, err := utils.NormalizeUsername(in.Username)
	if err != nil {
		return nil, invalidInput("%s", err.Error())
	}
	email, err := utils.NormalizeEmail(in.Email)
	if err != nil {
		return nil, invalidInput("%s", err.Error())
	}

	//2) Find or register the user
	var user *types.User
	created := false
	txErr := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, fErr := as.userRepo.GetByUsername(ctx, tx, username)
		switch {
		case fErr == nil:
			user = found
			return as.checkExistingUser(ctx, tx, user, in.Password, email)
		case errors.Is(fErr, gorm.ErrRecordNotFound):
			user, fErr = as.registerDemoUser(ctx, tx, username, in.Password, email)
			created = fErr == nil
			return fErr
		default:
			as.log.Warn("Failed to look up user by username", "error", fErr)
			return fmt.Errorf("failed to look up user: %w", fErr)
		}
	})
	if txErr != nil {
		return nil, txErr
	}

	//3) Open a session and sign the token
	now := as.now()
	sess := &session.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(as.sessionTTL),
	}
	if err := as.sessions.Put(ctx, sess); err != nil {
		as.log.Warn("Failed to store session", "error", err)
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	token, err := as.generateAccessToken(user, sess)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	if err := as.userRepo.TouchLogin(ctx, nil, user.ID, now); err != nil {
		as.log.Debug("Failed to record last login", "error", err)
	}
	as.log.Info("Login done :)", "userID", user.ID, "created", created)
	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   int64(as.sessionTTL.Seconds()),
		User:        user,
		Created:     created,
	}, nil
}

func (as *authService) checkExistingUser(ctx context.Context, tx *gorm.DB, user *types.User, password string, email *string) error {
	fields := map[string]interface{}{}
	if user.PasswordHash != "" {
		if !utils.CheckPassword(user.PasswordHash, password) {
			as.log.Warn("Password mismatch on login", "userID", user.ID)
			return fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
		}
	} else if password != "" {
		// first password given for a passwordless demo user claims the account
		hash, err := utils.HashPassword(ctx, as.log, password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		fields["password_hash"] = hash
	}
	if email != nil && user.Email == nil {
		user.Email = email
		fields["email"] = *email
	}
	if len(fields) == 0 {
		return nil
	}
	return as.userRepo.UpdateFields(ctx, tx, user.ID, fields)
}

func (as *authService) registerDemoUser(ctx context.Context, tx *gorm.DB, username, password string, email *string) (*types.User, error) {
	as.log.Info("Registering demo user now...", "username", username)
	user := &types.User{
		ID:          uuid.New(),
		Username:    username,
		Email:       email,
		DisplayName: username,
	}
	if password != "" {
		hash, err := utils.HashPassword(ctx, as.log, password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if as.avatarService != nil {
		if err := as.avatarService.CreateAndUploadUserAvatar(ctx, user); err != nil {
			as.log.Warn("Failed to create avatar for demo user, continuing without one", "error", err)
		}
	}
	createdUsers, err := as.userRepo.Create(ctx, tx, []*types.User{user})
	if err != nil {
		as.log.Warn("Failed to create demo user", "error", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if _, err := as.prefRepo.GetOrCreate(ctx, tx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to create preferences: %w", err)
	}
	return createdUsers[0], nil
}

func (as *authService) Logout(ctx context.Context) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.SessionID == "" {
		return fmt.Errorf("%w: no session", ErrUnauthorized)
	}
	if err := as.sessions.Delete(ctx, rd.SessionID); err != nil {
		as.log.Warn("Failed to delete session", "error", err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	as.log.Info("Logout done :)", "userID", rd.UserID)
	return nil
}

func (as *authService) generateAccessToken(user *types.User, sess *session.Session) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        sess.ID,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
		Username: user.Username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

// SetContextFromToken validates the JWT, checks its session is still open and
// attaches the request data.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(as.now))
	if err != nil {
		return ctx, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("%w: invalid user id in token", ErrUnauthorized)
	}

	sess, err := as.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ctx, fmt.Errorf("%w: session expired or logged out", ErrUnauthorized)
		}
		return ctx, fmt.Errorf("failed to load session: %w", err)
	}
	if sess.UserID != userID {
		return ctx, fmt.Errorf("%w: session does not match token", ErrUnauthorized)
	}

	rd := &requestdata.RequestData{
		TokenString: tokenString,
		SessionID:   sess.ID,
		UserID:      userID,
		Username:    sess.Username,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}
