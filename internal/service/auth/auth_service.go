// Package auth implements registration, login and refresh-token rotation.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	jwtauth "github.com/weiwangfds/melodia/internal/auth"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/service/view"
	"gorm.io/gorm"
)

// RegisterRequest POST /api/auth/register.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50,alphanum"`
	Email       string `json:"email" binding:"required,email,max=255"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	DisplayName string `json:"display_name" binding:"omitempty,max=100"`
}

// LoginRequest POST /api/auth/login. Login is a username or an email.
type LoginRequest struct {
	Login    string `json:"login" binding:"required,max=255"`
	Password string `json:"password" binding:"required,max=72"`
}

// RefreshRequest carries a refresh token for /refresh and /logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Session is returned by register, login and refresh.
type Session struct {
	User         view.User `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
}

// AuthService account session operations.
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest, userAgent string) (*Session, error)
	Login(ctx context.Context, req *LoginRequest, userAgent string) (*Session, error)
	// Refresh rotates the refresh token: the presented one is revoked and a new
	// pair is issued. Presenting a revoked token fails.
	Refresh(ctx context.Context, refreshToken, userAgent string) (*Session, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, ac access.Context) (*view.User, error)
}

type authService struct {
	db         *gorm.DB
	tokens     *jwtauth.TokenManager
	presenter  *view.Presenter
	bcryptCost int
	now        func() time.Time
}

// NewAuthService creates the auth service.
func NewAuthService(db *gorm.DB, tokens *jwtauth.TokenManager, presenter *view.Presenter, bcryptCost int) AuthService {
	return &authService{db: db, tokens: tokens, presenter: presenter, bcryptCost: bcryptCost, now: time.Now}
}

func invalidCredentials() error {
	return apperrors.New(apperrors.ErrInvalidCredentials, "")
}

func (s *authService) Register(ctx context.Context, req *RegisterRequest, userAgent string) (*Session, error) {
	if err := jwtauth.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.Validation(map[string]string{"password": err.Error()})
	}
	hash, err := jwtauth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := database.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         database.RoleListener,
		Status:       database.StatusActive,
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}

	var session *Session
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&database.User{}).
			Where("LOWER(username) = ? OR email = ?", strings.ToLower(user.Username), user.Email).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return apperrors.Conflict("username or email already registered")
		}
		if err := tx.Create(&user).Error; err != nil {
			return apperrors.FromDB(err, "user")
		}
		var err error
		session, err = s.issue(tx, &user, userAgent)
		return err
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "user")
	}

	logger.WithField("user_id", user.ID).Info("[auth] user registered")
	return session, nil
}

func (s *authService) Login(ctx context.Context, req *LoginRequest, userAgent string) (*Session, error) {
	login := strings.TrimSpace(req.Login)
	var user database.User
	err := s.db.WithContext(ctx).
		Where("LOWER(username) = ? OR email = ?", strings.ToLower(login), strings.ToLower(login)).
		First(&user).Error
	if err != nil {
		if apperrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCredentials()
		}
		return nil, apperrors.FromDB(err, "user")
	}
	if !jwtauth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, invalidCredentials()
	}
	if !user.IsActive() {
		return nil, apperrors.New(apperrors.ErrAccountInactive, "")
	}

	var session *Session
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now().UTC()
		if err := tx.Model(&database.User{}).Where("id = ?", user.ID).Update("last_login_at", now).Error; err != nil {
			return err
		}
		user.LastLoginAt = &now
		var err error
		session, err = s.issue(tx, &user, userAgent)
		return err
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "user")
	}
	return session, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken, userAgent string) (*Session, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrTokenInvalid, "").WithOriginalError(err)
	}

	var session *Session
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now().UTC()
		// Conditional update so two concurrent refreshes cannot both win.
		res := tx.Model(&database.RefreshToken{}).
			Where("token_id = ? AND revoked_at IS NULL AND expires_at > ?", claims.ID, now).
			Update("revoked_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.New(apperrors.ErrTokenInvalid, "refresh token has been revoked")
		}

		userID, _ := claims.UserID()
		var user database.User
		if err := tx.First(&user, userID).Error; err != nil {
			if apperrors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.ErrTokenInvalid, "")
			}
			return err
		}
		if !user.IsActive() {
			return apperrors.New(apperrors.ErrAccountInactive, "")
		}
		var err error
		session, err = s.issue(tx, &user, userAgent)
		return err
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "refresh token")
	}
	return session, nil
}

// Logout revokes the token. An already revoked or unknown token is not an error.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return apperrors.New(apperrors.ErrTokenInvalid, "").WithOriginalError(err)
	}
	err = s.db.WithContext(ctx).Model(&database.RefreshToken{}).
		Where("token_id = ? AND revoked_at IS NULL", claims.ID).
		Update("revoked_at", s.now().UTC()).Error
	return apperrors.FromDB(err, "refresh token")
}

func (s *authService) Me(ctx context.Context, ac access.Context) (*view.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, ac.UserID).Error; err != nil {
		return nil, apperrors.FromDB(err, "user")
	}
	v := s.presenter.User(ctx, ac, &user)
	return &v, nil
}

// issue signs a token pair and records the refresh token inside tx.
func (s *authService) issue(tx *gorm.DB, user *database.User, userAgent string) (*Session, error) {
	accessTok, err := s.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refreshTok, err := s.tokens.IssueRefresh(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if len(userAgent) > 255 {
		userAgent = userAgent[:255]
	}
	row := database.RefreshToken{
		UserID:    user.ID,
		TokenID:   refreshTok.ID,
		ExpiresAt: refreshTok.ExpiresAt.UTC(),
		UserAgent: userAgent,
	}
	if err := tx.Omit("User").Create(&row).Error; err != nil {
		return nil, err
	}

	ctx := tx.Statement.Context
	return &Session{
		User:         s.presenter.User(ctx, access.ForUser(user.ID, user.Role), user),
		AccessToken:  accessTok.Token,
		RefreshToken: refreshTok.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}
