package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	jwtauth "github.com/weiwangfds/melodia/internal/auth"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/service/view"
	"github.com/weiwangfds/melodia/internal/testutil"
	"gorm.io/gorm"
)

func setupAuth(t *testing.T) (AuthService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	tokens := jwtauth.NewTokenManager(jwtauth.Config{
		AccessSecret:  testutil.AccessSecret,
		RefreshSecret: testutil.RefreshSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "melodia",
	})
	return NewAuthService(db, tokens, view.NewPresenter(db, nil), 4), db
}

func register(t *testing.T, svc AuthService, username string) *Session {
	t.Helper()
	s, err := svc.Register(context.Background(), &RegisterRequest{
		Username: username,
		Email:    username + "@Example.com",
		Password: "s3cret-password",
	}, "go-test")
	require.NoError(t, err)
	return s
}

func TestRegister(t *testing.T) {
	svc, db := setupAuth(t)
	ctx := context.Background()

	s := register(t, svc, "alice")
	assert.Equal(t, "alice", s.User.Username)
	assert.Equal(t, "alice", s.User.DisplayName)
	assert.Equal(t, "alice@example.com", s.User.Email)
	assert.Equal(t, database.RoleListener, s.User.Role)
	assert.Equal(t, "Bearer", s.TokenType)
	assert.Equal(t, int64(900), s.ExpiresIn)
	assert.NotEmpty(t, s.AccessToken)

	var stored database.User
	require.NoError(t, db.First(&stored, s.User.ID).Error)
	assert.NotEqual(t, "s3cret-password", stored.PasswordHash)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := svc.Register(ctx, &RegisterRequest{Username: "ALICE", Email: "other@example.com", Password: "s3cret-password"}, "")
		assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err))
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, &RegisterRequest{Username: "alice2", Email: "ALICE@example.com", Password: "s3cret-password"}, "")
		assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err))
	})
}

func TestLogin(t *testing.T) {
	svc, db := setupAuth(t)
	ctx := context.Background()
	s := register(t, svc, "bob")

	t.Run("by username", func(t *testing.T) {
		out, err := svc.Login(ctx, &LoginRequest{Login: "Bob", Password: "s3cret-password"}, "")
		require.NoError(t, err)
		assert.Equal(t, s.User.ID, out.User.ID)
		assert.NotNil(t, out.User.LastLoginAt)
	})

	t.Run("by email", func(t *testing.T) {
		_, err := svc.Login(ctx, &LoginRequest{Login: "BOB@example.com", Password: "s3cret-password"}, "")
		require.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, &LoginRequest{Login: "bob", Password: "nope-nope"}, "")
		appErr, ok := apperrors.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrInvalidCredentials, appErr.Code)
	})

	t.Run("unknown user looks the same", func(t *testing.T) {
		_, err := svc.Login(ctx, &LoginRequest{Login: "carol", Password: "s3cret-password"}, "")
		appErr, ok := apperrors.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrInvalidCredentials, appErr.Code)
	})

	t.Run("suspended account", func(t *testing.T) {
		require.NoError(t, db.Model(&database.User{}).Where("id = ?", s.User.ID).
			Update("status", database.StatusSuspended).Error)
		_, err := svc.Login(ctx, &LoginRequest{Login: "bob", Password: "s3cret-password"}, "")
		appErr, ok := apperrors.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrAccountInactive, appErr.Code)
		assert.Equal(t, http.StatusForbidden, appErr.Status)
	})
}

func TestRefreshRotation(t *testing.T) {
	svc, _ := setupAuth(t)
	ctx := context.Background()
	s := register(t, svc, "dave")

	next, err := svc.Refresh(ctx, s.RefreshToken, "")
	require.NoError(t, err)
	assert.NotEqual(t, s.RefreshToken, next.RefreshToken)

	_, err = svc.Refresh(ctx, s.RefreshToken, "")
	assert.Equal(t, http.StatusUnauthorized, apperrors.StatusOf(err), "rotated token is single use")

	_, err = svc.Refresh(ctx, next.AccessToken, "")
	assert.Equal(t, http.StatusUnauthorized, apperrors.StatusOf(err), "access tokens cannot refresh")

	require.NoError(t, svc.Logout(ctx, next.RefreshToken))
	require.NoError(t, svc.Logout(ctx, next.RefreshToken))
	_, err = svc.Refresh(ctx, next.RefreshToken, "")
	assert.Equal(t, http.StatusUnauthorized, apperrors.StatusOf(err))
}

func TestMe(t *testing.T) {
	svc, db := setupAuth(t)
	s := register(t, svc, "erin")

	var u database.User
	require.NoError(t, db.First(&u, s.User.ID).Error)
	me, err := svc.Me(context.Background(), testutil.As(&u))
	require.NoError(t, err)
	assert.Equal(t, "erin@example.com", me.Email)
}
