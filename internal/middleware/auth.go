package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/auth"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/response"
	"gorm.io/gorm"
)

// Authenticator resolves bearer tokens into an access.Context. The user row is
// re-read on every request so role changes and suspensions apply immediately.
type Authenticator struct {
	tokens *auth.TokenManager
	db     *gorm.DB
}

// NewAuthenticator creates the auth middleware factory.
func NewAuthenticator(tokens *auth.TokenManager, db *gorm.DB) *Authenticator {
	return &Authenticator{tokens: tokens, db: db}
}

// Required rejects requests without a valid access token.
func (a *Authenticator) Required() gin.HandlerFunc {
	return a.required(false)
}

// RequiredAllowSuspended is Required for the routes a suspended account may
// still use to contest its suspension. Banned accounts stay locked out.
func (a *Authenticator) RequiredAllowSuspended() gin.HandlerFunc {
	return a.required(true)
}

func (a *Authenticator) required(allowSuspended bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Error(c, apperrors.New(apperrors.ErrUnauthorized, ""))
			return
		}
		ac, err := a.resolve(c, token, allowSuspended)
		if err != nil {
			response.Error(c, err)
			return
		}
		access.Set(c, ac)
		c.Next()
	}
}

// Optional identifies the caller when a token is present. An invalid token is
// still rejected so clients notice expiry.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			access.Set(c, access.Anonymous())
			c.Next()
			return
		}
		ac, err := a.resolve(c, token, false)
		if err != nil {
			response.Error(c, err)
			return
		}
		access.Set(c, ac)
		c.Next()
	}
}

func (a *Authenticator) resolve(c *gin.Context, token string, allowSuspended bool) (access.Context, error) {
	claims, err := a.tokens.ParseAccess(token)
	if err != nil {
		return access.Context{}, apperrors.New(apperrors.ErrTokenInvalid, "").WithOriginalError(err)
	}
	userID, _ := claims.UserID()

	var user database.User
	err = a.db.WithContext(c.Request.Context()).Select("id", "role", "status").First(&user, userID).Error
	if err != nil {
		if apperrors.Is(err, gorm.ErrRecordNotFound) {
			return access.Context{}, apperrors.New(apperrors.ErrTokenInvalid, "")
		}
		return access.Context{}, apperrors.FromDB(err, "user")
	}
	if !user.IsActive() && !(allowSuspended && user.Status == database.StatusSuspended) {
		return access.Context{}, apperrors.New(apperrors.ErrAccountInactive, "")
	}
	return access.ForUser(user.ID, user.Role), nil
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
