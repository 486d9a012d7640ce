// Package access carries the caller's identity through a request and
// answers the ownership questions repositories and services ask.
package access

import (
	"context"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/response"
)

// Role names, mirrored from the users table.
const (
	RoleListener = "listener"
	RoleArtist   = "artist"
	RoleAdmin    = "admin"
)

const ginKey = "access_context"

type ctxKey struct{}

// Context describes who is calling.
type Context struct {
	UserID        uint
	Role          string
	Authenticated bool
}

// Anonymous is the context of an unauthenticated request.
func Anonymous() Context { return Context{} }

// ForUser builds an authenticated context.
func ForUser(userID uint, role string) Context {
	return Context{UserID: userID, Role: role, Authenticated: true}
}

// IsAdmin reports whether the caller is an administrator.
func (c Context) IsAdmin() bool { return c.Authenticated && c.Role == RoleAdmin }

// IsOwner reports whether the caller is ownerID.
func (c Context) IsOwner(ownerID uint) bool { return c.Authenticated && c.UserID == ownerID }

// CanModify reports whether the caller owns the record or is an admin.
func (c Context) CanModify(ownerID uint) bool { return c.IsOwner(ownerID) || c.IsAdmin() }

// HasRole reports whether the caller has one of roles. Admins pass every check.
func (c Context) HasRole(roles ...string) bool {
	if !c.Authenticated {
		return false
	}
	if c.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// Set stores ac on the gin context and the request context.
func Set(c *gin.Context, ac Context) {
	c.Set(ginKey, ac)
	c.Request = c.Request.WithContext(WithContext(c.Request.Context(), ac))
}

// From returns the access context of the request, anonymous when none was set.
func From(c *gin.Context) Context {
	if v, ok := c.Get(ginKey); ok {
		if ac, ok := v.(Context); ok {
			return ac
		}
	}
	return Anonymous()
}

// WithContext attaches ac to ctx.
func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext returns the access context stored in ctx.
func FromContext(ctx context.Context) Context {
	if ac, ok := ctx.Value(ctxKey{}).(Context); ok {
		return ac
	}
	return Anonymous()
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !From(c).Authenticated {
			response.Error(c, apperrors.New(apperrors.ErrUnauthorized, ""))
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers without one of roles: 401 when anonymous, 403 otherwise.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ac := From(c)
		if !ac.Authenticated {
			response.Error(c, apperrors.New(apperrors.ErrUnauthorized, ""))
			return
		}
		if !ac.HasRole(roles...) {
			response.Error(c, apperrors.New(apperrors.ErrForbidden, ""))
			return
		}
		c.Next()
	}
}
