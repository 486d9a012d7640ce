package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/service/auth"
)

// AuthHandler registration, login and token endpoints.
type AuthHandler struct {
	authService auth.AuthService
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(authService auth.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates an account
// @Summary Register
// @Description Creates a listener account and returns a token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param body body auth.RegisterRequest true "Account"
// @Success 201 {object} response.Response{data=auth.Session}
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody "username or email taken"
// @Failure 429 {object} response.ErrorBody
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.authService.Register(c.Request.Context(), &req, c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Login exchanges credentials for tokens
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body auth.LoginRequest true "Credentials"
// @Success 200 {object} response.Response{data=auth.Session}
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody "account suspended or banned"
// @Failure 429 {object} response.ErrorBody
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.authService.Login(c.Request.Context(), &req, c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

// Refresh rotates the refresh token
// @Summary Refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param body body auth.RefreshRequest true "Refresh token"
// @Success 200 {object} response.Response{data=auth.Session}
// @Failure 401 {object} response.ErrorBody
// @Router /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken, c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

// Logout revokes a refresh token
// @Summary Logout
// @Tags auth
// @Accept json
// @Param body body auth.RefreshRequest true "Refresh token"
// @Success 204
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req auth.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Me returns the signed-in user
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=view.User}
// @Failure 401 {object} response.ErrorBody
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	ctx, ac := caller(c)
	user, err := h.authService.Me(ctx, ac)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}
