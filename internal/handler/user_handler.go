package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/service/user"
)

// SetStatusRequest PUT /api/admin/users/:id/status.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active suspended banned"`
}

// SetRoleRequest PUT /api/admin/users/:id/role.
type SetRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=listener artist admin"`
}

// UserHandler profile, follow and admin user endpoints.
type UserHandler struct {
	userService user.UserService
}

// NewUserHandler creates the user handler.
func NewUserHandler(userService user.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile public profile
// @Summary Get user profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Response{data=view.Profile}
// @Failure 404 {object} response.ErrorBody
// @Router /api/users/{id} [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	profile, err := h.userService.GetProfile(ctx, ac, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

// UpdateProfile edits display name and bio
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body user.UpdateProfileRequest true "Profile"
// @Success 200 {object} response.Response{data=view.User}
// @Router /api/users/me [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req user.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	u, err := h.userService.UpdateProfile(ctx, ac, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// ChangePassword
// @Summary Change password
// @Description Signs out every other session
// @Tags users
// @Accept json
// @Security BearerAuth
// @Param body body user.ChangePasswordRequest true "Passwords"
// @Success 204
// @Failure 401 {object} response.ErrorBody "current password is wrong"
// @Router /api/users/me/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req user.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	if err := h.userService.ChangePassword(ctx, ac, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadAvatar
// @Summary Upload avatar
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image"
// @Success 200 {object} response.Response{data=view.User}
// @Failure 413 {object} response.ErrorBody
// @Failure 415 {object} response.ErrorBody
// @Router /api/users/me/avatar [post]
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	file, ok := formFile(c, "file", true)
	if !ok {
		return
	}
	ctx, ac := caller(c)
	u, err := h.userService.UpdateAvatar(ctx, ac, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// DeleteAccount
// @Summary Delete own account
// @Tags users
// @Security BearerAuth
// @Success 204
// @Router /api/users/me [delete]
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	ctx, ac := caller(c)
	if err := h.userService.DeleteAccount(ctx, ac); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Followers
// @Summary List followers
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.User}}
// @Router /api/users/{id}/followers [get]
func (h *UserHandler) Followers(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	page := pageOf(c)
	users, total, err := h.userService.Followers(ctx, ac, id, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, users, total, page)
}

// Following
// @Summary List followed users
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.User}}
// @Router /api/users/{id}/following [get]
func (h *UserHandler) Following(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	page := pageOf(c)
	users, total, err := h.userService.Following(ctx, ac, id, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, users, total, page)
}

// Follow
// @Summary Follow a user
// @Tags users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Failure 400 {object} response.ErrorBody "cannot follow yourself"
// @Router /api/users/{id}/follow [post]
func (h *UserHandler) Follow(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.userService.Follow(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Unfollow
// @Summary Unfollow a user
// @Tags users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Router /api/users/{id}/follow [delete]
func (h *UserHandler) Unfollow(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.userService.Unfollow(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AdminList
// @Summary List users (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param q query string false "Username, email or display name"
// @Param role query string false "Role"
// @Param status query string false "Status"
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.User}}
// @Router /api/admin/users [get]
func (h *UserHandler) AdminList(c *gin.Context) {
	ctx, ac := caller(c)
	page := pageOf(c)
	q := user.AdminListQuery{Q: c.Query("q"), Role: c.Query("role"), Status: c.Query("status")}
	users, total, err := h.userService.AdminList(ctx, ac, q, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, users, total, page)
}

// AdminSetStatus
// @Summary Change account status (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body SetStatusRequest true "Status"
// @Success 200 {object} response.Response{data=view.User}
// @Router /api/admin/users/{id}/status [put]
func (h *UserHandler) AdminSetStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req SetStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	u, err := h.userService.AdminSetStatus(ctx, ac, id, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// AdminSetRole
// @Summary Change role (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body SetRoleRequest true "Role"
// @Success 200 {object} response.Response{data=view.User}
// @Router /api/admin/users/{id}/role [put]
func (h *UserHandler) AdminSetRole(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req SetRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	u, err := h.userService.AdminSetRole(ctx, ac, id, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}
