package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/service/notification"
)

// NotificationHandler inbox endpoints.
type NotificationHandler struct {
	notificationService notification.NotificationService
}

// NewNotificationHandler creates the notification handler.
func NewNotificationHandler(notificationService notification.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread"
// @Success 200 {object} response.Response{data=response.PageData{list=[]database.Notification}}
// @Router /api/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	ctx, ac := caller(c)
	page := pageOf(c)
	unread := c.Query("unread") == "true" || c.Query("unread") == "1"
	list, total, err := h.notificationService.List(ctx, ac.UserID, unread, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, list, total, page)
}

// UnreadCount
// @Summary Unread notification count
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	ctx, ac := caller(c)
	n, err := h.notificationService.UnreadCount(ctx, ac.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"unread": n})
}

// MarkRead
// @Summary Mark one notification read
// @Tags notifications
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 204
// @Failure 404 {object} response.ErrorBody
// @Router /api/notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.notificationService.MarkRead(ctx, ac.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead
// @Summary Mark every notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/notifications/read-all [put]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	ctx, ac := caller(c)
	n, err := h.notificationService.MarkAllRead(ctx, ac.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}

// Delete
// @Summary Delete a notification
// @Tags notifications
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 204
// @Router /api/notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.notificationService.Delete(ctx, ac.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
