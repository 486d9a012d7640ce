package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/queue"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/service/playback"
)

// QueueHandler playback queue endpoints.
type QueueHandler struct {
	queueService playback.QueueService
}

// NewQueueHandler creates the queue handler.
func NewQueueHandler(queueService playback.QueueService) *QueueHandler {
	return &QueueHandler{queueService: queueService}
}

// Get
// @Summary Current playback queue
// @Description Songs that were deleted or hidden since the last change are dropped.
// @Tags queue
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=queue.State}
// @Router /api/queue [get]
func (h *QueueHandler) Get(c *gin.Context) {
	ctx, ac := caller(c)
	state, err := h.queueService.Get(ctx, ac)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, state)
}

// Apply
// @Summary Apply a queue action
// @Description type is one of set, add, play_next, remove, move, next, previous, jump, clear, toggle_shuffle, set_repeat.
// @Tags queue
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body queue.Action true "Action"
// @Success 200 {object} response.Response{data=queue.State}
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody "unknown song or queue item"
// @Router /api/queue/actions [post]
func (h *QueueHandler) Apply(c *gin.Context) {
	var action queue.Action
	if !bindJSON(c, &action) {
		return
	}
	ctx, ac := caller(c)
	state, err := h.queueService.Apply(ctx, ac, action)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, state)
}

// Clear
// @Summary Clear the playback queue
// @Tags queue
// @Security BearerAuth
// @Success 204
// @Router /api/queue [delete]
func (h *QueueHandler) Clear(c *gin.Context) {
	ctx, ac := caller(c)
	if err := h.queueService.Clear(ctx, ac); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
