package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/service/history"
)

// HistoryHandler listening history endpoints.
type HistoryHandler struct {
	historyService history.HistoryService
}

// NewHistoryHandler creates the history handler.
func NewHistoryHandler(historyService history.HistoryService) *HistoryHandler {
	return &HistoryHandler{historyService: historyService}
}

// List
// @Summary Listening history
// @Tags history
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=response.PageData{list=[]history.Entry}}
// @Router /api/history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	ctx, ac := caller(c)
	page := pageOf(c)
	list, total, err := h.historyService.List(ctx, ac, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, list, total, page)
}

// Recent
// @Summary Recently played songs
// @Tags history
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max songs" default(20)
// @Success 200 {object} response.Response{data=[]history.RecentSong}
// @Router /api/history/recent [get]
func (h *HistoryHandler) Recent(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return
	}
	ctx, ac := caller(c)
	songs, err := h.historyService.Recent(ctx, ac, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, songs)
}

// Clear
// @Summary Clear listening history
// @Tags history
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/history [delete]
func (h *HistoryHandler) Clear(c *gin.Context) {
	ctx, ac := caller(c)
	n, err := h.historyService.Clear(ctx, ac)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": n})
}
