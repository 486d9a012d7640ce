package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/service/analytics"
)

// AnalyticsHandler platform and artist reports.
type AnalyticsHandler struct {
	analyticsService analytics.AnalyticsService
}

// NewAnalyticsHandler creates the analytics handler.
func NewAnalyticsHandler(analyticsService analytics.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// Overview
// @Summary Platform overview (admin)
// @Description Totals plus current versus previous window trends.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param days query int false "Window in days" default(30)
// @Success 200 {object} response.Response{data=analytics.Overview}
// @Router /api/admin/analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	days, ok := queryInt(c, "days", 30)
	if !ok {
		return
	}
	report, err := h.analyticsService.Overview(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// Artist
// @Summary Artist analytics
// @Tags artists
// @Produce json
// @Security BearerAuth
// @Param id path int true "Artist ID"
// @Param days query int false "Window in days" default(30)
// @Success 200 {object} response.Response{data=analytics.ArtistReport}
// @Failure 403 {object} response.ErrorBody
// @Router /api/artists/{id}/analytics [get]
func (h *AnalyticsHandler) Artist(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	days, ok := queryInt(c, "days", 30)
	if !ok {
		return
	}
	ctx, ac := caller(c)
	report, err := h.analyticsService.Artist(ctx, ac, id, days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}
