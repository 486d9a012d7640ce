package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/service/moderation"
)

// ModerationHandler reports and appeals.
type ModerationHandler struct {
	moderationService moderation.ModerationService
}

// NewModerationHandler creates the moderation handler.
func NewModerationHandler(moderationService moderation.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderationService: moderationService}
}

// CreateReport
// @Summary Report content or a user
// @Tags moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body moderation.CreateReportRequest true "Report"
// @Success 201 {object} response.Response{data=moderation.ReportItem}
// @Failure 400 {object} response.ErrorBody "reporting yourself"
// @Failure 404 {object} response.ErrorBody "target not found"
// @Failure 409 {object} response.ErrorBody "a pending report already exists"
// @Router /api/reports [post]
func (h *ModerationHandler) CreateReport(c *gin.Context) {
	var req moderation.CreateReportRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	item, err := h.moderationService.CreateReport(ctx, ac, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// MyReports
// @Summary Reports filed by the caller
// @Tags moderation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=response.PageData{list=[]moderation.ReportItem}}
// @Router /api/reports/mine [get]
func (h *ModerationHandler) MyReports(c *gin.Context) {
	ctx, ac := caller(c)
	page := pageOf(c)
	list, total, err := h.moderationService.MyReports(ctx, ac, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, list, total, page)
}

// AdminReports
// @Summary All reports (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param type query string false "song, comment, user or playlist"
// @Param status query string false "pending, resolved or dismissed"
// @Success 200 {object} response.Response{data=response.PageData{list=[]moderation.ReportItem}}
// @Router /api/admin/reports [get]
func (h *ModerationHandler) AdminReports(c *gin.Context) {
	ctx, _ := caller(c)
	page := pageOf(c)
	q := moderation.ReportQuery{Type: c.Query("type"), Status: c.Query("status")}
	list, total, err := h.moderationService.AdminReports(ctx, q, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, list, total, page)
}

// Resolve
// @Summary Resolve a report (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param type path string true "song, comment, user or playlist"
// @Param id path int true "Report ID"
// @Param body body moderation.ResolveRequest true "Action"
// @Success 200 {object} response.Response{data=moderation.ReportItem}
// @Failure 409 {object} response.ErrorBody "report is not pending"
// @Router /api/admin/reports/{type}/{id}/resolve [put]
func (h *ModerationHandler) Resolve(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req moderation.ResolveRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	item, err := h.moderationService.Resolve(ctx, ac, c.Param("type"), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

// Dismiss
// @Summary Dismiss a report (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param type path string true "song, comment, user or playlist"
// @Param id path int true "Report ID"
// @Param body body moderation.DismissRequest false "Note"
// @Success 200 {object} response.Response{data=moderation.ReportItem}
// @Router /api/admin/reports/{type}/{id}/dismiss [put]
func (h *ModerationHandler) Dismiss(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req moderation.DismissRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	item, err := h.moderationService.Dismiss(ctx, ac, c.Param("type"), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

// CreateAppeal
// @Summary Appeal a moderation decision
// @Description Suspended accounts may still appeal with a valid access token.
// @Tags moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body moderation.CreateAppealRequest true "Appeal"
// @Success 201 {object} response.Response{data=database.Appeal}
// @Failure 403 {object} response.ErrorBody "not the owner of the actioned content"
// @Failure 409 {object} response.ErrorBody "already appealed"
// @Router /api/appeals [post]
func (h *ModerationHandler) CreateAppeal(c *gin.Context) {
	var req moderation.CreateAppealRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	appeal, err := h.moderationService.CreateAppeal(ctx, ac, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appeal)
}

// MyAppeals
// @Summary Appeals filed by the caller
// @Tags moderation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=response.PageData{list=[]database.Appeal}}
// @Router /api/appeals/mine [get]
func (h *ModerationHandler) MyAppeals(c *gin.Context) {
	ctx, ac := caller(c)
	page := pageOf(c)
	list, total, err := h.moderationService.MyAppeals(ctx, ac, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, list, total, page)
}

// AdminAppeals
// @Summary All appeals (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Success 200 {object} response.Response{data=response.PageData{list=[]database.Appeal}}
// @Router /api/admin/appeals [get]
func (h *ModerationHandler) AdminAppeals(c *gin.Context) {
	ctx, _ := caller(c)
	page := pageOf(c)
	list, total, err := h.moderationService.AdminAppeals(ctx, c.Query("status"), page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, list, total, page)
}

// DecideAppeal
// @Summary Approve or reject an appeal (admin)
// @Description Approval reverses the moderation action.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appeal ID"
// @Param body body moderation.DecideAppealRequest true "Decision"
// @Success 200 {object} response.Response{data=database.Appeal}
// @Failure 409 {object} response.ErrorBody "appeal already decided"
// @Router /api/admin/appeals/{id}/decide [put]
func (h *ModerationHandler) DecideAppeal(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req moderation.DecideAppealRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	appeal, err := h.moderationService.DecideAppeal(ctx, ac, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, appeal)
}

// Summary
// @Summary Moderation report (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param days query int false "Window in days" default(30)
// @Success 200 {object} response.Response{data=moderation.Summary}
// @Router /api/admin/reports/moderation [get]
func (h *ModerationHandler) Summary(c *gin.Context) {
	days, ok := queryInt(c, "days", 30)
	if !ok {
		return
	}
	summary, err := h.moderationService.Summary(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}
