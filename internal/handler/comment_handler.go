package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/service/comment"
)

// CommentHandler song comment endpoints.
type CommentHandler struct {
	commentService comment.CommentService
}

// NewCommentHandler creates the comment handler.
func NewCommentHandler(commentService comment.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// ListForSong
// @Summary Top-level comments of a song
// @Tags comments
// @Produce json
// @Param id path int true "Song ID"
// @Success 200 {object} response.Response{data=response.PageData{list=[]comment.Comment}}
// @Router /api/songs/{id}/comments [get]
func (h *CommentHandler) ListForSong(c *gin.Context) {
	songID, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	page := pageOf(c)
	list, total, err := h.commentService.ListForSong(ctx, ac, songID, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, list, total, page)
}

// Replies
// @Summary Replies to a comment
// @Tags comments
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {object} response.Response{data=response.PageData{list=[]comment.Comment}}
// @Router /api/comments/{id}/replies [get]
func (h *CommentHandler) Replies(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	page := pageOf(c)
	list, total, err := h.commentService.Replies(ctx, ac, id, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, list, total, page)
}

// Create
// @Summary Comment on a song
// @Description parent_id must be a comment on the same song.
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Song ID"
// @Param body body comment.CreateCommentRequest true "Comment"
// @Success 201 {object} response.Response{data=comment.Comment}
// @Router /api/songs/{id}/comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	songID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req comment.CreateCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	cm, err := h.commentService.Create(ctx, ac, songID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cm)
}

// Update
// @Summary Edit own comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param body body comment.UpdateCommentRequest true "Body"
// @Success 200 {object} response.Response{data=comment.Comment}
// @Router /api/comments/{id} [put]
func (h *CommentHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req comment.UpdateCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	cm, err := h.commentService.Update(ctx, ac, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, cm)
}

// Delete
// @Summary Delete comment
// @Tags comments
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 204
// @Router /api/comments/{id} [delete]
func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.commentService.Delete(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
