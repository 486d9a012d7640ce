package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/service/artist"
)

// VerifyRequest PUT /api/admin/artists/:id/verify.
type VerifyRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

// ArtistHandler artist profile endpoints.
type ArtistHandler struct {
	artistService artist.ArtistService
}

// NewArtistHandler creates the artist handler.
func NewArtistHandler(artistService artist.ArtistService) *ArtistHandler {
	return &ArtistHandler{artistService: artistService}
}

// Create
// @Summary Create own artist profile
// @Description Promotes a listener to the artist role. One profile per user.
// @Tags artists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body artist.CreateArtistRequest true "Profile"
// @Success 201 {object} response.Response{data=view.ArtistDetail}
// @Failure 409 {object} response.ErrorBody
// @Router /api/artists [post]
func (h *ArtistHandler) Create(c *gin.Context) {
	var req artist.CreateArtistRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	a, err := h.artistService.Create(ctx, ac, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, a)
}

// List
// @Summary List artists
// @Tags artists
// @Produce json
// @Param q query string false "Name search"
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.Artist}}
// @Router /api/artists [get]
func (h *ArtistHandler) List(c *gin.Context) {
	ctx, ac := caller(c)
	page := pageOf(c)
	artists, total, err := h.artistService.List(ctx, ac, c.Query("q"), page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, artists, total, page)
}

// Get
// @Summary Get artist
// @Tags artists
// @Produce json
// @Param id path int true "Artist ID"
// @Success 200 {object} response.Response{data=view.ArtistDetail}
// @Failure 404 {object} response.ErrorBody
// @Router /api/artists/{id} [get]
func (h *ArtistHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	a, err := h.artistService.Get(ctx, ac, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, a)
}

// Update
// @Summary Update artist
// @Tags artists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Artist ID"
// @Param body body artist.UpdateArtistRequest true "Changes"
// @Success 200 {object} response.Response{data=view.ArtistDetail}
// @Failure 403 {object} response.ErrorBody
// @Router /api/artists/{id} [put]
func (h *ArtistHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req artist.UpdateArtistRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	a, err := h.artistService.Update(ctx, ac, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, a)
}

// Delete
// @Summary Delete artist (admin)
// @Tags artists
// @Security BearerAuth
// @Param id path int true "Artist ID"
// @Success 204
// @Router /api/artists/{id} [delete]
func (h *ArtistHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.artistService.Delete(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadImage
// @Summary Upload artist image
// @Tags artists
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Artist ID"
// @Param file formData file true "Image"
// @Success 200 {object} response.Response{data=view.ArtistDetail}
// @Router /api/artists/{id}/image [post]
func (h *ArtistHandler) UploadImage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	file, ok := formFile(c, "file", true)
	if !ok {
		return
	}
	ctx, ac := caller(c)
	a, err := h.artistService.UpdateImage(ctx, ac, id, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, a)
}

// Verify
// @Summary Set verified badge (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Artist ID"
// @Param body body VerifyRequest true "Verified"
// @Success 200 {object} response.Response{data=view.ArtistDetail}
// @Router /api/admin/artists/{id}/verify [put]
func (h *ArtistHandler) Verify(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req VerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	a, err := h.artistService.SetVerified(ctx, ac, id, *req.Verified)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, a)
}

// Songs
// @Summary Songs credited to an artist
// @Tags artists
// @Produce json
// @Param id path int true "Artist ID"
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.Song}}
// @Router /api/artists/{id}/songs [get]
func (h *ArtistHandler) Songs(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	page := pageOf(c)
	songs, total, err := h.artistService.Songs(ctx, ac, id, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, songs, total, page)
}

// Albums
// @Summary Albums of an artist
// @Tags artists
// @Produce json
// @Param id path int true "Artist ID"
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.Album}}
// @Router /api/artists/{id}/albums [get]
func (h *ArtistHandler) Albums(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	page := pageOf(c)
	albums, total, err := h.artistService.Albums(ctx, ac, id, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, albums, total, page)
}

// Follow
// @Summary Follow an artist
// @Tags artists
// @Security BearerAuth
// @Param id path int true "Artist ID"
// @Success 204
// @Router /api/artists/{id}/follow [post]
func (h *ArtistHandler) Follow(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.artistService.Follow(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Unfollow
// @Summary Unfollow an artist
// @Tags artists
// @Security BearerAuth
// @Param id path int true "Artist ID"
// @Success 204
// @Router /api/artists/{id}/follow [delete]
func (h *ArtistHandler) Unfollow(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.artistService.Unfollow(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Followers
// @Summary Followers of an artist
// @Tags artists
// @Produce json
// @Param id path int true "Artist ID"
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.User}}
// @Router /api/artists/{id}/followers [get]
func (h *ArtistHandler) Followers(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	page := pageOf(c)
	users, total, err := h.artistService.Followers(ctx, ac, id, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, users, total, page)
}
