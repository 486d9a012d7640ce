package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/service/catalog"
)

// AlbumHandler album endpoints.
type AlbumHandler struct {
	albumService catalog.AlbumService
}

// NewAlbumHandler creates the album handler.
func NewAlbumHandler(albumService catalog.AlbumService) *AlbumHandler {
	return &AlbumHandler{albumService: albumService}
}

// Create
// @Summary Create album
// @Tags albums
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body catalog.CreateAlbumRequest true "Album"
// @Success 201 {object} response.Response{data=view.AlbumDetail}
// @Router /api/albums [post]
func (h *AlbumHandler) Create(c *gin.Context) {
	var req catalog.CreateAlbumRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	album, err := h.albumService.Create(ctx, ac, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, album)
}

// List
// @Summary List albums
// @Tags albums
// @Produce json
// @Param q query string false "Title search"
// @Param artist_id query int false "Artist ID"
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.Album}}
// @Router /api/albums [get]
func (h *AlbumHandler) List(c *gin.Context) {
	artistID, ok := queryUint(c, "artist_id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	page := pageOf(c)
	albums, total, err := h.albumService.List(ctx, ac, catalog.AlbumQuery{Q: c.Query("q"), ArtistID: artistID}, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, albums, total, page)
}

// Get
// @Summary Get album with tracks
// @Tags albums
// @Produce json
// @Param id path int true "Album ID"
// @Success 200 {object} response.Response{data=view.AlbumDetail}
// @Router /api/albums/{id} [get]
func (h *AlbumHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	album, err := h.albumService.Get(ctx, ac, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, album)
}

// Update
// @Summary Update album
// @Tags albums
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Album ID"
// @Param body body catalog.UpdateAlbumRequest true "Changes"
// @Success 200 {object} response.Response{data=view.AlbumDetail}
// @Router /api/albums/{id} [put]
func (h *AlbumHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req catalog.UpdateAlbumRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	album, err := h.albumService.Update(ctx, ac, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, album)
}

// Delete
// @Summary Delete album
// @Description Tracks stay in the catalogue.
// @Tags albums
// @Security BearerAuth
// @Param id path int true "Album ID"
// @Success 204
// @Router /api/albums/{id} [delete]
func (h *AlbumHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.albumService.Delete(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadCover
// @Summary Replace album cover
// @Tags albums
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Album ID"
// @Param file formData file true "Image"
// @Success 200 {object} response.Response{data=view.AlbumDetail}
// @Router /api/albums/{id}/cover [post]
func (h *AlbumHandler) UploadCover(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	file, ok := formFile(c, "file", true)
	if !ok {
		return
	}
	ctx, ac := caller(c)
	album, err := h.albumService.UpdateCover(ctx, ac, id, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, album)
}

// AddTrack
// @Summary Add a track
// @Tags albums
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Album ID"
// @Param body body catalog.AddTrackRequest true "Track"
// @Success 200 {object} response.Response{data=view.AlbumDetail}
// @Failure 400 {object} response.ErrorBody "song belongs to another artist"
// @Router /api/albums/{id}/songs [post]
func (h *AlbumHandler) AddTrack(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req catalog.AddTrackRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	album, err := h.albumService.AddTrack(ctx, ac, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, album)
}

// RemoveTrack
// @Summary Remove a track
// @Tags albums
// @Security BearerAuth
// @Param id path int true "Album ID"
// @Param songId path int true "Song ID"
// @Success 204
// @Router /api/albums/{id}/songs/{songId} [delete]
func (h *AlbumHandler) RemoveTrack(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	songID, ok := idParam(c, "songId")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.albumService.RemoveTrack(ctx, ac, id, songID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Like
// @Summary Like an album
// @Tags albums
// @Security BearerAuth
// @Param id path int true "Album ID"
// @Success 204
// @Router /api/albums/{id}/like [post]
func (h *AlbumHandler) Like(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.albumService.Like(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Unlike
// @Summary Remove an album like
// @Tags albums
// @Security BearerAuth
// @Param id path int true "Album ID"
// @Success 204
// @Router /api/albums/{id}/like [delete]
func (h *AlbumHandler) Unlike(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.albumService.Unlike(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Liked
// @Summary Albums the caller liked
// @Tags library
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.Album}}
// @Router /api/me/likes/albums [get]
func (h *AlbumHandler) Liked(c *gin.Context) {
	ctx, ac := caller(c)
	page := pageOf(c)
	albums, total, err := h.albumService.Liked(ctx, ac, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, albums, total, page)
}
