package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/service/playlist"
)

// PlaylistHandler playlist endpoints.
type PlaylistHandler struct {
	playlistService playlist.PlaylistService
}

// NewPlaylistHandler creates the playlist handler.
func NewPlaylistHandler(playlistService playlist.PlaylistService) *PlaylistHandler {
	return &PlaylistHandler{playlistService: playlistService}
}

// Create
// @Summary Create playlist
// @Description Playlists are public unless is_public is false.
// @Tags playlists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body playlist.CreatePlaylistRequest true "Playlist"
// @Success 201 {object} response.Response{data=view.PlaylistDetail}
// @Router /api/playlists [post]
func (h *PlaylistHandler) Create(c *gin.Context) {
	var req playlist.CreatePlaylistRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	p, err := h.playlistService.Create(ctx, ac, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// List
// @Summary List playlists
// @Tags playlists
// @Produce json
// @Param q query string false "Name search"
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.Playlist}}
// @Router /api/playlists [get]
func (h *PlaylistHandler) List(c *gin.Context) {
	ctx, ac := caller(c)
	page := pageOf(c)
	list, total, err := h.playlistService.List(ctx, ac, c.Query("q"), page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, list, total, page)
}

// Mine
// @Summary Own playlists
// @Tags playlists
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.Playlist}}
// @Router /api/playlists/mine [get]
func (h *PlaylistHandler) Mine(c *gin.Context) {
	ctx, ac := caller(c)
	page := pageOf(c)
	list, total, err := h.playlistService.Mine(ctx, ac, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, list, total, page)
}

// Get
// @Summary Get playlist with songs
// @Tags playlists
// @Produce json
// @Param id path int true "Playlist ID"
// @Success 200 {object} response.Response{data=view.PlaylistDetail}
// @Failure 404 {object} response.ErrorBody "missing, or private to another user"
// @Router /api/playlists/{id} [get]
func (h *PlaylistHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	p, err := h.playlistService.Get(ctx, ac, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Update
// @Summary Update playlist
// @Tags playlists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Playlist ID"
// @Param body body playlist.UpdatePlaylistRequest true "Changes"
// @Success 200 {object} response.Response{data=view.PlaylistDetail}
// @Router /api/playlists/{id} [put]
func (h *PlaylistHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req playlist.UpdatePlaylistRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	p, err := h.playlistService.Update(ctx, ac, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Delete
// @Summary Delete playlist
// @Tags playlists
// @Security BearerAuth
// @Param id path int true "Playlist ID"
// @Success 204
// @Router /api/playlists/{id} [delete]
func (h *PlaylistHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.playlistService.Delete(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadCover
// @Summary Replace playlist cover
// @Tags playlists
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Playlist ID"
// @Param file formData file true "Image"
// @Success 200 {object} response.Response{data=view.PlaylistDetail}
// @Router /api/playlists/{id}/cover [post]
func (h *PlaylistHandler) UploadCover(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	file, ok := formFile(c, "file", true)
	if !ok {
		return
	}
	ctx, ac := caller(c)
	p, err := h.playlistService.UpdateCover(ctx, ac, id, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// AddSong
// @Summary Append a song
// @Tags playlists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Playlist ID"
// @Param body body playlist.AddSongRequest true "Song"
// @Success 200 {object} response.Response{data=view.PlaylistDetail}
// @Failure 409 {object} response.ErrorBody "song already on the playlist"
// @Router /api/playlists/{id}/songs [post]
func (h *PlaylistHandler) AddSong(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req playlist.AddSongRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	p, err := h.playlistService.AddSong(ctx, ac, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// RemoveSong
// @Summary Remove a song
// @Tags playlists
// @Security BearerAuth
// @Param id path int true "Playlist ID"
// @Param songId path int true "Song ID"
// @Success 204
// @Router /api/playlists/{id}/songs/{songId} [delete]
func (h *PlaylistHandler) RemoveSong(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	songID, ok := idParam(c, "songId")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.playlistService.RemoveSong(ctx, ac, id, songID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reorder
// @Summary Reorder songs
// @Tags playlists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Playlist ID"
// @Param body body playlist.ReorderRequest true "All song IDs in the new order"
// @Success 200 {object} response.Response{data=view.PlaylistDetail}
// @Failure 400 {object} response.ErrorBody "not a permutation of the playlist"
// @Router /api/playlists/{id}/songs/order [put]
func (h *PlaylistHandler) Reorder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req playlist.ReorderRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	p, err := h.playlistService.Reorder(ctx, ac, id, req.SongIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Like
// @Summary Like a playlist
// @Tags playlists
// @Security BearerAuth
// @Param id path int true "Playlist ID"
// @Success 204
// @Router /api/playlists/{id}/like [post]
func (h *PlaylistHandler) Like(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.playlistService.Like(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Unlike
// @Summary Remove a playlist like
// @Tags playlists
// @Security BearerAuth
// @Param id path int true "Playlist ID"
// @Success 204
// @Router /api/playlists/{id}/like [delete]
func (h *PlaylistHandler) Unlike(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.playlistService.Unlike(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Liked
// @Summary Playlists the caller liked
// @Tags library
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.Playlist}}
// @Router /api/me/likes/playlists [get]
func (h *PlaylistHandler) Liked(c *gin.Context) {
	ctx, ac := caller(c)
	page := pageOf(c)
	list, total, err := h.playlistService.Liked(ctx, ac, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, list, total, page)
}
