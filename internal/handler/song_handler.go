package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/service/catalog"
)

// SongHandler song catalogue, streaming and play endpoints.
type SongHandler struct {
	songService catalog.SongService
}

// NewSongHandler creates the song handler.
func NewSongHandler(songService catalog.SongService) *SongHandler {
	return &SongHandler{songService: songService}
}

// Upload
// @Summary Upload a song
// @Description Audio tags fill a missing title, genre and duration. Followers of the artist are notified.
// @Tags songs
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param audio formData file true "mp3, flac, wav, ogg or m4a"
// @Param cover formData file false "Cover image"
// @Param title formData string false "Title"
// @Param genre formData string false "Genre"
// @Param featured_artist_ids formData []int false "Featured artist IDs"
// @Param release_date formData string false "YYYY-MM-DD"
// @Param lyrics formData string false "Lyrics"
// @Success 201 {object} response.Response{data=view.Song}
// @Failure 403 {object} response.ErrorBody "caller is not an artist"
// @Failure 413 {object} response.ErrorBody
// @Failure 415 {object} response.ErrorBody
// @Router /api/songs [post]
func (h *SongHandler) Upload(c *gin.Context) {
	var req catalog.UploadSongRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BindError(c, err)
		return
	}
	audio, ok := formFile(c, "audio", true)
	if !ok {
		return
	}
	cover, ok := formFile(c, "cover", false)
	if !ok {
		return
	}
	ctx, ac := caller(c)
	song, err := h.songService.Upload(ctx, ac, &req, audio, cover)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, song)
}

// List
// @Summary List songs
// @Tags songs
// @Produce json
// @Param q query string false "Title search"
// @Param genre query string false "Genre"
// @Param artist_id query int false "Artist ID"
// @Param sort query string false "newest, popular or title"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.Song}}
// @Router /api/songs [get]
func (h *SongHandler) List(c *gin.Context) {
	artistID, ok := queryUint(c, "artist_id")
	if !ok {
		return
	}
	q := catalog.SongQuery{
		Q:        c.Query("q"),
		Genre:    c.Query("genre"),
		ArtistID: artistID,
		Sort:     c.Query("sort"),
	}
	ctx, ac := caller(c)
	page := pageOf(c)
	songs, total, err := h.songService.List(ctx, ac, q, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, songs, total, page)
}

// Get
// @Summary Get song
// @Tags songs
// @Produce json
// @Param id path int true "Song ID"
// @Success 200 {object} response.Response{data=view.Song}
// @Failure 404 {object} response.ErrorBody
// @Router /api/songs/{id} [get]
func (h *SongHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	song, err := h.songService.Get(ctx, ac, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, song)
}

// Update
// @Summary Update song
// @Tags songs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Song ID"
// @Param body body catalog.UpdateSongRequest true "Changes"
// @Success 200 {object} response.Response{data=view.Song}
// @Router /api/songs/{id} [put]
func (h *SongHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req catalog.UpdateSongRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	song, err := h.songService.Update(ctx, ac, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, song)
}

// Delete
// @Summary Delete song
// @Tags songs
// @Security BearerAuth
// @Param id path int true "Song ID"
// @Success 204
// @Router /api/songs/{id} [delete]
func (h *SongHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.songService.Delete(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadCover
// @Summary Replace song cover
// @Tags songs
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Song ID"
// @Param file formData file true "Image"
// @Success 200 {object} response.Response{data=view.Song}
// @Router /api/songs/{id}/cover [post]
func (h *SongHandler) UploadCover(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	file, ok := formFile(c, "file", true)
	if !ok {
		return
	}
	ctx, ac := caller(c)
	song, err := h.songService.UpdateCover(ctx, ac, id, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, song)
}

// Stream
// @Summary Signed stream URL
// @Tags songs
// @Produce json
// @Param id path int true "Song ID"
// @Success 200 {object} response.Response{data=catalog.StreamURL}
// @Failure 404 {object} response.ErrorBody
// @Router /api/songs/{id}/stream [get]
func (h *SongHandler) Stream(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	url, err := h.songService.Stream(ctx, ac, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, url)
}

// Play
// @Summary Record a play
// @Tags songs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Song ID"
// @Param body body catalog.PlayRequest false "Play details"
// @Success 200 {object} response.Response{data=catalog.PlayResult}
// @Router /api/songs/{id}/play [post]
func (h *SongHandler) Play(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req catalog.PlayRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	ctx, ac := caller(c)
	result, err := h.songService.Play(ctx, ac, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Like
// @Summary Like a song
// @Tags songs
// @Security BearerAuth
// @Param id path int true "Song ID"
// @Success 204
// @Failure 409 {object} response.ErrorBody "already liked"
// @Router /api/songs/{id}/like [post]
func (h *SongHandler) Like(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.songService.Like(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Unlike
// @Summary Remove a song like
// @Tags songs
// @Security BearerAuth
// @Param id path int true "Song ID"
// @Success 204
// @Router /api/songs/{id}/like [delete]
func (h *SongHandler) Unlike(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, ac := caller(c)
	if err := h.songService.Unlike(ctx, ac, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Liked
// @Summary Songs the caller liked
// @Tags library
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=response.PageData{list=[]view.Song}}
// @Router /api/me/likes/songs [get]
func (h *SongHandler) Liked(c *gin.Context) {
	ctx, ac := caller(c)
	page := pageOf(c)
	songs, total, err := h.songService.Liked(ctx, ac, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, songs, total, page)
}

// Trending
// @Summary Most played songs
// @Tags songs
// @Produce json
// @Param days query int false "Window in days" default(7)
// @Param limit query int false "Max songs" default(20)
// @Success 200 {object} response.Response{data=[]catalog.TrendingSong}
// @Router /api/songs/trending [get]
func (h *SongHandler) Trending(c *gin.Context) {
	days, ok := queryInt(c, "days", 7)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return
	}
	ctx, ac := caller(c)
	songs, err := h.songService.Trending(ctx, ac, days, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, songs)
}

// Genres
// @Summary Genres with song counts
// @Tags songs
// @Produce json
// @Success 200 {object} response.Response{data=[]catalog.Genre}
// @Router /api/genres [get]
func (h *SongHandler) Genres(c *gin.Context) {
	genres, err := h.songService.Genres(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, genres)
}
