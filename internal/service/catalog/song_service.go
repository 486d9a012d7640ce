package catalog

import (
	"context"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/media"
	"github.com/weiwangfds/melodia/internal/repository"
	"github.com/weiwangfds/melodia/internal/service/notification"
	"github.com/weiwangfds/melodia/internal/service/view"
	"github.com/weiwangfds/melodia/internal/stats"
	"github.com/weiwangfds/melodia/internal/storage"
	"gorm.io/gorm"
)

// Song list sort orders.
const (
	SortNewest  = "newest"
	SortPopular = "popular"
	SortTitle   = "title"
)

// UploadSongRequest multipart fields of POST /api/songs. The audio and cover
// files travel separately.
type UploadSongRequest struct {
	Title             string `form:"title" binding:"omitempty,max=255"`
	Genre             string `form:"genre" binding:"omitempty,max=100"`
	FeaturedArtistIDs []uint `form:"featured_artist_ids"`
	ReleaseDate       string `form:"release_date"`
	Lyrics            string `form:"lyrics" binding:"omitempty,max=20000"`
}

// UpdateSongRequest PUT /api/songs/:id. Nil fields are left unchanged.
type UpdateSongRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=255"`
	Genre       *string `json:"genre" binding:"omitempty,max=100"`
	Lyrics      *string `json:"lyrics" binding:"omitempty,max=20000"`
	ReleaseDate *string `json:"release_date"`
}

// PlayRequest POST /api/songs/:id/play.
type PlayRequest struct {
	SecondsPlayed int    `json:"seconds_played" binding:"omitempty,min=0,max=86400"`
	Source        string `json:"source" binding:"omitempty,max=30"`
}

// SongQuery filters GET /api/songs.
type SongQuery struct {
	Q        string
	Genre    string
	ArtistID uint
	Sort     string
}

// StreamURL is a time-limited URL for the audio blob.
type StreamURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PlayResult is returned after a play was recorded.
type PlayResult struct {
	SongID    uint  `json:"song_id"`
	PlayCount int64 `json:"play_count"`
}

// TrendingSong is a song with its plays inside the trending window.
type TrendingSong struct {
	view.Song
	WindowPlays int64 `json:"window_plays"`
}

// Genre is a distinct genre with the number of visible songs.
type Genre struct {
	Name      string `json:"name"`
	SongCount int64  `json:"song_count"`
}

// SongService song operations.
type SongService interface {
	Upload(ctx context.Context, ac access.Context, req *UploadSongRequest, audio, cover *multipart.FileHeader) (*view.Song, error)
	List(ctx context.Context, ac access.Context, q SongQuery, page repository.Page) ([]view.Song, int64, error)
	Get(ctx context.Context, ac access.Context, id uint) (*view.Song, error)
	Update(ctx context.Context, ac access.Context, id uint, req *UpdateSongRequest) (*view.Song, error)
	Delete(ctx context.Context, ac access.Context, id uint) error
	UpdateCover(ctx context.Context, ac access.Context, id uint, file *multipart.FileHeader) (*view.Song, error)

	Stream(ctx context.Context, ac access.Context, id uint) (*StreamURL, error)
	// Play records a listening history row and bumps play_count atomically.
	Play(ctx context.Context, ac access.Context, id uint, req *PlayRequest) (*PlayResult, error)

	Like(ctx context.Context, ac access.Context, id uint) error
	Unlike(ctx context.Context, ac access.Context, id uint) error
	Liked(ctx context.Context, ac access.Context, page repository.Page) ([]view.Song, int64, error)

	Trending(ctx context.Context, ac access.Context, days, limit int) ([]TrendingSong, error)
	Genres(ctx context.Context) ([]Genre, error)
}

type songService struct {
	db        *gorm.DB
	media     *media.Service
	presenter *view.Presenter
	notifier  notification.NotificationService
	now       func() time.Time
}

// NewSongService creates the song service.
func NewSongService(db *gorm.DB, mediaService *media.Service, presenter *view.Presenter, notifier notification.NotificationService) SongService {
	return &songService{db: db, media: mediaService, presenter: presenter, notifier: notifier, now: time.Now}
}

// visible loads a song the caller may see; hidden songs of others are 404.
func (s *songService) visible(ctx context.Context, ac access.Context, id uint) (*database.Song, error) {
	var song database.Song
	if err := s.db.WithContext(ctx).First(&song, id).Error; err != nil {
		return nil, apperrors.FromDB(err, "song")
	}
	if !repository.CanSeeSong(ac, &song) {
		return nil, apperrors.NotFound("song")
	}
	return &song, nil
}

func (s *songService) owned(ctx context.Context, ac access.Context, id uint) (*database.Song, error) {
	song, err := s.visible(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if !ac.CanModify(song.UploaderID) {
		return nil, apperrors.Forbidden("only the uploader or an admin can change this song")
	}
	return song, nil
}

func (s *songService) present(ctx context.Context, ac access.Context, song *database.Song) (*view.Song, error) {
	v, err := s.presenter.Song(ctx, ac, song)
	if err != nil {
		return nil, apperrors.FromDB(err, "song")
	}
	return v, nil
}

func (s *songService) presentList(ctx context.Context, ac access.Context, songs []database.Song) ([]view.Song, error) {
	views, err := s.presenter.Songs(ctx, ac, songs, false)
	if err != nil {
		return nil, apperrors.FromDB(err, "song")
	}
	return views, nil
}

func (s *songService) Upload(ctx context.Context, ac access.Context, req *UploadSongRequest, audio, cover *multipart.FileHeader) (*view.Song, error) {
	if audio == nil {
		return nil, apperrors.Validation(map[string]string{"audio": "audio file is required"})
	}
	artist, err := artistOf(ctx, s.db, ac)
	if err != nil {
		return nil, err
	}
	releaseDate, err := ParseDate(req.ReleaseDate)
	if err != nil {
		return nil, err
	}
	featured := make([]uint, 0, len(req.FeaturedArtistIDs))
	seen := map[uint]bool{artist.ID: true}
	for _, id := range req.FeaturedArtistIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		featured = append(featured, id)
	}

	up, err := s.media.Store(ctx, storage.KindAudio, audio)
	if err != nil {
		return nil, err
	}
	keys := []string{up.Key}

	song := database.Song{
		Title:       strings.TrimSpace(req.Title),
		Genre:       strings.TrimSpace(req.Genre),
		AudioKey:    up.Key,
		AudioFormat: strings.TrimPrefix(up.Ext, "."),
		FileSize:    up.Size,
		Lyrics:      req.Lyrics,
		ReleaseDate: releaseDate,
		Status:      database.SongActive,
		UploaderID:  ac.UserID,
	}
	if meta := up.Meta; meta != nil {
		if song.Title == "" {
			song.Title = meta.Title
		}
		if song.Genre == "" {
			song.Genre = meta.Genre
		}
		song.DurationSeconds = meta.DurationSeconds
	}
	if song.Title == "" {
		song.Title = strings.TrimSuffix(filepath.Base(audio.Filename), filepath.Ext(audio.Filename))
	}

	switch {
	case cover != nil:
		c, err := s.media.Store(ctx, storage.KindCover, cover)
		if err != nil {
			s.media.Delete(ctx, keys...)
			return nil, err
		}
		song.CoverKey = c.Key
	case up.Meta != nil && len(up.Meta.Picture) > 0:
		key, err := s.media.StoreBytes(ctx, storage.KindCover, up.Meta.PictureMIME, up.Meta.Picture)
		if err != nil {
			logger.Warnf("[catalog] embedded cover of %s not stored: %v", audio.Filename, err)
		} else {
			song.CoverKey = key
		}
	}
	if song.CoverKey != "" {
		keys = append(keys, song.CoverKey)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(featured) > 0 {
			var n int64
			if err := tx.Model(&database.Artist{}).Where("id IN ?", featured).Count(&n).Error; err != nil {
				return err
			}
			if int(n) != len(featured) {
				return apperrors.BadRequest("featured_artist_ids contains an unknown artist")
			}
		}
		if err := tx.Omit("Uploader").Create(&song).Error; err != nil {
			return err
		}
		credits := []database.SongArtist{{SongID: song.ID, ArtistID: artist.ID, Role: database.ArtistRolePrimary}}
		for _, id := range featured {
			credits = append(credits, database.SongArtist{SongID: song.ID, ArtistID: id, Role: database.ArtistRoleFeatured})
		}
		return tx.Omit("Song", "Artist").Create(&credits).Error
	})
	if err != nil {
		s.media.Delete(ctx, keys...)
		return nil, apperrors.FromDB(err, "song")
	}
	logger.WithFields(map[string]interface{}{"song_id": song.ID, "artist_id": artist.ID}).Info("[catalog] song uploaded")

	var followers []uint
	if err := s.db.WithContext(ctx).Model(&database.ArtistFollow{}).Where("artist_id = ?", artist.ID).Pluck("user_id", &followers).Error; err != nil {
		logger.Warnf("[catalog] cannot load followers of artist %d: %v", artist.ID, err)
	}
	s.notifier.NotifyMany(ctx, followers, notification.Event{
		Actor:      ac.UserID,
		Type:       database.NotifyNewRelease,
		EntityType: "song",
		EntityID:   song.ID,
		Message:    artist.Name + " released " + song.Title,
	})

	return s.present(ctx, ac, &song)
}

func (s *songService) List(ctx context.Context, ac access.Context, q SongQuery, page repository.Page) ([]view.Song, int64, error) {
	db := s.db.WithContext(ctx).Model(&database.Song{}).
		Scopes(repository.VisibleSongs(ac, "songs"), repository.Search("songs.title", q.Q))
	if g := strings.TrimSpace(q.Genre); g != "" {
		db = db.Where("LOWER(songs.genre) = ?", strings.ToLower(g))
	}
	if q.ArtistID != 0 {
		db = db.Where("songs.id IN (?)", s.db.Table("song_artists").Select("song_id").Where("artist_id = ?", q.ArtistID))
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "song")
	}

	switch q.Sort {
	case SortPopular:
		db = db.Order("songs.play_count DESC, songs.id DESC")
	case SortTitle:
		db = db.Order("LOWER(songs.title), songs.id")
	default:
		db = db.Order("songs.created_at DESC, songs.id DESC")
	}
	var songs []database.Song
	if err := db.Scopes(repository.Paginate(page)).Find(&songs).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "song")
	}
	views, err := s.presentList(ctx, ac, songs)
	return views, total, err
}

func (s *songService) Get(ctx context.Context, ac access.Context, id uint) (*view.Song, error) {
	song, err := s.visible(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	return s.present(ctx, ac, song)
}

func (s *songService) Update(ctx context.Context, ac access.Context, id uint, req *UpdateSongRequest) (*view.Song, error) {
	song, err := s.owned(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			return nil, apperrors.Validation(map[string]string{"title": "title cannot be blank"})
		}
		updates["title"] = t
	}
	if req.Genre != nil {
		updates["genre"] = strings.TrimSpace(*req.Genre)
	}
	if req.Lyrics != nil {
		updates["lyrics"] = *req.Lyrics
	}
	if req.ReleaseDate != nil {
		d, err := ParseDate(*req.ReleaseDate)
		if err != nil {
			return nil, err
		}
		updates["release_date"] = d
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&database.Song{}).Where("id = ?", song.ID).Updates(updates).Error; err != nil {
			return nil, apperrors.FromDB(err, "song")
		}
	}
	return s.Get(ctx, ac, id)
}

func (s *songService) Delete(ctx context.Context, ac access.Context, id uint) error {
	song, err := s.owned(ctx, ac, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&database.Song{}, song.ID).Error; err != nil {
		return apperrors.FromDB(err, "song")
	}
	s.media.Delete(ctx, song.AudioKey, song.CoverKey)
	logger.WithFields(map[string]interface{}{"song_id": song.ID, "user_id": ac.UserID}).Info("[catalog] song deleted")
	return nil
}

func (s *songService) UpdateCover(ctx context.Context, ac access.Context, id uint, file *multipart.FileHeader) (*view.Song, error) {
	song, err := s.owned(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	up, err := s.media.Store(ctx, storage.KindCover, file)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&database.Song{}).Where("id = ?", song.ID).Update("cover_key", up.Key).Error; err != nil {
		s.media.Delete(ctx, up.Key)
		return nil, apperrors.FromDB(err, "song")
	}
	s.media.Delete(ctx, song.CoverKey)
	song.CoverKey = up.Key
	return s.present(ctx, ac, song)
}

func (s *songService) Stream(ctx context.Context, ac access.Context, id uint) (*StreamURL, error) {
	song, err := s.visible(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if song.AudioKey == "" {
		return nil, apperrors.NotFound("audio")
	}
	u, exp, err := s.media.SignedURL(ctx, song.AudioKey)
	if err != nil {
		return nil, err
	}
	return &StreamURL{URL: u, ExpiresAt: exp.UTC()}, nil
}

func (s *songService) Play(ctx context.Context, ac access.Context, id uint, req *PlayRequest) (*PlayResult, error) {
	song, err := s.visible(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	res := &PlayResult{SongID: song.ID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := database.ListeningHistory{
			UserID:        ac.UserID,
			SongID:        song.ID,
			PlayedAt:      s.now().UTC(),
			SecondsPlayed: req.SecondsPlayed,
			Source:        strings.TrimSpace(req.Source),
		}
		if err := tx.Omit("User", "Song").Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Model(&database.Song{}).Where("id = ?", song.ID).
			UpdateColumn("play_count", gorm.Expr("play_count + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&database.Song{}).Where("id = ?", song.ID).Pluck("play_count", &res.PlayCount).Error
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "song")
	}
	return res, nil
}

// Like fails with 409 when the song is already liked.
func (s *songService) Like(ctx context.Context, ac access.Context, id uint) error {
	song, err := s.visible(ctx, ac, id)
	if err != nil {
		return err
	}
	like := database.SongLike{UserID: ac.UserID, SongID: song.ID}
	if err := s.db.WithContext(ctx).Omit("User", "Song").Create(&like).Error; err != nil {
		err = apperrors.FromDB(err, "like")
		if apperrors.StatusOf(err) == 409 {
			return apperrors.Conflict("song already liked")
		}
		return err
	}
	s.notifier.Notify(ctx, notification.Event{
		Recipient:  song.UploaderID,
		Actor:      ac.UserID,
		Type:       database.NotifyNewLike,
		EntityType: "song",
		EntityID:   song.ID,
		Message:    "liked " + song.Title,
	})
	return nil
}

func (s *songService) Unlike(ctx context.Context, ac access.Context, id uint) error {
	err := s.db.WithContext(ctx).Where("user_id = ? AND song_id = ?", ac.UserID, id).Delete(&database.SongLike{}).Error
	return apperrors.FromDB(err, "like")
}

func (s *songService) Liked(ctx context.Context, ac access.Context, page repository.Page) ([]view.Song, int64, error) {
	db := s.db.WithContext(ctx).Model(&database.Song{}).
		Joins("JOIN song_likes sl ON sl.song_id = songs.id").
		Where("sl.user_id = ?", ac.UserID).
		Scopes(repository.VisibleSongs(ac, "songs"))
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "song")
	}
	var songs []database.Song
	if err := db.Order("sl.created_at DESC, songs.id DESC").Scopes(repository.Paginate(page)).Find(&songs).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "song")
	}
	views, err := s.presentList(ctx, ac, songs)
	return views, total, err
}

type playCount struct {
	SongID uint
	Plays  int64
}

// Trending ranks visible songs by plays recorded in the last days days.
func (s *songService) Trending(ctx context.Context, ac access.Context, days, limit int) ([]TrendingSong, error) {
	if days <= 0 {
		days = 7
	}
	days = stats.ClampDays(days)
	if limit <= 0 {
		limit = 20
	}
	if limit > repository.MaxPageSize {
		limit = repository.MaxPageSize
	}
	w := stats.NewWindow(s.now(), days)

	var counts []playCount
	err := s.db.WithContext(ctx).Table("listening_history lh").
		Select("lh.song_id, COUNT(*) AS plays").
		Joins("JOIN songs ON songs.id = lh.song_id").
		Where("lh.played_at >= ? AND lh.played_at < ?", w.Start, w.End).
		Scopes(repository.VisibleSongs(ac, "songs")).
		Group("lh.song_id").
		Order("plays DESC, lh.song_id").
		Limit(limit).
		Scan(&counts).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "song")
	}
	if len(counts) == 0 {
		return []TrendingSong{}, nil
	}

	ids := make([]uint, len(counts))
	for i, c := range counts {
		ids[i] = c.SongID
	}
	var songs []database.Song
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&songs).Error; err != nil {
		return nil, apperrors.FromDB(err, "song")
	}
	byID := make(map[uint]database.Song, len(songs))
	for _, sg := range songs {
		byID[sg.ID] = sg
	}
	ordered := make([]database.Song, 0, len(counts))
	plays := make([]int64, 0, len(counts))
	for _, c := range counts {
		if sg, ok := byID[c.SongID]; ok {
			ordered = append(ordered, sg)
			plays = append(plays, c.Plays)
		}
	}
	views, err := s.presentList(ctx, ac, ordered)
	if err != nil {
		return nil, err
	}
	out := make([]TrendingSong, len(views))
	for i := range views {
		out[i] = TrendingSong{Song: views[i], WindowPlays: plays[i]}
	}
	return out, nil
}

func (s *songService) Genres(ctx context.Context) ([]Genre, error) {
	var out []Genre
	err := s.db.WithContext(ctx).Model(&database.Song{}).
		Select("genre AS name, COUNT(*) AS song_count").
		Where("status = ? AND genre <> ''", database.SongActive).
		Group("genre").
		Order("song_count DESC, genre").
		Scan(&out).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "genre")
	}
	if out == nil {
		out = []Genre{}
	}
	return out, nil
}
