package catalog

import (
	"context"
	"mime/multipart"
	"strings"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/media"
	"github.com/weiwangfds/melodia/internal/repository"
	"github.com/weiwangfds/melodia/internal/service/notification"
	"github.com/weiwangfds/melodia/internal/service/view"
	"github.com/weiwangfds/melodia/internal/storage"
	"gorm.io/gorm"
)

// CreateAlbumRequest POST /api/albums.
type CreateAlbumRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=255"`
	AlbumType   string `json:"album_type" binding:"omitempty,oneof=album single ep"`
	Description string `json:"description" binding:"omitempty,max=2000"`
	ReleaseDate string `json:"release_date"`
}

// UpdateAlbumRequest PUT /api/albums/:id.
type UpdateAlbumRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=255"`
	AlbumType   *string `json:"album_type" binding:"omitempty,oneof=album single ep"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	ReleaseDate *string `json:"release_date"`
}

// AddTrackRequest POST /api/albums/:id/songs. TrackNumber 0 appends.
type AddTrackRequest struct {
	SongID      uint `json:"song_id" binding:"required"`
	TrackNumber int  `json:"track_number" binding:"omitempty,min=1,max=999"`
}

// AlbumQuery filters GET /api/albums.
type AlbumQuery struct {
	Q        string
	ArtistID uint
}

// AlbumService album operations.
type AlbumService interface {
	Create(ctx context.Context, ac access.Context, req *CreateAlbumRequest) (*view.AlbumDetail, error)
	List(ctx context.Context, ac access.Context, q AlbumQuery, page repository.Page) ([]view.Album, int64, error)
	Get(ctx context.Context, ac access.Context, id uint) (*view.AlbumDetail, error)
	Update(ctx context.Context, ac access.Context, id uint, req *UpdateAlbumRequest) (*view.AlbumDetail, error)
	Delete(ctx context.Context, ac access.Context, id uint) error
	UpdateCover(ctx context.Context, ac access.Context, id uint, file *multipart.FileHeader) (*view.AlbumDetail, error)

	// AddTrack places a song of the album's artist on the album.
	AddTrack(ctx context.Context, ac access.Context, id uint, req *AddTrackRequest) (*view.AlbumDetail, error)
	RemoveTrack(ctx context.Context, ac access.Context, id, songID uint) error

	Like(ctx context.Context, ac access.Context, id uint) error
	Unlike(ctx context.Context, ac access.Context, id uint) error
	Liked(ctx context.Context, ac access.Context, page repository.Page) ([]view.Album, int64, error)
}

type albumService struct {
	db        *gorm.DB
	media     *media.Service
	presenter *view.Presenter
	notifier  notification.NotificationService
}

// NewAlbumService creates the album service.
func NewAlbumService(db *gorm.DB, mediaService *media.Service, presenter *view.Presenter, notifier notification.NotificationService) AlbumService {
	return &albumService{db: db, media: mediaService, presenter: presenter, notifier: notifier}
}

func (s *albumService) load(ctx context.Context, id uint) (*database.Album, *database.Artist, error) {
	var album database.Album
	if err := s.db.WithContext(ctx).First(&album, id).Error; err != nil {
		return nil, nil, apperrors.FromDB(err, "album")
	}
	var artist database.Artist
	if err := s.db.WithContext(ctx).First(&artist, album.ArtistID).Error; err != nil {
		return nil, nil, apperrors.FromDB(err, "artist")
	}
	return &album, &artist, nil
}

func (s *albumService) owned(ctx context.Context, ac access.Context, id uint) (*database.Album, *database.Artist, error) {
	album, artist, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !ac.CanModify(artist.UserID) {
		return nil, nil, apperrors.Forbidden("only the album's artist or an admin can change this album")
	}
	return album, artist, nil
}

func (s *albumService) detail(ctx context.Context, ac access.Context, album *database.Album) (*view.AlbumDetail, error) {
	d, err := s.presenter.AlbumDetail(ctx, ac, album)
	if err != nil {
		return nil, apperrors.FromDB(err, "album")
	}
	return d, nil
}

func (s *albumService) Create(ctx context.Context, ac access.Context, req *CreateAlbumRequest) (*view.AlbumDetail, error) {
	artist, err := artistOf(ctx, s.db, ac)
	if err != nil {
		return nil, err
	}
	releaseDate, err := ParseDate(req.ReleaseDate)
	if err != nil {
		return nil, err
	}
	album := database.Album{
		Title:       strings.TrimSpace(req.Title),
		ArtistID:    artist.ID,
		AlbumType:   req.AlbumType,
		Description: strings.TrimSpace(req.Description),
		ReleaseDate: releaseDate,
	}
	if album.AlbumType == "" {
		album.AlbumType = database.AlbumTypeAlbum
	}
	if err := s.db.WithContext(ctx).Omit("Artist").Create(&album).Error; err != nil {
		return nil, apperrors.FromDB(err, "album")
	}
	logger.WithFields(map[string]interface{}{"album_id": album.ID, "artist_id": artist.ID}).Info("[catalog] album created")
	return s.detail(ctx, ac, &album)
}

func (s *albumService) List(ctx context.Context, ac access.Context, q AlbumQuery, page repository.Page) ([]view.Album, int64, error) {
	db := s.db.WithContext(ctx).Model(&database.Album{}).Scopes(repository.Search("title", q.Q))
	if q.ArtistID != 0 {
		db = db.Where("artist_id = ?", q.ArtistID)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "album")
	}
	var albums []database.Album
	if err := db.Order("created_at DESC, id DESC").Scopes(repository.Paginate(page)).Find(&albums).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "album")
	}
	views, err := s.presenter.Albums(ctx, ac, albums)
	if err != nil {
		return nil, 0, apperrors.FromDB(err, "album")
	}
	return views, total, nil
}

func (s *albumService) Get(ctx context.Context, ac access.Context, id uint) (*view.AlbumDetail, error) {
	album, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, ac, album)
}

func (s *albumService) Update(ctx context.Context, ac access.Context, id uint, req *UpdateAlbumRequest) (*view.AlbumDetail, error) {
	album, _, err := s.owned(ctx, ac, id)
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
	if req.AlbumType != nil {
		updates["album_type"] = *req.AlbumType
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.ReleaseDate != nil {
		d, err := ParseDate(*req.ReleaseDate)
		if err != nil {
			return nil, err
		}
		updates["release_date"] = d
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&database.Album{}).Where("id = ?", album.ID).Updates(updates).Error; err != nil {
			return nil, apperrors.FromDB(err, "album")
		}
	}
	return s.Get(ctx, ac, id)
}

// Delete removes the album. Its songs stay in the catalog.
func (s *albumService) Delete(ctx context.Context, ac access.Context, id uint) error {
	album, _, err := s.owned(ctx, ac, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&database.Album{}, album.ID).Error; err != nil {
		return apperrors.FromDB(err, "album")
	}
	s.media.Delete(ctx, album.CoverKey)
	return nil
}

func (s *albumService) UpdateCover(ctx context.Context, ac access.Context, id uint, file *multipart.FileHeader) (*view.AlbumDetail, error) {
	album, _, err := s.owned(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	up, err := s.media.Store(ctx, storage.KindCover, file)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&database.Album{}).Where("id = ?", album.ID).Update("cover_key", up.Key).Error; err != nil {
		s.media.Delete(ctx, up.Key)
		return nil, apperrors.FromDB(err, "album")
	}
	s.media.Delete(ctx, album.CoverKey)
	album.CoverKey = up.Key
	return s.detail(ctx, ac, album)
}

func (s *albumService) AddTrack(ctx context.Context, ac access.Context, id uint, req *AddTrackRequest) (*view.AlbumDetail, error) {
	album, artist, err := s.owned(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var song database.Song
		if err := tx.First(&song, req.SongID).Error; err != nil {
			return apperrors.FromDB(err, "song")
		}
		var credited int64
		if err := tx.Model(&database.SongArtist{}).
			Where("song_id = ? AND artist_id = ?", song.ID, artist.ID).Count(&credited).Error; err != nil {
			return err
		}
		if credited == 0 {
			return apperrors.BadRequest("song does not belong to the album's artist")
		}

		var present int64
		if err := tx.Model(&database.AlbumSong{}).Where("album_id = ? AND song_id = ?", album.ID, song.ID).Count(&present).Error; err != nil {
			return err
		}
		if present > 0 {
			return apperrors.Conflict("song is already on this album")
		}

		track := req.TrackNumber
		if track == 0 {
			var last int
			if err := tx.Model(&database.AlbumSong{}).Where("album_id = ?", album.ID).
				Select("COALESCE(MAX(track_number), 0)").Row().Scan(&last); err != nil {
				return err
			}
			track = last + 1
		} else {
			// Make room at the requested number.
			if err := tx.Model(&database.AlbumSong{}).
				Where("album_id = ? AND track_number >= ?", album.ID, track).
				UpdateColumn("track_number", gorm.Expr("track_number + 1")).Error; err != nil {
				return err
			}
		}
		row := database.AlbumSong{AlbumID: album.ID, SongID: song.ID, TrackNumber: track}
		return tx.Omit("Album", "Song").Create(&row).Error
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "album")
	}
	return s.detail(ctx, ac, album)
}

// RemoveTrack removes a song and closes the gap in track numbers.
func (s *albumService) RemoveTrack(ctx context.Context, ac access.Context, id, songID uint) error {
	album, _, err := s.owned(ctx, ac, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row database.AlbumSong
		if err := tx.Where("album_id = ? AND song_id = ?", album.ID, songID).First(&row).Error; err != nil {
			return apperrors.FromDB(err, "album track")
		}
		if err := tx.Where("album_id = ? AND song_id = ?", album.ID, songID).Delete(&database.AlbumSong{}).Error; err != nil {
			return err
		}
		return tx.Model(&database.AlbumSong{}).
			Where("album_id = ? AND track_number > ?", album.ID, row.TrackNumber).
			UpdateColumn("track_number", gorm.Expr("track_number - 1")).Error
	})
	return apperrors.FromDB(err, "album")
}

func (s *albumService) Like(ctx context.Context, ac access.Context, id uint) error {
	album, artist, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	like := database.AlbumLike{UserID: ac.UserID, AlbumID: album.ID}
	if err := s.db.WithContext(ctx).Omit("User", "Album").Create(&like).Error; err != nil {
		err = apperrors.FromDB(err, "like")
		if apperrors.StatusOf(err) == 409 {
			return apperrors.Conflict("album already liked")
		}
		return err
	}
	s.notifier.Notify(ctx, notification.Event{
		Recipient:  artist.UserID,
		Actor:      ac.UserID,
		Type:       database.NotifyNewLike,
		EntityType: "album",
		EntityID:   album.ID,
		Message:    "liked " + album.Title,
	})
	return nil
}

func (s *albumService) Unlike(ctx context.Context, ac access.Context, id uint) error {
	err := s.db.WithContext(ctx).Where("user_id = ? AND album_id = ?", ac.UserID, id).Delete(&database.AlbumLike{}).Error
	return apperrors.FromDB(err, "like")
}

func (s *albumService) Liked(ctx context.Context, ac access.Context, page repository.Page) ([]view.Album, int64, error) {
	db := s.db.WithContext(ctx).Model(&database.Album{}).
		Joins("JOIN album_likes al ON al.album_id = albums.id").
		Where("al.user_id = ?", ac.UserID)
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "album")
	}
	var albums []database.Album
	if err := db.Order("al.created_at DESC, albums.id DESC").Scopes(repository.Paginate(page)).Find(&albums).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "album")
	}
	views, err := s.presenter.Albums(ctx, ac, albums)
	if err != nil {
		return nil, 0, apperrors.FromDB(err, "album")
	}
	return views, total, nil
}
