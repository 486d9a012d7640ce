// Package playlist manages user playlists and their ordered songs.
package playlist

import (
	"context"
	"mime/multipart"
	"strings"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/media"
	"github.com/weiwangfds/melodia/internal/repository"
	"github.com/weiwangfds/melodia/internal/service/notification"
	"github.com/weiwangfds/melodia/internal/service/view"
	"github.com/weiwangfds/melodia/internal/storage"
	"gorm.io/gorm"
)

// CreatePlaylistRequest POST /api/playlists. Playlists are public unless
// is_public is false.
type CreatePlaylistRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"omitempty,max=2000"`
	IsPublic    *bool  `json:"is_public"`
}

// UpdatePlaylistRequest PUT /api/playlists/:id.
type UpdatePlaylistRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	IsPublic    *bool   `json:"is_public"`
}

// AddSongRequest POST /api/playlists/:id/songs.
type AddSongRequest struct {
	SongID uint `json:"song_id" binding:"required"`
}

// ReorderRequest PUT /api/playlists/:id/songs/order.
type ReorderRequest struct {
	SongIDs []uint `json:"song_ids" binding:"required"`
}

// PlaylistService playlist operations.
type PlaylistService interface {
	Create(ctx context.Context, ac access.Context, req *CreatePlaylistRequest) (*view.PlaylistDetail, error)
	// List returns public playlists plus the caller's own; admins see all.
	List(ctx context.Context, ac access.Context, q string, page repository.Page) ([]view.Playlist, int64, error)
	Mine(ctx context.Context, ac access.Context, page repository.Page) ([]view.Playlist, int64, error)
	Get(ctx context.Context, ac access.Context, id uint) (*view.PlaylistDetail, error)
	Update(ctx context.Context, ac access.Context, id uint, req *UpdatePlaylistRequest) (*view.PlaylistDetail, error)
	Delete(ctx context.Context, ac access.Context, id uint) error
	UpdateCover(ctx context.Context, ac access.Context, id uint, file *multipart.FileHeader) (*view.PlaylistDetail, error)

	AddSong(ctx context.Context, ac access.Context, id uint, req *AddSongRequest) (*view.PlaylistDetail, error)
	RemoveSong(ctx context.Context, ac access.Context, id, songID uint) error
	// Reorder rewrites positions; songIDs must be a permutation of the playlist's songs.
	Reorder(ctx context.Context, ac access.Context, id uint, songIDs []uint) (*view.PlaylistDetail, error)

	Like(ctx context.Context, ac access.Context, id uint) error
	Unlike(ctx context.Context, ac access.Context, id uint) error
	Liked(ctx context.Context, ac access.Context, page repository.Page) ([]view.Playlist, int64, error)
}

type playlistService struct {
	db        *gorm.DB
	media     *media.Service
	presenter *view.Presenter
	notifier  notification.NotificationService
	now       func() time.Time
}

// NewPlaylistService creates the playlist service.
func NewPlaylistService(db *gorm.DB, mediaService *media.Service, presenter *view.Presenter, notifier notification.NotificationService) PlaylistService {
	return &playlistService{db: db, media: mediaService, presenter: presenter, notifier: notifier, now: time.Now}
}

// visible loads a playlist; private playlists of others are 404 for non-admins.
func (s *playlistService) visible(ctx context.Context, ac access.Context, id uint) (*database.Playlist, error) {
	var pl database.Playlist
	if err := s.db.WithContext(ctx).First(&pl, id).Error; err != nil {
		return nil, apperrors.FromDB(err, "playlist")
	}
	if !repository.CanSeePlaylist(ac, &pl) {
		return nil, apperrors.NotFound("playlist")
	}
	return &pl, nil
}

func (s *playlistService) owned(ctx context.Context, ac access.Context, id uint) (*database.Playlist, error) {
	pl, err := s.visible(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if !ac.CanModify(pl.OwnerID) {
		return nil, apperrors.Forbidden("only the owner or an admin can change this playlist")
	}
	return pl, nil
}

func (s *playlistService) detail(ctx context.Context, ac access.Context, pl *database.Playlist) (*view.PlaylistDetail, error) {
	d, err := s.presenter.PlaylistDetail(ctx, ac, pl)
	if err != nil {
		return nil, apperrors.FromDB(err, "playlist")
	}
	return d, nil
}

func (s *playlistService) page(ctx context.Context, ac access.Context, db *gorm.DB, order string, page repository.Page) ([]view.Playlist, int64, error) {
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "playlist")
	}
	var list []database.Playlist
	if err := db.Order(order).Scopes(repository.Paginate(page)).Find(&list).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "playlist")
	}
	views, err := s.presenter.Playlists(ctx, ac, list)
	if err != nil {
		return nil, 0, apperrors.FromDB(err, "playlist")
	}
	return views, total, nil
}

func (s *playlistService) Create(ctx context.Context, ac access.Context, req *CreatePlaylistRequest) (*view.PlaylistDetail, error) {
	pl := database.Playlist{
		OwnerID:     ac.UserID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		IsPublic:    req.IsPublic == nil || *req.IsPublic,
	}
	if err := s.db.WithContext(ctx).Omit("Owner").Create(&pl).Error; err != nil {
		return nil, apperrors.FromDB(err, "playlist")
	}
	return s.detail(ctx, ac, &pl)
}

func (s *playlistService) List(ctx context.Context, ac access.Context, q string, page repository.Page) ([]view.Playlist, int64, error) {
	db := s.db.WithContext(ctx).Model(&database.Playlist{}).
		Scopes(repository.VisiblePlaylists(ac, "playlists"), repository.Search("playlists.name", q))
	return s.page(ctx, ac, db, "playlists.updated_at DESC, playlists.id DESC", page)
}

func (s *playlistService) Mine(ctx context.Context, ac access.Context, page repository.Page) ([]view.Playlist, int64, error) {
	db := s.db.WithContext(ctx).Model(&database.Playlist{}).Where("owner_id = ?", ac.UserID)
	return s.page(ctx, ac, db, "updated_at DESC, id DESC", page)
}

func (s *playlistService) Get(ctx context.Context, ac access.Context, id uint) (*view.PlaylistDetail, error) {
	pl, err := s.visible(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, ac, pl)
}

func (s *playlistService) Update(ctx context.Context, ac access.Context, id uint, req *UpdatePlaylistRequest) (*view.PlaylistDetail, error) {
	pl, err := s.owned(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.Validation(map[string]string{"name": "name cannot be blank"})
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.IsPublic != nil {
		updates["is_public"] = *req.IsPublic
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&database.Playlist{}).Where("id = ?", pl.ID).Updates(updates).Error; err != nil {
			return nil, apperrors.FromDB(err, "playlist")
		}
	}
	return s.Get(ctx, ac, id)
}

func (s *playlistService) Delete(ctx context.Context, ac access.Context, id uint) error {
	pl, err := s.owned(ctx, ac, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&database.Playlist{}, pl.ID).Error; err != nil {
		return apperrors.FromDB(err, "playlist")
	}
	s.media.Delete(ctx, pl.CoverKey)
	return nil
}

func (s *playlistService) UpdateCover(ctx context.Context, ac access.Context, id uint, file *multipart.FileHeader) (*view.PlaylistDetail, error) {
	pl, err := s.owned(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	up, err := s.media.Store(ctx, storage.KindCover, file)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&database.Playlist{}).Where("id = ?", pl.ID).Update("cover_key", up.Key).Error; err != nil {
		s.media.Delete(ctx, up.Key)
		return nil, apperrors.FromDB(err, "playlist")
	}
	s.media.Delete(ctx, pl.CoverKey)
	pl.CoverKey = up.Key
	return s.detail(ctx, ac, pl)
}

// touch bumps updated_at so recently edited playlists sort first.
func (s *playlistService) touch(tx *gorm.DB, id uint) error {
	return tx.Model(&database.Playlist{}).Where("id = ?", id).UpdateColumn("updated_at", s.now().UTC()).Error
}

func (s *playlistService) AddSong(ctx context.Context, ac access.Context, id uint, req *AddSongRequest) (*view.PlaylistDetail, error) {
	pl, err := s.owned(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var song database.Song
		if err := tx.First(&song, req.SongID).Error; err != nil {
			return apperrors.FromDB(err, "song")
		}
		if !repository.CanSeeSong(ac, &song) {
			return apperrors.NotFound("song")
		}
		var present int64
		if err := tx.Model(&database.PlaylistSong{}).Where("playlist_id = ? AND song_id = ?", pl.ID, song.ID).Count(&present).Error; err != nil {
			return err
		}
		if present > 0 {
			return apperrors.Conflict("song is already in this playlist")
		}
		var next int
		if err := tx.Model(&database.PlaylistSong{}).Where("playlist_id = ?", pl.ID).
			Select("COALESCE(MAX(position) + 1, 0)").Row().Scan(&next); err != nil {
			return err
		}
		entry := database.PlaylistSong{PlaylistID: pl.ID, SongID: song.ID, Position: next, AddedAt: s.now().UTC()}
		if err := tx.Omit("Playlist", "Song").Create(&entry).Error; err != nil {
			return err
		}
		return s.touch(tx, pl.ID)
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "playlist")
	}
	return s.detail(ctx, ac, pl)
}

// RemoveSong deletes the entry and shifts later positions down by one.
func (s *playlistService) RemoveSong(ctx context.Context, ac access.Context, id, songID uint) error {
	pl, err := s.owned(ctx, ac, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry database.PlaylistSong
		if err := tx.Where("playlist_id = ? AND song_id = ?", pl.ID, songID).First(&entry).Error; err != nil {
			return apperrors.FromDB(err, "playlist song")
		}
		if err := tx.Where("playlist_id = ? AND song_id = ?", pl.ID, songID).Delete(&database.PlaylistSong{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&database.PlaylistSong{}).
			Where("playlist_id = ? AND position > ?", pl.ID, entry.Position).
			UpdateColumn("position", gorm.Expr("position - 1")).Error; err != nil {
			return err
		}
		return s.touch(tx, pl.ID)
	})
	return apperrors.FromDB(err, "playlist")
}

func (s *playlistService) Reorder(ctx context.Context, ac access.Context, id uint, songIDs []uint) (*view.PlaylistDetail, error) {
	pl, err := s.owned(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []uint
		if err := tx.Model(&database.PlaylistSong{}).Where("playlist_id = ?", pl.ID).Pluck("song_id", &current).Error; err != nil {
			return err
		}
		if !IsPermutation(current, songIDs) {
			return apperrors.BadRequest("song_ids must list every song of the playlist exactly once")
		}
		for pos, songID := range songIDs {
			if err := tx.Model(&database.PlaylistSong{}).
				Where("playlist_id = ? AND song_id = ?", pl.ID, songID).
				UpdateColumn("position", pos).Error; err != nil {
				return err
			}
		}
		return s.touch(tx, pl.ID)
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "playlist")
	}
	return s.detail(ctx, ac, pl)
}

// IsPermutation reports whether b holds exactly the elements of a, each once.
func IsPermutation(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	want := make(map[uint]int, len(a))
	for _, v := range a {
		want[v]++
	}
	for _, v := range b {
		if want[v] == 0 {
			return false
		}
		want[v]--
	}
	return true
}

func (s *playlistService) Like(ctx context.Context, ac access.Context, id uint) error {
	pl, err := s.visible(ctx, ac, id)
	if err != nil {
		return err
	}
	like := database.PlaylistLike{UserID: ac.UserID, PlaylistID: pl.ID}
	if err := s.db.WithContext(ctx).Omit("User", "Playlist").Create(&like).Error; err != nil {
		err = apperrors.FromDB(err, "like")
		if apperrors.StatusOf(err) == 409 {
			return apperrors.Conflict("playlist already liked")
		}
		return err
	}
	s.notifier.Notify(ctx, notification.Event{
		Recipient:  pl.OwnerID,
		Actor:      ac.UserID,
		Type:       database.NotifyNewLike,
		EntityType: "playlist",
		EntityID:   pl.ID,
		Message:    "liked your playlist " + pl.Name,
	})
	return nil
}

func (s *playlistService) Unlike(ctx context.Context, ac access.Context, id uint) error {
	err := s.db.WithContext(ctx).Where("user_id = ? AND playlist_id = ?", ac.UserID, id).Delete(&database.PlaylistLike{}).Error
	return apperrors.FromDB(err, "like")
}

func (s *playlistService) Liked(ctx context.Context, ac access.Context, page repository.Page) ([]view.Playlist, int64, error) {
	db := s.db.WithContext(ctx).Model(&database.Playlist{}).
		Joins("JOIN playlist_likes pl ON pl.playlist_id = playlists.id").
		Where("pl.user_id = ?", ac.UserID).
		Scopes(repository.VisiblePlaylists(ac, "playlists"))
	return s.page(ctx, ac, db, "pl.created_at DESC, playlists.id DESC", page)
}
