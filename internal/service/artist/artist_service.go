// Package artist manages artist profiles and artist follows.
package artist

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

// CreateArtistRequest POST /api/artists.
type CreateArtistRequest struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
	Bio  string `json:"bio" binding:"omitempty,max=2000"`
}

// UpdateArtistRequest PUT /api/artists/:id.
type UpdateArtistRequest struct {
	Name *string `json:"name" binding:"omitempty,min=1,max=200"`
	Bio  *string `json:"bio" binding:"omitempty,max=2000"`
}

// ArtistService artist profile operations.
type ArtistService interface {
	// Create registers the caller's artist profile and promotes a listener to
	// the artist role. A user has at most one profile.
	Create(ctx context.Context, ac access.Context, req *CreateArtistRequest) (*view.ArtistDetail, error)
	List(ctx context.Context, ac access.Context, q string, page repository.Page) ([]view.Artist, int64, error)
	Get(ctx context.Context, ac access.Context, id uint) (*view.ArtistDetail, error)
	Update(ctx context.Context, ac access.Context, id uint, req *UpdateArtistRequest) (*view.ArtistDetail, error)
	Delete(ctx context.Context, ac access.Context, id uint) error
	UpdateImage(ctx context.Context, ac access.Context, id uint, file *multipart.FileHeader) (*view.ArtistDetail, error)
	SetVerified(ctx context.Context, ac access.Context, id uint, verified bool) (*view.ArtistDetail, error)

	Songs(ctx context.Context, ac access.Context, id uint, page repository.Page) ([]view.Song, int64, error)
	Albums(ctx context.Context, ac access.Context, id uint, page repository.Page) ([]view.Album, int64, error)

	Follow(ctx context.Context, ac access.Context, id uint) error
	Unfollow(ctx context.Context, ac access.Context, id uint) error
	Followers(ctx context.Context, ac access.Context, id uint, page repository.Page) ([]view.User, int64, error)
}

type artistService struct {
	db        *gorm.DB
	media     *media.Service
	presenter *view.Presenter
	notifier  notification.NotificationService
}

// NewArtistService creates the artist service.
func NewArtistService(db *gorm.DB, mediaService *media.Service, presenter *view.Presenter, notifier notification.NotificationService) ArtistService {
	return &artistService{db: db, media: mediaService, presenter: presenter, notifier: notifier}
}

func (s *artistService) load(ctx context.Context, id uint) (*database.Artist, error) {
	var a database.Artist
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, apperrors.FromDB(err, "artist")
	}
	return &a, nil
}

func (s *artistService) loadOwned(ctx context.Context, ac access.Context, id uint) (*database.Artist, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ac.CanModify(a.UserID) {
		return nil, apperrors.Forbidden("only the artist or an admin can change this profile")
	}
	return a, nil
}

func (s *artistService) detail(ctx context.Context, ac access.Context, a *database.Artist) (*view.ArtistDetail, error) {
	d, err := s.presenter.ArtistDetail(ctx, ac, a)
	if err != nil {
		return nil, apperrors.FromDB(err, "artist")
	}
	return d, nil
}

func (s *artistService) Create(ctx context.Context, ac access.Context, req *CreateArtistRequest) (*view.ArtistDetail, error) {
	a := database.Artist{
		UserID: ac.UserID,
		Name:   strings.TrimSpace(req.Name),
		Bio:    strings.TrimSpace(req.Bio),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&database.Artist{}).Where("user_id = ?", ac.UserID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperrors.Conflict("you already have an artist profile")
		}
		if err := tx.Omit("User").Create(&a).Error; err != nil {
			return err
		}
		return tx.Model(&database.User{}).
			Where("id = ? AND role = ?", ac.UserID, database.RoleListener).
			Update("role", database.RoleArtist).Error
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "artist")
	}
	logger.WithFields(map[string]interface{}{"artist_id": a.ID, "user_id": ac.UserID}).Info("[artist] profile created")

	if ac.Role == database.RoleListener {
		ac.Role = database.RoleArtist
	}
	return s.detail(ctx, ac, &a)
}

func (s *artistService) List(ctx context.Context, ac access.Context, q string, page repository.Page) ([]view.Artist, int64, error) {
	db := s.db.WithContext(ctx).Model(&database.Artist{}).Scopes(repository.Search("name", q))
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "artist")
	}
	var artists []database.Artist
	if err := db.Order("verified DESC, name").Scopes(repository.Paginate(page)).Find(&artists).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "artist")
	}
	return s.presenter.Artists(ctx, artists), total, nil
}

func (s *artistService) Get(ctx context.Context, ac access.Context, id uint) (*view.ArtistDetail, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, ac, a)
}

func (s *artistService) Update(ctx context.Context, ac access.Context, id uint, req *UpdateArtistRequest) (*view.ArtistDetail, error) {
	a, err := s.loadOwned(ctx, ac, id)
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
		a.Name = name
	}
	if req.Bio != nil {
		updates["bio"] = strings.TrimSpace(*req.Bio)
		a.Bio = strings.TrimSpace(*req.Bio)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&database.Artist{}).Where("id = ?", a.ID).Updates(updates).Error; err != nil {
			return nil, apperrors.FromDB(err, "artist")
		}
	}
	return s.detail(ctx, ac, a)
}

// Delete removes the profile with its albums and credits. The user is demoted
// back to listener unless they are an admin.
func (s *artistService) Delete(ctx context.Context, ac access.Context, id uint) error {
	a, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	var covers []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.Album{}).Where("artist_id = ? AND cover_key <> ''", a.ID).Pluck("cover_key", &covers).Error; err != nil {
			return err
		}
		if err := tx.Delete(&database.Artist{}, a.ID).Error; err != nil {
			return err
		}
		return tx.Model(&database.User{}).
			Where("id = ? AND role = ?", a.UserID, database.RoleArtist).
			Update("role", database.RoleListener).Error
	})
	if err != nil {
		return apperrors.FromDB(err, "artist")
	}
	s.media.Delete(ctx, append(covers, a.ImageKey)...)
	logger.WithFields(map[string]interface{}{"artist_id": a.ID, "admin_id": ac.UserID}).Info("[artist] profile deleted")
	return nil
}

func (s *artistService) UpdateImage(ctx context.Context, ac access.Context, id uint, file *multipart.FileHeader) (*view.ArtistDetail, error) {
	a, err := s.loadOwned(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	up, err := s.media.Store(ctx, storage.KindArtist, file)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&database.Artist{}).Where("id = ?", a.ID).Update("image_key", up.Key).Error; err != nil {
		s.media.Delete(ctx, up.Key)
		return nil, apperrors.FromDB(err, "artist")
	}
	s.media.Delete(ctx, a.ImageKey)
	a.ImageKey = up.Key
	return s.detail(ctx, ac, a)
}

func (s *artistService) SetVerified(ctx context.Context, ac access.Context, id uint, verified bool) (*view.ArtistDetail, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&database.Artist{}).Where("id = ?", a.ID).Update("verified", verified).Error; err != nil {
		return nil, apperrors.FromDB(err, "artist")
	}
	a.Verified = verified
	return s.detail(ctx, ac, a)
}

func (s *artistService) Songs(ctx context.Context, ac access.Context, id uint, page repository.Page) ([]view.Song, int64, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, 0, err
	}
	q := s.db.WithContext(ctx).Model(&database.Song{}).
		Where("songs.id IN (?)", s.db.Table("song_artists").Select("song_id").Where("artist_id = ?", id)).
		Scopes(repository.VisibleSongs(ac, "songs"))
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "song")
	}
	var songs []database.Song
	if err := q.Order("songs.created_at DESC, songs.id DESC").Scopes(repository.Paginate(page)).Find(&songs).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "song")
	}
	views, err := s.presenter.Songs(ctx, ac, songs, false)
	if err != nil {
		return nil, 0, apperrors.FromDB(err, "song")
	}
	return views, total, nil
}

func (s *artistService) Albums(ctx context.Context, ac access.Context, id uint, page repository.Page) ([]view.Album, int64, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, 0, err
	}
	q := s.db.WithContext(ctx).Model(&database.Album{}).Where("artist_id = ?", id)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "album")
	}
	var albums []database.Album
	if err := q.Order("release_date DESC, created_at DESC").Scopes(repository.Paginate(page)).Find(&albums).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "album")
	}
	views, err := s.presenter.Albums(ctx, ac, albums)
	if err != nil {
		return nil, 0, apperrors.FromDB(err, "album")
	}
	return views, total, nil
}

// Follow is idempotent and notifies the artist's user on the first follow.
func (s *artistService) Follow(ctx context.Context, ac access.Context, id uint) error {
	a, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if a.UserID == ac.UserID {
		return apperrors.BadRequest("you cannot follow your own artist profile")
	}
	db := s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&database.ArtistFollow{}).Where("user_id = ? AND artist_id = ?", ac.UserID, id).Count(&n).Error; err != nil {
		return apperrors.FromDB(err, "follow")
	}
	if n > 0 {
		return nil
	}
	f := database.ArtistFollow{UserID: ac.UserID, ArtistID: id}
	if err := db.Omit("User", "Artist").Create(&f).Error; err != nil {
		if apperrors.StatusOf(apperrors.FromDB(err, "follow")) == 409 {
			return nil
		}
		return apperrors.FromDB(err, "follow")
	}
	s.notifier.Notify(ctx, notification.Event{
		Recipient:  a.UserID,
		Actor:      ac.UserID,
		Type:       database.NotifyNewFollower,
		EntityType: "artist",
		EntityID:   a.ID,
		Message:    "started following " + a.Name,
	})
	return nil
}

func (s *artistService) Unfollow(ctx context.Context, ac access.Context, id uint) error {
	err := s.db.WithContext(ctx).Where("user_id = ? AND artist_id = ?", ac.UserID, id).Delete(&database.ArtistFollow{}).Error
	return apperrors.FromDB(err, "follow")
}

func (s *artistService) Followers(ctx context.Context, ac access.Context, id uint, page repository.Page) ([]view.User, int64, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, 0, err
	}
	q := s.db.WithContext(ctx).Model(&database.User{}).
		Joins("JOIN artist_follows af ON af.user_id = users.id").
		Where("af.artist_id = ?", id)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "user")
	}
	var users []database.User
	if err := q.Order("af.created_at DESC").Scopes(repository.Paginate(page)).Find(&users).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "user")
	}
	return s.presenter.Users(ctx, ac, users), total, nil
}
