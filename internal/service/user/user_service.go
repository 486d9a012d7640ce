// Package user manages profiles, follows and the admin user list.
package user

import (
	"context"
	"mime/multipart"
	"strings"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/auth"
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

// UpdateProfileRequest PUT /api/users/me. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,max=100"`
	Bio         *string `json:"bio" binding:"omitempty,max=1000"`
}

// ChangePasswordRequest PUT /api/users/me/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

// AdminListQuery filters GET /api/admin/users.
type AdminListQuery struct {
	Q      string
	Role   string
	Status string
}

// UserService profile and social graph operations.
type UserService interface {
	GetProfile(ctx context.Context, ac access.Context, userID uint) (*view.Profile, error)
	UpdateProfile(ctx context.Context, ac access.Context, req *UpdateProfileRequest) (*view.User, error)
	ChangePassword(ctx context.Context, ac access.Context, req *ChangePasswordRequest) error
	UpdateAvatar(ctx context.Context, ac access.Context, file *multipart.FileHeader) (*view.User, error)
	DeleteAccount(ctx context.Context, ac access.Context) error

	Followers(ctx context.Context, ac access.Context, userID uint, page repository.Page) ([]view.User, int64, error)
	Following(ctx context.Context, ac access.Context, userID uint, page repository.Page) ([]view.User, int64, error)
	// Follow is idempotent. Following yourself is rejected.
	Follow(ctx context.Context, ac access.Context, userID uint) error
	Unfollow(ctx context.Context, ac access.Context, userID uint) error

	AdminList(ctx context.Context, ac access.Context, q AdminListQuery, page repository.Page) ([]view.User, int64, error)
	AdminSetStatus(ctx context.Context, ac access.Context, userID uint, status string) (*view.User, error)
	AdminSetRole(ctx context.Context, ac access.Context, userID uint, role string) (*view.User, error)
}

type userService struct {
	db         *gorm.DB
	media      *media.Service
	presenter  *view.Presenter
	notifier   notification.NotificationService
	bcryptCost int
}

// NewUserService creates the user service.
func NewUserService(db *gorm.DB, mediaService *media.Service, presenter *view.Presenter, notifier notification.NotificationService, bcryptCost int) UserService {
	return &userService{db: db, media: mediaService, presenter: presenter, notifier: notifier, bcryptCost: bcryptCost}
}

func (s *userService) load(ctx context.Context, id uint) (*database.User, error) {
	var u database.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, apperrors.FromDB(err, "user")
	}
	return &u, nil
}

func (s *userService) GetProfile(ctx context.Context, ac access.Context, userID uint) (*view.Profile, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.presenter.Profile(ctx, ac, u)
	if err != nil {
		return nil, apperrors.FromDB(err, "user")
	}
	return p, nil
}

func (s *userService) UpdateProfile(ctx context.Context, ac access.Context, req *UpdateProfileRequest) (*view.User, error) {
	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*req.DisplayName)
	}
	if req.Bio != nil {
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&database.User{}).Where("id = ?", ac.UserID).Updates(updates).Error; err != nil {
			return nil, apperrors.FromDB(err, "user")
		}
	}
	u, err := s.load(ctx, ac.UserID)
	if err != nil {
		return nil, err
	}
	v := s.presenter.User(ctx, ac, u)
	return &v, nil
}

func (s *userService) ChangePassword(ctx context.Context, ac access.Context, req *ChangePasswordRequest) error {
	u, err := s.load(ctx, ac.UserID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, req.CurrentPassword) {
		return apperrors.New(apperrors.ErrInvalidCredentials, "current password is incorrect")
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		return apperrors.Validation(map[string]string{"new_password": err.Error()})
	}
	hash, err := auth.HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return apperrors.Internal(err)
	}

	// Outstanding refresh tokens die with the old password.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.User{}).Where("id = ?", u.ID).Update("password_hash", hash).Error; err != nil {
			return apperrors.FromDB(err, "user")
		}
		err := tx.Model(&database.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", u.ID).
			Update("revoked_at", time.Now().UTC()).Error
		return apperrors.FromDB(err, "refresh token")
	})
}

func (s *userService) UpdateAvatar(ctx context.Context, ac access.Context, file *multipart.FileHeader) (*view.User, error) {
	u, err := s.load(ctx, ac.UserID)
	if err != nil {
		return nil, err
	}
	up, err := s.media.Store(ctx, storage.KindAvatar, file)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&database.User{}).Where("id = ?", u.ID).Update("avatar_key", up.Key).Error; err != nil {
		s.media.Delete(ctx, up.Key)
		return nil, apperrors.FromDB(err, "user")
	}
	s.media.Delete(ctx, u.AvatarKey)
	u.AvatarKey = up.Key
	v := s.presenter.User(ctx, ac, u)
	return &v, nil
}

// DeleteAccount removes the user; rows referencing it cascade. Blobs owned by
// the account are removed after the commit.
func (s *userService) DeleteAccount(ctx context.Context, ac access.Context) error {
	u, err := s.load(ctx, ac.UserID)
	if err != nil {
		return err
	}
	db := s.db.WithContext(ctx)

	keys := []string{u.AvatarKey}
	var songs []database.Song
	if err := db.Select("audio_key", "cover_key").Where("uploader_id = ?", u.ID).Find(&songs).Error; err != nil {
		return apperrors.FromDB(err, "song")
	}
	for _, sg := range songs {
		keys = append(keys, sg.AudioKey, sg.CoverKey)
	}
	var playlistCovers []string
	if err := db.Model(&database.Playlist{}).Where("owner_id = ? AND cover_key <> ''", u.ID).Pluck("cover_key", &playlistCovers).Error; err != nil {
		return apperrors.FromDB(err, "playlist")
	}
	keys = append(keys, playlistCovers...)
	var artist database.Artist
	if err := db.Where("user_id = ?", u.ID).Limit(1).Find(&artist).Error; err != nil {
		return apperrors.FromDB(err, "artist")
	}
	if artist.ID != 0 {
		var albumCovers []string
		if err := db.Model(&database.Album{}).Where("artist_id = ? AND cover_key <> ''", artist.ID).Pluck("cover_key", &albumCovers).Error; err != nil {
			return apperrors.FromDB(err, "album")
		}
		keys = append(keys, artist.ImageKey)
		keys = append(keys, albumCovers...)
	}

	if err := db.Delete(&database.User{}, u.ID).Error; err != nil {
		return apperrors.FromDB(err, "user")
	}
	s.media.Delete(ctx, keys...)
	logger.WithField("user_id", u.ID).Info("[user] account deleted")
	return nil
}

func (s *userService) followList(ctx context.Context, ac access.Context, userID uint, page repository.Page, joinCol, whereCol string) ([]view.User, int64, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return nil, 0, err
	}
	q := s.db.WithContext(ctx).Model(&database.User{}).
		Joins("JOIN user_follows uf ON uf."+joinCol+" = users.id").
		Where("uf."+whereCol+" = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "user")
	}
	var users []database.User
	if err := q.Order("uf.created_at DESC").Scopes(repository.Paginate(page)).Find(&users).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "user")
	}
	return s.presenter.Users(ctx, ac, users), total, nil
}

func (s *userService) Followers(ctx context.Context, ac access.Context, userID uint, page repository.Page) ([]view.User, int64, error) {
	return s.followList(ctx, ac, userID, page, "follower_id", "followee_id")
}

func (s *userService) Following(ctx context.Context, ac access.Context, userID uint, page repository.Page) ([]view.User, int64, error) {
	return s.followList(ctx, ac, userID, page, "followee_id", "follower_id")
}

func (s *userService) Follow(ctx context.Context, ac access.Context, userID uint) error {
	if userID == ac.UserID {
		return apperrors.BadRequest("you cannot follow yourself")
	}
	target, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	var existing int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&database.UserFollow{}).
		Where("follower_id = ? AND followee_id = ?", ac.UserID, userID).Count(&existing).Error; err != nil {
		return apperrors.FromDB(err, "follow")
	}
	if existing > 0 {
		return nil
	}
	follow := database.UserFollow{FollowerID: ac.UserID, FolloweeID: userID}
	if err := db.Omit("Follower", "Followee").Create(&follow).Error; err != nil {
		// A concurrent follow already inserted the row.
		if apperrors.StatusOf(apperrors.FromDB(err, "follow")) == 409 {
			return nil
		}
		return apperrors.FromDB(err, "follow")
	}

	s.notifier.Notify(ctx, notification.Event{
		Recipient:  target.ID,
		Actor:      ac.UserID,
		Type:       database.NotifyNewFollower,
		EntityType: "user",
		EntityID:   ac.UserID,
		Message:    "started following you",
	})
	return nil
}

func (s *userService) Unfollow(ctx context.Context, ac access.Context, userID uint) error {
	err := s.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", ac.UserID, userID).
		Delete(&database.UserFollow{}).Error
	return apperrors.FromDB(err, "follow")
}

func (s *userService) AdminList(ctx context.Context, ac access.Context, q AdminListQuery, page repository.Page) ([]view.User, int64, error) {
	db := s.db.WithContext(ctx).Model(&database.User{})
	db = db.Scopes(repository.SearchAny(q.Q, "username", "email", "display_name"))
	if q.Role != "" {
		db = db.Where("role = ?", q.Role)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "user")
	}
	var users []database.User
	if err := db.Order("created_at DESC, id DESC").Scopes(repository.Paginate(page)).Find(&users).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "user")
	}
	return s.presenter.Users(ctx, ac, users), total, nil
}

// AdminSetStatus changes an account status. Suspending or banning revokes
// every refresh token of the account.
func (s *userService) AdminSetStatus(ctx context.Context, ac access.Context, userID uint, status string) (*view.User, error) {
	if userID == ac.UserID && status != database.StatusActive {
		return nil, apperrors.BadRequest("you cannot deactivate your own account")
	}
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.User{}).Where("id = ?", u.ID).Update("status", status).Error; err != nil {
			return err
		}
		if status == database.StatusActive {
			return nil
		}
		return tx.Model(&database.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", u.ID).
			Update("revoked_at", time.Now().UTC()).Error
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "user")
	}
	logger.WithFields(map[string]interface{}{"user_id": u.ID, "admin_id": ac.UserID, "status": status}).Info("[user] status changed")
	u.Status = status
	v := s.presenter.User(ctx, ac, u)
	return &v, nil
}

func (s *userService) AdminSetRole(ctx context.Context, ac access.Context, userID uint, role string) (*view.User, error) {
	if userID == ac.UserID && role != database.RoleAdmin {
		return nil, apperrors.BadRequest("you cannot remove your own admin role")
	}
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&database.User{}).Where("id = ?", u.ID).Update("role", role).Error; err != nil {
		return nil, apperrors.FromDB(err, "user")
	}
	logger.WithFields(map[string]interface{}{"user_id": u.ID, "admin_id": ac.UserID, "role": role}).Info("[user] role changed")
	u.Role = role
	v := s.presenter.User(ctx, ac, u)
	return &v, nil
}
