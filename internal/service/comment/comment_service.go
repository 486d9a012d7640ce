// Package comment implements song comments and threaded replies.
package comment

import (
	"context"
	"strings"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/repository"
	"github.com/weiwangfds/melodia/internal/service/notification"
	"github.com/weiwangfds/melodia/internal/service/view"
	"gorm.io/gorm"
)

// CreateCommentRequest POST /api/songs/:id/comments.
type CreateCommentRequest struct {
	Body     string `json:"body" binding:"required,min=1,max=2000"`
	ParentID *uint  `json:"parent_id"`
}

// UpdateCommentRequest PUT /api/comments/:id.
type UpdateCommentRequest struct {
	Body string `json:"body" binding:"required,min=1,max=2000"`
}

// Comment is the JSON shape of a comment.
type Comment struct {
	ID         uint      `json:"id"`
	SongID     uint      `json:"song_id"`
	ParentID   *uint     `json:"parent_id,omitempty"`
	Body       string    `json:"body"`
	IsHidden   bool      `json:"is_hidden"`
	Author     view.User `json:"author"`
	ReplyCount int64     `json:"reply_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CommentService comment operations.
type CommentService interface {
	// ListForSong returns top-level comments, newest first, with reply counts.
	ListForSong(ctx context.Context, ac access.Context, songID uint, page repository.Page) ([]Comment, int64, error)
	// Replies returns the replies of a comment, oldest first.
	Replies(ctx context.Context, ac access.Context, commentID uint, page repository.Page) ([]Comment, int64, error)
	Create(ctx context.Context, ac access.Context, songID uint, req *CreateCommentRequest) (*Comment, error)
	Update(ctx context.Context, ac access.Context, id uint, req *UpdateCommentRequest) (*Comment, error)
	Delete(ctx context.Context, ac access.Context, id uint) error
}

type commentService struct {
	db        *gorm.DB
	presenter *view.Presenter
	notifier  notification.NotificationService
}

// NewCommentService creates the comment service.
func NewCommentService(db *gorm.DB, presenter *view.Presenter, notifier notification.NotificationService) CommentService {
	return &commentService{db: db, presenter: presenter, notifier: notifier}
}

func (s *commentService) song(ctx context.Context, ac access.Context, id uint) (*database.Song, error) {
	var song database.Song
	if err := s.db.WithContext(ctx).First(&song, id).Error; err != nil {
		return nil, apperrors.FromDB(err, "song")
	}
	if !repository.CanSeeSong(ac, &song) {
		return nil, apperrors.NotFound("song")
	}
	return &song, nil
}

func (s *commentService) visible(ctx context.Context, ac access.Context, id uint) (*database.Comment, error) {
	var c database.Comment
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, apperrors.FromDB(err, "comment")
	}
	if !repository.CanSeeComment(ac, &c) {
		return nil, apperrors.NotFound("comment")
	}
	return &c, nil
}

func (s *commentService) present(ctx context.Context, ac access.Context, comments []database.Comment) ([]Comment, error) {
	out := make([]Comment, 0, len(comments))
	if len(comments) == 0 {
		return out, nil
	}
	ids := make([]uint, len(comments))
	userIDs := make([]uint, 0, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
		userIDs = append(userIDs, c.UserID)
	}

	var users []database.User
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, apperrors.FromDB(err, "user")
	}
	authors := make(map[uint]view.User, len(users))
	for i := range users {
		authors[users[i].ID] = s.presenter.User(ctx, ac, &users[i])
	}

	type replyCount struct {
		ParentID uint
		N        int64
	}
	var counts []replyCount
	err := s.db.WithContext(ctx).Model(&database.Comment{}).
		Select("parent_id, COUNT(*) AS n").
		Where("parent_id IN ?", ids).
		Scopes(repository.VisibleComments(ac, "comments")).
		Group("parent_id").
		Scan(&counts).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "comment")
	}
	replies := make(map[uint]int64, len(counts))
	for _, rc := range counts {
		replies[rc.ParentID] = rc.N
	}

	for _, c := range comments {
		out = append(out, Comment{
			ID:         c.ID,
			SongID:     c.SongID,
			ParentID:   c.ParentID,
			Body:       c.Body,
			IsHidden:   c.IsHidden,
			Author:     authors[c.UserID],
			ReplyCount: replies[c.ID],
			CreatedAt:  c.CreatedAt,
			UpdatedAt:  c.UpdatedAt,
		})
	}
	return out, nil
}

func (s *commentService) list(ctx context.Context, ac access.Context, db *gorm.DB, order string, page repository.Page) ([]Comment, int64, error) {
	db = db.Scopes(repository.VisibleComments(ac, "comments"))
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "comment")
	}
	var comments []database.Comment
	if err := db.Order(order).Scopes(repository.Paginate(page)).Find(&comments).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "comment")
	}
	out, err := s.present(ctx, ac, comments)
	return out, total, err
}

func (s *commentService) ListForSong(ctx context.Context, ac access.Context, songID uint, page repository.Page) ([]Comment, int64, error) {
	if _, err := s.song(ctx, ac, songID); err != nil {
		return nil, 0, err
	}
	db := s.db.WithContext(ctx).Model(&database.Comment{}).Where("song_id = ? AND parent_id IS NULL", songID)
	return s.list(ctx, ac, db, "created_at DESC, id DESC", page)
}

func (s *commentService) Replies(ctx context.Context, ac access.Context, commentID uint, page repository.Page) ([]Comment, int64, error) {
	parent, err := s.visible(ctx, ac, commentID)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.song(ctx, ac, parent.SongID); err != nil {
		return nil, 0, err
	}
	db := s.db.WithContext(ctx).Model(&database.Comment{}).Where("parent_id = ?", parent.ID)
	return s.list(ctx, ac, db, "created_at, id", page)
}

// Create adds a comment. A reply to a reply is attached to the top-level
// comment of that thread.
func (s *commentService) Create(ctx context.Context, ac access.Context, songID uint, req *CreateCommentRequest) (*Comment, error) {
	song, err := s.song(ctx, ac, songID)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, apperrors.Validation(map[string]string{"body": "body cannot be blank"})
	}

	c := database.Comment{SongID: song.ID, UserID: ac.UserID, Body: body}
	var parent *database.Comment
	if req.ParentID != nil {
		parent, err = s.visible(ctx, ac, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.SongID != song.ID {
			return nil, apperrors.BadRequest("parent comment belongs to another song")
		}
		threadID := parent.ID
		if parent.ParentID != nil {
			threadID = *parent.ParentID
		}
		c.ParentID = &threadID
	}

	if err := s.db.WithContext(ctx).Omit("Song", "User", "Parent").Create(&c).Error; err != nil {
		return nil, apperrors.FromDB(err, "comment")
	}

	if parent != nil {
		s.notifier.Notify(ctx, notification.Event{
			Recipient:  parent.UserID,
			Actor:      ac.UserID,
			Type:       database.NotifyCommentReply,
			EntityType: "comment",
			EntityID:   c.ID,
			Message:    "replied to your comment on " + song.Title,
		})
	} else {
		s.notifier.Notify(ctx, notification.Event{
			Recipient:  song.UploaderID,
			Actor:      ac.UserID,
			Type:       database.NotifyNewComment,
			EntityType: "comment",
			EntityID:   c.ID,
			Message:    "commented on " + song.Title,
		})
	}

	out, err := s.present(ctx, ac, []database.Comment{c})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// Update is restricted to the author.
func (s *commentService) Update(ctx context.Context, ac access.Context, id uint, req *UpdateCommentRequest) (*Comment, error) {
	c, err := s.visible(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if !ac.IsOwner(c.UserID) {
		return nil, apperrors.Forbidden("only the author can edit this comment")
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, apperrors.Validation(map[string]string{"body": "body cannot be blank"})
	}
	if err := s.db.WithContext(ctx).Model(c).Update("body", body).Error; err != nil {
		return nil, apperrors.FromDB(err, "comment")
	}
	c.Body = body
	out, err := s.present(ctx, ac, []database.Comment{*c})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// Delete removes the comment and its replies.
func (s *commentService) Delete(ctx context.Context, ac access.Context, id uint) error {
	c, err := s.visible(ctx, ac, id)
	if err != nil {
		return err
	}
	if !ac.CanModify(c.UserID) {
		return apperrors.Forbidden("only the author or an admin can delete this comment")
	}
	err = s.db.WithContext(ctx).Delete(&database.Comment{}, c.ID).Error
	return apperrors.FromDB(err, "comment")
}
