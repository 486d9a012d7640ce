// Package notification stores in-app notifications and serves the inbox.
package notification

import (
	"context"
	"time"

	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/repository"
	"gorm.io/gorm"
)

// Event describes one notification to create.
type Event struct {
	Recipient  uint
	Actor      uint
	Type       string
	EntityType string
	EntityID   uint
	Message    string
}

// NotificationService inbox operations plus best-effort delivery.
type NotificationService interface {
	// Notify stores ev. Failures are logged and swallowed; an actor is never
	// notified about their own action.
	Notify(ctx context.Context, ev Event)
	// NotifyMany fans ev out to recipients in one insert.
	NotifyMany(ctx context.Context, recipients []uint, ev Event)

	List(ctx context.Context, userID uint, unreadOnly bool, page repository.Page) ([]database.Notification, int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, userID, id uint) error
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	Delete(ctx context.Context, userID, id uint) error
}

type notificationService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNotificationService creates the notification service.
func NewNotificationService(db *gorm.DB) NotificationService {
	return &notificationService{db: db, now: time.Now}
}

func (s *notificationService) build(recipient uint, ev Event) database.Notification {
	n := database.Notification{
		UserID:     recipient,
		Type:       ev.Type,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Message:    ev.Message,
	}
	if ev.Actor != 0 {
		actor := ev.Actor
		n.ActorID = &actor
	}
	return n
}

func (s *notificationService) Notify(ctx context.Context, ev Event) {
	if ev.Recipient == 0 || ev.Recipient == ev.Actor {
		return
	}
	n := s.build(ev.Recipient, ev)
	if err := s.db.WithContext(ctx).Omit("User", "Actor").Create(&n).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"type":      ev.Type,
			"recipient": ev.Recipient,
		}).Warnf("[notification] create failed: %v", err)
	}
}

func (s *notificationService) NotifyMany(ctx context.Context, recipients []uint, ev Event) {
	rows := make([]database.Notification, 0, len(recipients))
	seen := make(map[uint]struct{}, len(recipients))
	for _, r := range recipients {
		if r == 0 || r == ev.Actor {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		rows = append(rows, s.build(r, ev))
	}
	if len(rows) == 0 {
		return
	}
	if err := s.db.WithContext(ctx).Omit("User", "Actor").CreateInBatches(rows, 200).Error; err != nil {
		logger.WithField("type", ev.Type).Warnf("[notification] fan-out to %d recipients failed: %v", len(rows), err)
	}
}

func (s *notificationService) List(ctx context.Context, userID uint, unreadOnly bool, page repository.Page) ([]database.Notification, int64, error) {
	q := s.db.WithContext(ctx).Model(&database.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "notification")
	}
	var list []database.Notification
	if err := q.Order("created_at DESC, id DESC").Scopes(repository.Paginate(page)).Find(&list).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "notification")
	}
	return list, total, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&database.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).Count(&n).Error
	return n, apperrors.FromDB(err, "notification")
}

// MarkRead is idempotent; another user's notification is reported as missing.
func (s *notificationService) MarkRead(ctx context.Context, userID, id uint) error {
	var n database.Notification
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		return apperrors.FromDB(err, "notification")
	}
	if n.ReadAt != nil {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&database.Notification{}).
		Where("id = ?", id).Update("read_at", s.now().UTC()).Error
	return apperrors.FromDB(err, "notification")
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&database.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", s.now().UTC())
	if res.Error != nil {
		return 0, apperrors.FromDB(res.Error, "notification")
	}
	return res.RowsAffected, nil
}

func (s *notificationService) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&database.Notification{})
	if res.Error != nil {
		return apperrors.FromDB(res.Error, "notification")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("notification")
	}
	return nil
}
