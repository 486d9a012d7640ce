package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/repository"
	"github.com/weiwangfds/melodia/internal/service/notification"
	"gorm.io/gorm"
)

// CreateAppealRequest POST /api/appeals.
type CreateAppealRequest struct {
	ReportType string `json:"report_type" binding:"required,oneof=song comment user playlist"`
	ReportID   uint   `json:"report_id" binding:"required"`
	Reason     string `json:"reason" binding:"required,min=1,max=2000"`
}

// DecideAppealRequest PUT /api/admin/appeals/:id/decide.
type DecideAppealRequest struct {
	Approve  *bool  `json:"approve" binding:"required"`
	Response string `json:"response" binding:"max=2000"`
}

func appealable(action string) bool {
	return action == database.ActionHide || action == database.ActionSuspend
}

func (s *moderationService) CreateAppeal(ctx context.Context, ac access.Context, req *CreateAppealRequest) (*database.Appeal, error) {
	r, err := s.load(ctx, s.db, req.ReportType, req.ReportID)
	if err != nil {
		return nil, err
	}
	if r.Status != database.ReportResolved || !appealable(r.Action) {
		return nil, apperrors.BadRequest("only hidden content and suspensions can be appealed")
	}
	owner, err := s.targetOwner(ctx, s.db, nil, r.Type, r.TargetID)
	if err != nil {
		return nil, err
	}
	if owner != ac.UserID {
		return nil, apperrors.Forbidden("only the affected user can appeal this decision")
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperrors.Validation(map[string]string{"reason": "reason cannot be blank"})
	}
	appeal := database.Appeal{
		UserID:     ac.UserID,
		ReportType: r.Type,
		ReportID:   r.ID,
		Reason:     reason,
		Status:     database.AppealPending,
	}
	if err := s.db.WithContext(ctx).Omit("User").Create(&appeal).Error; err != nil {
		return nil, conflictAs(apperrors.FromDB(err, "appeal"), "this decision has already been appealed")
	}
	logger.WithFields(map[string]interface{}{
		"appeal_id": appeal.ID, "type": r.Type, "report_id": r.ID, "user_id": ac.UserID,
	}).Info("[moderation] appeal filed")
	return &appeal, nil
}

func (s *moderationService) listAppeals(db *gorm.DB, page repository.Page) ([]database.Appeal, int64, error) {
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "appeal")
	}
	var appeals []database.Appeal
	if err := db.Order("created_at DESC, id DESC").Scopes(repository.Paginate(page)).Find(&appeals).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "appeal")
	}
	return appeals, total, nil
}

func (s *moderationService) MyAppeals(ctx context.Context, ac access.Context, page repository.Page) ([]database.Appeal, int64, error) {
	return s.listAppeals(s.db.WithContext(ctx).Model(&database.Appeal{}).Where("user_id = ?", ac.UserID), page)
}

func (s *moderationService) AdminAppeals(ctx context.Context, status string, page repository.Page) ([]database.Appeal, int64, error) {
	db := s.db.WithContext(ctx).Model(&database.Appeal{})
	if status != "" {
		db = db.Where("status = ?", status)
	}
	return s.listAppeals(db, page)
}

func (s *moderationService) DecideAppeal(ctx context.Context, ac access.Context, id uint, req *DecideAppealRequest) (*database.Appeal, error) {
	var appeal database.Appeal
	if err := s.db.WithContext(ctx).First(&appeal, id).Error; err != nil {
		return nil, apperrors.FromDB(err, "appeal")
	}
	if appeal.Status != database.AppealPending {
		return nil, apperrors.Conflict("appeal has already been decided")
	}
	approve := req.Approve != nil && *req.Approve
	status := database.AppealRejected
	if approve {
		status = database.AppealApproved
	}

	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if approve {
			if err := s.reverse(ctx, tx, appeal.ReportType, appeal.ReportID); err != nil {
				return err
			}
		}
		res := tx.Model(&database.Appeal{}).
			Where("id = ? AND status = ?", appeal.ID, database.AppealPending).
			Updates(map[string]interface{}{
				"status":      status,
				"reviewer_id": ac.UserID,
				"response":    strings.TrimSpace(req.Response),
				"reviewed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("appeal has already been decided")
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "appeal")
	}

	logger.WithFields(map[string]interface{}{"appeal_id": appeal.ID, "status": status, "admin_id": ac.UserID}).Info("[moderation] appeal decided")

	msg := "your appeal was rejected"
	if approve {
		msg = "your appeal was approved and the decision reversed"
	}
	s.notifier.Notify(ctx, notification.Event{
		Recipient:  appeal.UserID,
		Actor:      ac.UserID,
		Type:       database.NotifyAppealResolved,
		EntityType: "appeal",
		EntityID:   appeal.ID,
		Message:    msg,
	})

	if err := s.db.WithContext(ctx).First(&appeal, appeal.ID).Error; err != nil {
		return nil, apperrors.FromDB(err, "appeal")
	}
	return &appeal, nil
}

// reverse undoes the action recorded on a report.
func (s *moderationService) reverse(ctx context.Context, tx *gorm.DB, reportType string, reportID uint) error {
	r, err := s.load(ctx, tx, reportType, reportID)
	if err != nil {
		return err
	}
	switch r.Action {
	case database.ActionHide:
		return setHidden(tx, r.Type, r.TargetID, false)
	case database.ActionSuspend:
		owner, err := s.targetOwner(ctx, tx, nil, r.Type, r.TargetID)
		if err != nil {
			return err
		}
		return tx.Model(&database.User{}).
			Where("id = ? AND status = ?", owner, database.StatusSuspended).
			Update("status", database.StatusActive).Error
	}
	return apperrors.BadRequest("this decision cannot be reversed")
}
