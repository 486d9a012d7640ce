// Package moderation handles user reports, their resolution and appeals.
//
// Reports live in four sibling tables, one per target type. Listing and
// aggregation read them through UNION ALL queries whose branches are
// generated from database.ReportTables.
package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/media"
	"github.com/weiwangfds/melodia/internal/repository"
	"github.com/weiwangfds/melodia/internal/service/notification"
	"gorm.io/gorm"
)

// Report reasons.
const (
	ReasonSpam       = "spam"
	ReasonCopyright  = "copyright"
	ReasonOffensive  = "offensive"
	ReasonHarassment = "harassment"
	ReasonOther      = "other"
)

// CreateReportRequest POST /api/reports.
type CreateReportRequest struct {
	TargetType string `json:"target_type" binding:"required,oneof=song comment user playlist"`
	TargetID   uint   `json:"target_id" binding:"required"`
	Reason     string `json:"reason" binding:"required,oneof=spam copyright offensive harassment other"`
	Details    string `json:"details" binding:"max=1000"`
}

// ResolveRequest PUT /api/admin/reports/:type/:id/resolve.
type ResolveRequest struct {
	Action string `json:"action" binding:"required,oneof=none hide remove suspend"`
	Note   string `json:"note" binding:"max=1000"`
}

// DismissRequest PUT /api/admin/reports/:type/:id/dismiss.
type DismissRequest struct {
	Note string `json:"note" binding:"max=1000"`
}

// ReportQuery filters the admin report list.
type ReportQuery struct {
	Type   string
	Status string
}

// ReportItem is a report of any target type.
type ReportItem struct {
	Type     string `json:"type"`
	TargetID uint   `json:"target_id"`
	database.ReportBase
}

// ModerationService report, appeal and moderation reporting operations.
type ModerationService interface {
	CreateReport(ctx context.Context, ac access.Context, req *CreateReportRequest) (*ReportItem, error)
	MyReports(ctx context.Context, ac access.Context, page repository.Page) ([]ReportItem, int64, error)
	// AdminReports lists reports of all types, newest first.
	AdminReports(ctx context.Context, q ReportQuery, page repository.Page) ([]ReportItem, int64, error)
	Resolve(ctx context.Context, ac access.Context, reportType string, id uint, req *ResolveRequest) (*ReportItem, error)
	Dismiss(ctx context.Context, ac access.Context, reportType string, id uint, req *DismissRequest) (*ReportItem, error)

	CreateAppeal(ctx context.Context, ac access.Context, req *CreateAppealRequest) (*database.Appeal, error)
	MyAppeals(ctx context.Context, ac access.Context, page repository.Page) ([]database.Appeal, int64, error)
	AdminAppeals(ctx context.Context, status string, page repository.Page) ([]database.Appeal, int64, error)
	// DecideAppeal approves or rejects an appeal. Approval reverses the
	// moderation action of the report.
	DecideAppeal(ctx context.Context, ac access.Context, id uint, req *DecideAppealRequest) (*database.Appeal, error)

	// Summary aggregates moderation activity over the last days days.
	Summary(ctx context.Context, days int) (*Summary, error)
}

type moderationService struct {
	db       *gorm.DB
	media    *media.Service
	notifier notification.NotificationService
	now      func() time.Time
}

// NewModerationService creates the moderation service.
func NewModerationService(db *gorm.DB, mediaService *media.Service, notifier notification.NotificationService) ModerationService {
	return &moderationService{db: db, media: mediaService, notifier: notifier, now: time.Now}
}

func reportTable(reportType string) (table, column string, err error) {
	t, ok := database.ReportTables[reportType]
	if !ok {
		return "", "", apperrors.BadRequestf("unknown report type %q", reportType)
	}
	return t.Table, t.TargetColumn, nil
}

// newReport builds the row for reportType and returns it together with its
// embedded base, whose ID is filled in on create.
func newReport(reportType string, base database.ReportBase, targetID uint) (interface{}, *database.ReportBase) {
	switch reportType {
	case database.ReportSong:
		r := &database.SongReport{ReportBase: base, SongID: targetID}
		return r, &r.ReportBase
	case database.ReportComment:
		r := &database.CommentReport{ReportBase: base, CommentID: targetID}
		return r, &r.ReportBase
	case database.ReportUser:
		r := &database.UserReport{ReportBase: base, ReportedUserID: targetID}
		return r, &r.ReportBase
	default:
		r := &database.PlaylistReport{ReportBase: base, PlaylistID: targetID}
		return r, &r.ReportBase
	}
}

// reportRow scans a report from any of the report tables.
type reportRow struct {
	database.ReportBase
	TargetID uint
}

func (s *moderationService) load(ctx context.Context, db *gorm.DB, reportType string, id uint) (*ReportItem, error) {
	table, column, err := reportTable(reportType)
	if err != nil {
		return nil, err
	}
	var row reportRow
	err = db.WithContext(ctx).Table(table).
		Select(table+".*, "+column+" AS target_id").
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "report")
	}
	return &ReportItem{Type: reportType, TargetID: row.TargetID, ReportBase: row.ReportBase}, nil
}

// targetOwner returns the user responsible for a report target. When ac is
// non-nil the target must also be visible to it.
func (s *moderationService) targetOwner(ctx context.Context, db *gorm.DB, ac *access.Context, reportType string, id uint) (uint, error) {
	db = db.WithContext(ctx)
	switch reportType {
	case database.ReportSong:
		var song database.Song
		if err := db.Select("id", "uploader_id", "status").First(&song, id).Error; err != nil {
			return 0, apperrors.FromDB(err, "song")
		}
		if ac != nil && !repository.CanSeeSong(*ac, &song) {
			return 0, apperrors.NotFound("song")
		}
		return song.UploaderID, nil
	case database.ReportComment:
		var c database.Comment
		if err := db.Select("id", "user_id", "is_hidden").First(&c, id).Error; err != nil {
			return 0, apperrors.FromDB(err, "comment")
		}
		if ac != nil && !repository.CanSeeComment(*ac, &c) {
			return 0, apperrors.NotFound("comment")
		}
		return c.UserID, nil
	case database.ReportUser:
		var u database.User
		if err := db.Select("id").First(&u, id).Error; err != nil {
			return 0, apperrors.FromDB(err, "user")
		}
		return u.ID, nil
	case database.ReportPlaylist:
		var p database.Playlist
		if err := db.Select("id", "owner_id", "is_public").First(&p, id).Error; err != nil {
			return 0, apperrors.FromDB(err, "playlist")
		}
		if ac != nil && !repository.CanSeePlaylist(*ac, &p) {
			return 0, apperrors.NotFound("playlist")
		}
		return p.OwnerID, nil
	}
	return 0, apperrors.BadRequestf("unknown report type %q", reportType)
}

func (s *moderationService) CreateReport(ctx context.Context, ac access.Context, req *CreateReportRequest) (*ReportItem, error) {
	if _, _, err := reportTable(req.TargetType); err != nil {
		return nil, err
	}
	owner, err := s.targetOwner(ctx, s.db, &ac, req.TargetType, req.TargetID)
	if err != nil {
		return nil, err
	}
	if owner == ac.UserID {
		return nil, apperrors.BadRequest("you cannot report yourself or your own content")
	}

	row, base := newReport(req.TargetType, database.ReportBase{
		ReporterID: ac.UserID,
		Reason:     req.Reason,
		Details:    strings.TrimSpace(req.Details),
		Status:     database.ReportPending,
	}, req.TargetID)
	if err := s.db.WithContext(ctx).Omit("Reporter").Create(row).Error; err != nil {
		return nil, conflictAs(apperrors.FromDB(err, "report"), "you already have a pending report for this target")
	}
	logger.WithFields(map[string]interface{}{
		"type": req.TargetType, "target_id": req.TargetID, "report_id": base.ID, "reporter_id": ac.UserID,
	}).Info("[moderation] report created")
	return &ReportItem{Type: req.TargetType, TargetID: req.TargetID, ReportBase: *base}, nil
}

// conflictAs replaces the message of a 409 with msg.
func conflictAs(err error, msg string) error {
	if appErr, ok := apperrors.GetAppError(err); ok && appErr.Code == apperrors.ErrConflict {
		return apperrors.Conflict(msg).WithOriginalError(appErr.OriginalError)
	}
	return err
}

// unionReports builds one UNION ALL branch per type selecting the type label,
// id and created_at of reports matching where. args are bound once per branch.
func unionReports(types []string, where string, args ...interface{}) (string, []interface{}) {
	branches := make([]string, 0, len(types))
	bound := make([]interface{}, 0, len(types)*len(args))
	for _, t := range types {
		table := database.ReportTables[t].Table
		q := fmt.Sprintf("SELECT '%s' AS report_type, id, created_at FROM %s", t, table)
		if where != "" {
			q += " WHERE " + where
		}
		branches = append(branches, q)
		bound = append(bound, args...)
	}
	return strings.Join(branches, " UNION ALL "), bound
}

type reportKey struct {
	ReportType string
	ID         uint
}

// page runs a union listing and loads the full rows in the listed order.
func (s *moderationService) page(ctx context.Context, types []string, where string, args []interface{}, page repository.Page) ([]ReportItem, int64, error) {
	page = repository.NewPage(page.Page, page.PageSize)
	union, bound := unionReports(types, where, args...)
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Raw("SELECT COUNT(*) FROM ("+union+") AS r", bound...).Scan(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "report")
	}

	var keys []reportKey
	err := db.Raw(union+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(bound, page.PageSize, page.Offset())...).Scan(&keys).Error
	if err != nil {
		return nil, 0, apperrors.FromDB(err, "report")
	}

	byType := map[string][]uint{}
	for _, k := range keys {
		byType[k.ReportType] = append(byType[k.ReportType], k.ID)
	}
	loaded := make(map[reportKey]ReportItem, len(keys))
	for t, ids := range byType {
		table, column, err := reportTable(t)
		if err != nil {
			return nil, 0, err
		}
		var rows []reportRow
		err = db.Table(table).Select(table+".*, "+column+" AS target_id").Where("id IN ?", ids).Find(&rows).Error
		if err != nil {
			return nil, 0, apperrors.FromDB(err, "report")
		}
		for _, r := range rows {
			loaded[reportKey{t, r.ID}] = ReportItem{Type: t, TargetID: r.TargetID, ReportBase: r.ReportBase}
		}
	}

	out := make([]ReportItem, 0, len(keys))
	for _, k := range keys {
		if r, ok := loaded[k]; ok {
			out = append(out, r)
		}
	}
	return out, total, nil
}

func (s *moderationService) MyReports(ctx context.Context, ac access.Context, page repository.Page) ([]ReportItem, int64, error) {
	return s.page(ctx, database.ReportTypes, "reporter_id = ?", []interface{}{ac.UserID}, page)
}

func (s *moderationService) AdminReports(ctx context.Context, q ReportQuery, page repository.Page) ([]ReportItem, int64, error) {
	types := database.ReportTypes
	if q.Type != "" {
		if _, _, err := reportTable(q.Type); err != nil {
			return nil, 0, err
		}
		types = []string{q.Type}
	}
	var where string
	var args []interface{}
	if q.Status != "" {
		where = "status = ?"
		args = append(args, q.Status)
	}
	return s.page(ctx, types, where, args, page)
}

// review marks a pending report as reviewed inside tx. A report reviewed
// concurrently yields a conflict.
func (s *moderationService) review(tx *gorm.DB, ac access.Context, r *ReportItem, status, action, note string) error {
	table, _, err := reportTable(r.Type)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res := tx.Table(table).
		Where("id = ? AND status = ?", r.ID, database.ReportPending).
		Updates(map[string]interface{}{
			"status":      status,
			"action":      action,
			"reviewer_id": ac.UserID,
			"review_note": strings.TrimSpace(note),
			"reviewed_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict("report has already been reviewed")
	}
	return nil
}

func (s *moderationService) pending(ctx context.Context, reportType string, id uint) (*ReportItem, error) {
	r, err := s.load(ctx, s.db, reportType, id)
	if err != nil {
		return nil, err
	}
	if r.Status != database.ReportPending {
		return nil, apperrors.Conflict("report has already been reviewed")
	}
	return r, nil
}

func (s *moderationService) Resolve(ctx context.Context, ac access.Context, reportType string, id uint, req *ResolveRequest) (*ReportItem, error) {
	r, err := s.pending(ctx, reportType, id)
	if err != nil {
		return nil, err
	}
	if req.Action == database.ActionHide && r.Type == database.ReportUser {
		return nil, apperrors.BadRequest("user reports cannot be resolved by hiding")
	}

	var blobs []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		blobs, err = s.apply(tx, r, req.Action)
		if err != nil {
			return err
		}
		return s.review(tx, ac, r, database.ReportResolved, req.Action, req.Note)
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "report")
	}
	s.media.Delete(ctx, blobs...)

	logger.WithFields(map[string]interface{}{
		"type": r.Type, "report_id": r.ID, "target_id": r.TargetID, "action": req.Action, "admin_id": ac.UserID,
	}).Info("[moderation] report resolved")

	s.notifier.Notify(ctx, notification.Event{
		Recipient:  r.ReporterID,
		Actor:      ac.UserID,
		Type:       database.NotifyReportResolved,
		EntityType: "report",
		EntityID:   r.ID,
		Message:    fmt.Sprintf("your report about a %s was resolved (action: %s)", r.Type, req.Action),
	})
	return s.load(ctx, s.db, r.Type, r.ID)
}

func (s *moderationService) Dismiss(ctx context.Context, ac access.Context, reportType string, id uint, req *DismissRequest) (*ReportItem, error) {
	r, err := s.pending(ctx, reportType, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.review(tx, ac, r, database.ReportDismissed, database.ActionNone, req.Note)
	})
	if err != nil {
		return nil, apperrors.FromDB(err, "report")
	}
	logger.WithFields(map[string]interface{}{"type": r.Type, "report_id": r.ID, "admin_id": ac.UserID}).Info("[moderation] report dismissed")

	s.notifier.Notify(ctx, notification.Event{
		Recipient:  r.ReporterID,
		Actor:      ac.UserID,
		Type:       database.NotifyReportResolved,
		EntityType: "report",
		EntityID:   r.ID,
		Message:    fmt.Sprintf("your report about a %s was reviewed and dismissed", r.Type),
	})
	return s.load(ctx, s.db, r.Type, r.ID)
}

// apply carries out a moderation action inside tx and returns the blob keys
// to delete once the transaction has committed.
func (s *moderationService) apply(tx *gorm.DB, r *ReportItem, action string) ([]string, error) {
	switch action {
	case database.ActionNone:
		return nil, nil
	case database.ActionHide:
		return nil, setHidden(tx, r.Type, r.TargetID, true)
	case database.ActionSuspend:
		owner, err := s.targetOwner(tx.Statement.Context, tx, nil, r.Type, r.TargetID)
		if err != nil {
			return nil, err
		}
		return nil, suspend(tx, owner)
	case database.ActionRemove:
		return remove(tx, r.Type, r.TargetID)
	}
	return nil, apperrors.BadRequestf("unknown action %q", action)
}

// setHidden hides or restores a target: songs and comments are hidden,
// playlists are made private.
func setHidden(tx *gorm.DB, reportType string, id uint, hidden bool) error {
	var res *gorm.DB
	switch reportType {
	case database.ReportSong:
		status := database.SongActive
		if hidden {
			status = database.SongHidden
		}
		res = tx.Model(&database.Song{}).Where("id = ?", id).Update("status", status)
	case database.ReportComment:
		res = tx.Model(&database.Comment{}).Where("id = ?", id).Update("is_hidden", hidden)
	case database.ReportPlaylist:
		res = tx.Model(&database.Playlist{}).Where("id = ?", id).Update("is_public", !hidden)
	default:
		return apperrors.BadRequestf("%s reports cannot be hidden", reportType)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(reportType)
	}
	return nil
}

func suspend(tx *gorm.DB, userID uint) error {
	var u database.User
	if err := tx.Select("id", "role").First(&u, userID).Error; err != nil {
		return apperrors.FromDB(err, "user")
	}
	if u.Role == database.RoleAdmin {
		return apperrors.BadRequest("administrators cannot be suspended")
	}
	if err := tx.Model(&database.User{}).Where("id = ?", u.ID).Update("status", database.StatusSuspended).Error; err != nil {
		return err
	}
	return tx.Model(&database.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", u.ID).
		Update("revoked_at", time.Now().UTC()).Error
}

// remove deletes the target. Reported accounts are banned rather than deleted.
func remove(tx *gorm.DB, reportType string, id uint) ([]string, error) {
	switch reportType {
	case database.ReportSong:
		var song database.Song
		if err := tx.Select("id", "audio_key", "cover_key").First(&song, id).Error; err != nil {
			return nil, apperrors.FromDB(err, "song")
		}
		if err := tx.Delete(&database.Song{}, song.ID).Error; err != nil {
			return nil, err
		}
		return []string{song.AudioKey, song.CoverKey}, nil
	case database.ReportComment:
		res := tx.Delete(&database.Comment{}, id)
		if res.Error == nil && res.RowsAffected == 0 {
			return nil, apperrors.NotFound("comment")
		}
		return nil, res.Error
	case database.ReportPlaylist:
		var p database.Playlist
		if err := tx.Select("id", "cover_key").First(&p, id).Error; err != nil {
			return nil, apperrors.FromDB(err, "playlist")
		}
		if err := tx.Delete(&database.Playlist{}, p.ID).Error; err != nil {
			return nil, err
		}
		return []string{p.CoverKey}, nil
	case database.ReportUser:
		var u database.User
		if err := tx.Select("id", "role").First(&u, id).Error; err != nil {
			return nil, apperrors.FromDB(err, "user")
		}
		if u.Role == database.RoleAdmin {
			return nil, apperrors.BadRequest("administrators cannot be banned")
		}
		if err := tx.Model(&database.User{}).Where("id = ?", u.ID).Update("status", database.StatusBanned).Error; err != nil {
			return nil, err
		}
		return nil, tx.Model(&database.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", u.ID).
			Update("revoked_at", time.Now().UTC()).Error
	}
	return nil, apperrors.BadRequestf("unknown report type %q", reportType)
}
