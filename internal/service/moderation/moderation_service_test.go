package moderation

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/repository"
	"github.com/weiwangfds/melodia/internal/service/notification"
	"github.com/weiwangfds/melodia/internal/testutil"
	"gorm.io/gorm"
)

type fixture struct {
	svc      ModerationService
	db       *gorm.DB
	reporter *database.User
	owner    *database.User
	admin    *database.User
	song     *database.Song
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "uploader", database.RoleArtist)
	artist := testutil.CreateArtist(t, db, owner, "Uploader")
	return &fixture{
		svc:      NewModerationService(db, testutil.NewMedia(t), notification.NewNotificationService(db)),
		db:       db,
		reporter: testutil.CreateUser(t, db, "reporter", database.RoleListener),
		owner:    owner,
		admin:    testutil.CreateUser(t, db, "moderator", database.RoleAdmin),
		song:     testutil.CreateSong(t, db, artist, "questionable", "pop"),
	}
}

func (f *fixture) reportSong(t *testing.T) *ReportItem {
	t.Helper()
	r, err := f.svc.CreateReport(context.Background(), testutil.As(f.reporter), &CreateReportRequest{
		TargetType: database.ReportSong,
		TargetID:   f.song.ID,
		Reason:     ReasonCopyright,
		Details:    "  ripped from an album  ",
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) notifications(t *testing.T, userID uint) []database.Notification {
	t.Helper()
	var list []database.Notification
	require.NoError(t, f.db.Where("user_id = ?", userID).Order("id").Find(&list).Error)
	return list
}

func TestCreateReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	r := f.reportSong(t)
	assert.Equal(t, database.ReportSong, r.Type)
	assert.Equal(t, f.song.ID, r.TargetID)
	assert.Equal(t, database.ReportPending, r.Status)
	assert.Equal(t, "ripped from an album", r.Details)

	t.Run("one pending report per target", func(t *testing.T) {
		_, err := f.svc.CreateReport(ctx, testutil.As(f.reporter), &CreateReportRequest{
			TargetType: database.ReportSong, TargetID: f.song.ID, Reason: ReasonSpam,
		})
		assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err))
	})

	t.Run("own content", func(t *testing.T) {
		_, err := f.svc.CreateReport(ctx, testutil.As(f.owner), &CreateReportRequest{
			TargetType: database.ReportSong, TargetID: f.song.ID, Reason: ReasonSpam,
		})
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	})

	t.Run("missing target", func(t *testing.T) {
		_, err := f.svc.CreateReport(ctx, testutil.As(f.reporter), &CreateReportRequest{
			TargetType: database.ReportPlaylist, TargetID: 404, Reason: ReasonSpam,
		})
		assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := f.svc.CreateReport(ctx, testutil.As(f.reporter), &CreateReportRequest{
			TargetType: "album", TargetID: 1, Reason: ReasonSpam,
		})
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	})
}

func TestListReports(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	songReport := f.reportSong(t)

	comment := database.Comment{SongID: f.song.ID, UserID: f.owner.ID, Body: "buy followers here"}
	require.NoError(t, f.db.Omit("Song", "User", "Parent").Create(&comment).Error)
	commentReport, err := f.svc.CreateReport(ctx, testutil.As(f.reporter), &CreateReportRequest{
		TargetType: database.ReportComment, TargetID: comment.ID, Reason: ReasonSpam,
	})
	require.NoError(t, err)

	mine, total, err := f.svc.MyReports(ctx, testutil.As(f.reporter), repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, mine, 2)
	assert.ElementsMatch(t, []string{database.ReportSong, database.ReportComment}, []string{mine[0].Type, mine[1].Type})

	_, err = f.svc.Dismiss(ctx, testutil.As(f.admin), database.ReportComment, commentReport.ID, &DismissRequest{Note: "not spam"})
	require.NoError(t, err)

	pending, total, err := f.svc.AdminReports(ctx, ReportQuery{Status: database.ReportPending}, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, pending, 1)
	assert.Equal(t, songReport.ID, pending[0].ID)
	assert.Equal(t, database.ReportSong, pending[0].Type)

	comments, total, err := f.svc.AdminReports(ctx, ReportQuery{Type: database.ReportComment}, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, comments, 1)
	assert.Equal(t, database.ReportDismissed, comments[0].Status)
	assert.Equal(t, "not spam", comments[0].ReviewNote)

	mineAfter, _, err := f.svc.MyReports(ctx, testutil.As(f.reporter), repository.NewPage(1, 1))
	require.NoError(t, err)
	assert.Len(t, mineAfter, 1)

	_, _, err = f.svc.AdminReports(ctx, ReportQuery{Type: "album"}, repository.NewPage(1, 10))
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
}

func TestResolveHideAndAppeal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	adminAC := testutil.As(f.admin)
	r := f.reportSong(t)

	resolved, err := f.svc.Resolve(ctx, adminAC, database.ReportSong, r.ID, &ResolveRequest{Action: database.ActionHide, Note: "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, database.ReportResolved, resolved.Status)
	assert.Equal(t, database.ActionHide, resolved.Action)
	require.NotNil(t, resolved.ReviewerID)
	assert.Equal(t, f.admin.ID, *resolved.ReviewerID)

	var song database.Song
	require.NoError(t, f.db.First(&song, f.song.ID).Error)
	assert.Equal(t, database.SongHidden, song.Status)

	notes := f.notifications(t, f.reporter.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, database.NotifyReportResolved, notes[0].Type)

	_, err = f.svc.Resolve(ctx, adminAC, database.ReportSong, r.ID, &ResolveRequest{Action: database.ActionNone})
	assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err), "reports are reviewed once")

	appealReq := &CreateAppealRequest{ReportType: database.ReportSong, ReportID: r.ID, Reason: "I own the rights"}

	t.Run("only the affected user appeals", func(t *testing.T) {
		_, err := f.svc.CreateAppeal(ctx, testutil.As(f.reporter), appealReq)
		assert.Equal(t, http.StatusForbidden, apperrors.StatusOf(err))
	})

	appeal, err := f.svc.CreateAppeal(ctx, testutil.As(f.owner), appealReq)
	require.NoError(t, err)
	assert.Equal(t, database.AppealPending, appeal.Status)

	_, err = f.svc.CreateAppeal(ctx, testutil.As(f.owner), appealReq)
	assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err))

	mine, total, err := f.svc.MyAppeals(ctx, testutil.As(f.owner), repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, mine, 1)

	approve := true
	decided, err := f.svc.DecideAppeal(ctx, adminAC, appeal.ID, &DecideAppealRequest{Approve: &approve, Response: "licence verified"})
	require.NoError(t, err)
	assert.Equal(t, database.AppealApproved, decided.Status)
	assert.Equal(t, "licence verified", decided.Response)

	require.NoError(t, f.db.First(&song, f.song.ID).Error)
	assert.Equal(t, database.SongActive, song.Status, "approval restores the song")

	ownerNotes := f.notifications(t, f.owner.ID)
	require.NotEmpty(t, ownerNotes)
	assert.Equal(t, database.NotifyAppealResolved, ownerNotes[len(ownerNotes)-1].Type)

	_, err = f.svc.DecideAppeal(ctx, adminAC, appeal.ID, &DecideAppealRequest{Approve: &approve})
	assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err))

	pending, total, err := f.svc.AdminAppeals(ctx, database.AppealPending, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, pending)
}

func TestResolveSuspendAndReject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	adminAC := testutil.As(f.admin)
	r := f.reportSong(t)

	_, err := f.svc.Resolve(ctx, adminAC, database.ReportSong, r.ID, &ResolveRequest{Action: database.ActionSuspend})
	require.NoError(t, err)

	var owner database.User
	require.NoError(t, f.db.First(&owner, f.owner.ID).Error)
	assert.Equal(t, database.StatusSuspended, owner.Status)

	appeal, err := f.svc.CreateAppeal(ctx, access.ForUser(f.owner.ID, f.owner.Role), &CreateAppealRequest{
		ReportType: database.ReportSong, ReportID: r.ID, Reason: "mistake",
	})
	require.NoError(t, err)

	reject := false
	decided, err := f.svc.DecideAppeal(ctx, adminAC, appeal.ID, &DecideAppealRequest{Approve: &reject})
	require.NoError(t, err)
	assert.Equal(t, database.AppealRejected, decided.Status)

	require.NoError(t, f.db.First(&owner, f.owner.ID).Error)
	assert.Equal(t, database.StatusSuspended, owner.Status, "rejection keeps the suspension")
}

func TestResolveUserReports(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	adminAC := testutil.As(f.admin)
	reporterAC := testutil.As(f.reporter)

	r, err := f.svc.CreateReport(ctx, reporterAC, &CreateReportRequest{
		TargetType: database.ReportUser, TargetID: f.owner.ID, Reason: ReasonHarassment,
	})
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, adminAC, database.ReportUser, r.ID, &ResolveRequest{Action: database.ActionHide})
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	_, err = f.svc.Resolve(ctx, adminAC, database.ReportUser, r.ID, &ResolveRequest{Action: database.ActionRemove})
	require.NoError(t, err)
	var banned database.User
	require.NoError(t, f.db.First(&banned, f.owner.ID).Error)
	assert.Equal(t, database.StatusBanned, banned.Status)

	t.Run("removals cannot be appealed", func(t *testing.T) {
		_, err := f.svc.CreateAppeal(ctx, testutil.As(f.owner), &CreateAppealRequest{
			ReportType: database.ReportUser, ReportID: r.ID, Reason: "please",
		})
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	})

	t.Run("admins cannot be banned", func(t *testing.T) {
		adminReport, err := f.svc.CreateReport(ctx, reporterAC, &CreateReportRequest{
			TargetType: database.ReportUser, TargetID: f.admin.ID, Reason: ReasonOther,
		})
		require.NoError(t, err)
		_, err = f.svc.Resolve(ctx, adminAC, database.ReportUser, adminReport.ID, &ResolveRequest{Action: database.ActionRemove})
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

		var admin database.User
		require.NoError(t, f.db.First(&admin, f.admin.ID).Error)
		assert.Equal(t, database.StatusActive, admin.Status)
	})
}

func TestSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	adminAC := testutil.As(f.admin)

	songReport := f.reportSong(t)
	second := testutil.CreateUser(t, f.db, "second", database.RoleListener)
	_, err := f.svc.CreateReport(ctx, testutil.As(second), &CreateReportRequest{
		TargetType: database.ReportSong, TargetID: f.song.ID, Reason: ReasonCopyright,
	})
	require.NoError(t, err)
	userReport, err := f.svc.CreateReport(ctx, testutil.As(f.reporter), &CreateReportRequest{
		TargetType: database.ReportUser, TargetID: f.owner.ID, Reason: ReasonSpam,
	})
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, adminAC, database.ReportSong, songReport.ID, &ResolveRequest{Action: database.ActionHide})
	require.NoError(t, err)
	_, err = f.svc.Dismiss(ctx, adminAC, database.ReportUser, userReport.ID, &DismissRequest{})
	require.NoError(t, err)
	_, err = f.svc.CreateAppeal(ctx, testutil.As(f.owner), &CreateAppealRequest{
		ReportType: database.ReportSong, ReportID: songReport.ID, Reason: "fair use",
	})
	require.NoError(t, err)

	sum, err := f.svc.Summary(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, 30, sum.Window.Days)
	assert.Equal(t, Counts{Pending: 1, Resolved: 1, Dismissed: 1, Total: 3}, sum.Totals)
	assert.Equal(t, int64(3), sum.NewReports.Current)
	assert.Equal(t, int64(0), sum.NewReports.Previous)
	assert.Equal(t, int64(1), sum.ResolvedReports.Current)

	require.Len(t, sum.ByType, len(database.ReportTypes))
	assert.Equal(t, database.ReportSong, sum.ByType[0].Type)
	assert.Equal(t, int64(2), sum.ByType[0].Total)
	assert.Equal(t, int64(2), sum.ByType[0].New.Current)

	require.NotEmpty(t, sum.ByReason)
	assert.Equal(t, ReasonCount{Reason: ReasonCopyright, Count: 2}, sum.ByReason[0])

	require.NotEmpty(t, sum.TopTargets)
	assert.Equal(t, TargetCount{Type: database.ReportSong, TargetID: f.song.ID, Count: 2}, sum.TopTargets[0])

	require.NotNil(t, sum.AvgResolutionHours)
	assert.Equal(t, int64(1), sum.Appeals.Pending)
	assert.Equal(t, int64(1), sum.Appeals.New.Current)
	assert.Nil(t, sum.Appeals.ApprovalRate)

	require.NotEmpty(t, sum.DailyNew)
	assert.Equal(t, sum.Window.Start.Format("2006-01-02"), sum.DailyNew[0].Date)
	var daily int64
	for _, d := range sum.DailyNew {
		daily += d.Count
	}
	assert.Equal(t, sum.NewReports.Current, daily)
}
