package comment

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
	"github.com/weiwangfds/melodia/internal/service/view"
	"github.com/weiwangfds/melodia/internal/testutil"
	"gorm.io/gorm"
)

type fixture struct {
	svc      CommentService
	db       *gorm.DB
	uploader *database.User
	alice    *database.User
	bob      *database.User
	song     *database.Song
	other    *database.Song
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	m := testutil.NewMedia(t)
	f := &fixture{
		svc:      NewCommentService(db, view.NewPresenter(db, m), notification.NewNotificationService(db)),
		db:       db,
		uploader: testutil.CreateUser(t, db, "uploader", database.RoleArtist),
		alice:    testutil.CreateUser(t, db, "alice", database.RoleListener),
		bob:      testutil.CreateUser(t, db, "bob", database.RoleListener),
	}
	artist := testutil.CreateArtist(t, db, f.uploader, "Uploader")
	f.song = testutil.CreateSong(t, db, artist, "first", "jazz")
	f.other = testutil.CreateSong(t, db, artist, "second", "jazz")
	return f
}

func (f *fixture) notes(t *testing.T, user *database.User) []database.Notification {
	t.Helper()
	var out []database.Notification
	require.NoError(t, f.db.Where("user_id = ?", user.ID).Order("id").Find(&out).Error)
	return out
}

func TestThreads(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	top, err := f.svc.Create(ctx, testutil.As(f.alice), f.song.ID, &CreateCommentRequest{Body: "  lovely  "})
	require.NoError(t, err)
	assert.Equal(t, "lovely", top.Body)
	assert.Equal(t, "alice", top.Author.Username)
	assert.Nil(t, top.ParentID)

	reply, err := f.svc.Create(ctx, testutil.As(f.bob), f.song.ID, &CreateCommentRequest{Body: "agreed", ParentID: &top.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, top.ID, *reply.ParentID)

	nested, err := f.svc.Create(ctx, testutil.As(f.alice), f.song.ID, &CreateCommentRequest{Body: "thanks", ParentID: &reply.ID})
	require.NoError(t, err)
	require.NotNil(t, nested.ParentID)
	assert.Equal(t, top.ID, *nested.ParentID, "replies to replies join the thread")

	t.Run("notifications", func(t *testing.T) {
		up := f.notes(t, f.uploader)
		require.Len(t, up, 1)
		assert.Equal(t, database.NotifyNewComment, up[0].Type)

		al := f.notes(t, f.alice)
		require.Len(t, al, 1)
		assert.Equal(t, database.NotifyCommentReply, al[0].Type)

		bo := f.notes(t, f.bob)
		require.Len(t, bo, 1)
		assert.Equal(t, database.NotifyCommentReply, bo[0].Type)
	})

	t.Run("listing", func(t *testing.T) {
		list, total, err := f.svc.ListForSong(ctx, access.Anonymous(), f.song.ID, repository.NewPage(1, 10))
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, list, 1)
		assert.Equal(t, int64(2), list[0].ReplyCount)

		replies, total, err := f.svc.Replies(ctx, access.Anonymous(), top.ID, repository.NewPage(1, 10))
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, replies, 2)
		assert.Equal(t, reply.ID, replies[0].ID)
		assert.Equal(t, nested.ID, replies[1].ID)
	})

	t.Run("parent on another song", func(t *testing.T) {
		_, err := f.svc.Create(ctx, testutil.As(f.bob), f.other.ID, &CreateCommentRequest{Body: "x", ParentID: &top.ID})
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	})

	t.Run("delete cascades", func(t *testing.T) {
		admin := testutil.CreateUser(t, f.db, "mod", database.RoleAdmin)
		require.NoError(t, f.svc.Delete(ctx, testutil.As(admin), top.ID))
		var n int64
		require.NoError(t, f.db.Model(&database.Comment{}).Count(&n).Error)
		assert.Zero(t, n)
	})
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, testutil.As(f.alice), f.song.ID, &CreateCommentRequest{Body: "   "})
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	_, err = f.svc.Create(ctx, testutil.As(f.alice), 9999, &CreateCommentRequest{Body: "hi"})
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))

	require.NoError(t, f.db.Model(&database.Song{}).Where("id = ?", f.song.ID).Update("status", database.SongHidden).Error)
	_, err = f.svc.Create(ctx, testutil.As(f.alice), f.song.ID, &CreateCommentRequest{Body: "hi"})
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestEditRights(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c, err := f.svc.Create(ctx, testutil.As(f.alice), f.song.ID, &CreateCommentRequest{Body: "draft"})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, testutil.As(f.bob), c.ID, &UpdateCommentRequest{Body: "hijack"})
	assert.Equal(t, http.StatusForbidden, apperrors.StatusOf(err))
	assert.Equal(t, http.StatusForbidden, apperrors.StatusOf(f.svc.Delete(ctx, testutil.As(f.bob), c.ID)))

	out, err := f.svc.Update(ctx, testutil.As(f.alice), c.ID, &UpdateCommentRequest{Body: "final"})
	require.NoError(t, err)
	assert.Equal(t, "final", out.Body)

	require.NoError(t, f.svc.Delete(ctx, testutil.As(f.alice), c.ID))
	_, err = f.svc.Update(ctx, testutil.As(f.alice), c.ID, &UpdateCommentRequest{Body: "again"})
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}
