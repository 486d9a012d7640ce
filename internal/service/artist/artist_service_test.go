package artist

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
	svc      ArtistService
	db       *gorm.DB
	singer   *database.User
	listener *database.User
	admin    *database.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	m := testutil.NewMedia(t)
	return &fixture{
		svc:      NewArtistService(db, m, view.NewPresenter(db, m), notification.NewNotificationService(db)),
		db:       db,
		singer:   testutil.CreateUser(t, db, "singer", database.RoleListener),
		listener: testutil.CreateUser(t, db, "fan", database.RoleListener),
		admin:    testutil.CreateUser(t, db, "root", database.RoleAdmin),
	}
}

func (f *fixture) role(t *testing.T, u *database.User) string {
	t.Helper()
	var got database.User
	require.NoError(t, f.db.First(&got, u.ID).Error)
	return got.Role
}

func TestCreateProfile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, testutil.As(f.singer), &CreateArtistRequest{Name: "  The Singer ", Bio: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "The Singer", a.Name)
	assert.Equal(t, f.singer.ID, a.UserID)
	assert.False(t, a.Verified)
	assert.Equal(t, database.RoleArtist, f.role(t, f.singer), "listeners are promoted")

	_, err = f.svc.Create(ctx, testutil.As(f.singer), &CreateArtistRequest{Name: "Second"})
	assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err))

	_, err = f.svc.Create(ctx, testutil.As(f.admin), &CreateArtistRequest{Name: "House Band"})
	require.NoError(t, err)
	assert.Equal(t, database.RoleAdmin, f.role(t, f.admin), "admins keep their role")

	list, total, err := f.svc.List(ctx, access.Anonymous(), "singer", repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, a.ID, list[0].ID)
}

func TestUpdateAndVerify(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, err := f.svc.Create(ctx, testutil.As(f.singer), &CreateArtistRequest{Name: "Singer"})
	require.NoError(t, err)

	name := "Renamed"
	_, err = f.svc.Update(ctx, testutil.As(f.listener), a.ID, &UpdateArtistRequest{Name: &name})
	assert.Equal(t, http.StatusForbidden, apperrors.StatusOf(err))

	blank := "   "
	_, err = f.svc.Update(ctx, testutil.As(f.singer), a.ID, &UpdateArtistRequest{Name: &blank})
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	out, err := f.svc.Update(ctx, testutil.As(f.singer), a.ID, &UpdateArtistRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", out.Name)

	out, err = f.svc.SetVerified(ctx, testutil.As(f.admin), a.ID, true)
	require.NoError(t, err)
	assert.True(t, out.Verified)

	got, err := f.svc.Get(ctx, access.Anonymous(), a.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)

	_, err = f.svc.SetVerified(ctx, testutil.As(f.admin), 9999, true)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestFollowArtist(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, err := f.svc.Create(ctx, testutil.As(f.singer), &CreateArtistRequest{Name: "Singer"})
	require.NoError(t, err)

	err = f.svc.Follow(ctx, testutil.As(f.singer), a.ID)
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(f.svc.Follow(ctx, testutil.As(f.listener), 9999)))

	require.NoError(t, f.svc.Follow(ctx, testutil.As(f.listener), a.ID))
	require.NoError(t, f.svc.Follow(ctx, testutil.As(f.listener), a.ID))

	var notes []database.Notification
	require.NoError(t, f.db.Where("user_id = ?", f.singer.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, database.NotifyNewFollower, notes[0].Type)
	assert.Equal(t, "artist", notes[0].EntityType)

	followers, total, err := f.svc.Followers(ctx, access.Anonymous(), a.ID, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, followers, 1)
	assert.Equal(t, f.listener.ID, followers[0].ID)

	d, err := f.svc.Get(ctx, testutil.As(f.listener), a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.FollowerCount)
	assert.True(t, d.FollowedByMe)

	require.NoError(t, f.svc.Unfollow(ctx, testutil.As(f.listener), a.ID))
	_, total, err = f.svc.Followers(ctx, access.Anonymous(), a.ID, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSongsHideHidden(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, err := f.svc.Create(ctx, testutil.As(f.singer), &CreateArtistRequest{Name: "Singer"})
	require.NoError(t, err)
	var row database.Artist
	require.NoError(t, f.db.First(&row, a.ID).Error)
	testutil.CreateSong(t, f.db, &row, "open", "pop")
	hidden := testutil.CreateSong(t, f.db, &row, "closed", "pop")
	require.NoError(t, f.db.Model(&database.Song{}).Where("id = ?", hidden.ID).Update("status", database.SongHidden).Error)

	_, total, err := f.svc.Songs(ctx, access.Anonymous(), a.ID, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = f.svc.Songs(ctx, testutil.As(f.singer), a.ID, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestDeleteDemotes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, err := f.svc.Create(ctx, testutil.As(f.singer), &CreateArtistRequest{Name: "Singer"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, testutil.As(f.admin), a.ID))
	assert.Equal(t, database.RoleListener, f.role(t, f.singer))
	_, err = f.svc.Get(ctx, access.Anonymous(), a.ID)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}
