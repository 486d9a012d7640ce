package playlist

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
	svc   PlaylistService
	db    *gorm.DB
	owner *database.User
	other *database.User
	songs []*database.Song
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	m := testutil.NewMedia(t)
	svc := NewPlaylistService(db, m, view.NewPresenter(db, m), notification.NewNotificationService(db))

	artistUser := testutil.CreateUser(t, db, "band", database.RoleArtist)
	artist := testutil.CreateArtist(t, db, artistUser, "The Band")
	f := &fixture{
		svc:   svc,
		db:    db,
		owner: testutil.CreateUser(t, db, "owner", database.RoleListener),
		other: testutil.CreateUser(t, db, "other", database.RoleListener),
	}
	for _, title := range []string{"one", "two", "three"} {
		f.songs = append(f.songs, testutil.CreateSong(t, db, artist, title, "rock"))
	}
	return f
}

func songOrder(d *view.PlaylistDetail) []uint {
	ids := make([]uint, len(d.Songs))
	for i, e := range d.Songs {
		ids[i] = e.Song.ID
	}
	return ids
}

func (f *fixture) create(t *testing.T, public bool) *view.PlaylistDetail {
	t.Helper()
	d, err := f.svc.Create(context.Background(), testutil.As(f.owner), &CreatePlaylistRequest{Name: " Road trip ", IsPublic: &public})
	require.NoError(t, err)
	return d
}

func TestCreateDefaultsToPublic(t *testing.T) {
	f := setup(t)
	d, err := f.svc.Create(context.Background(), testutil.As(f.owner), &CreatePlaylistRequest{Name: "Mix"})
	require.NoError(t, err)
	assert.True(t, d.IsPublic)
	assert.Equal(t, "owner", d.OwnerName)
	assert.Empty(t, d.Songs)
}

func TestAddRemoveReorder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ac := testutil.As(f.owner)
	pl := f.create(t, true)
	assert.Equal(t, "Road trip", pl.Name)

	for _, s := range f.songs {
		_, err := f.svc.AddSong(ctx, ac, pl.ID, &AddSongRequest{SongID: s.ID})
		require.NoError(t, err)
	}

	t.Run("duplicate add", func(t *testing.T) {
		_, err := f.svc.AddSong(ctx, ac, pl.ID, &AddSongRequest{SongID: f.songs[0].ID})
		assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err))
	})

	t.Run("unknown song", func(t *testing.T) {
		_, err := f.svc.AddSong(ctx, ac, pl.ID, &AddSongRequest{SongID: 9999})
		assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
	})

	t.Run("positions are contiguous after removal", func(t *testing.T) {
		require.NoError(t, f.svc.RemoveSong(ctx, ac, pl.ID, f.songs[0].ID))
		d, err := f.svc.Get(ctx, ac, pl.ID)
		require.NoError(t, err)
		assert.Equal(t, []uint{f.songs[1].ID, f.songs[2].ID}, songOrder(d))
		assert.Equal(t, 0, d.Songs[0].Position)
		assert.Equal(t, 1, d.Songs[1].Position)
		assert.Equal(t, int64(2), d.SongCount)

		err = f.svc.RemoveSong(ctx, ac, pl.ID, f.songs[0].ID)
		assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
	})

	t.Run("reorder", func(t *testing.T) {
		d, err := f.svc.Reorder(ctx, ac, pl.ID, []uint{f.songs[2].ID, f.songs[1].ID})
		require.NoError(t, err)
		assert.Equal(t, []uint{f.songs[2].ID, f.songs[1].ID}, songOrder(d))
	})

	t.Run("reorder must be a permutation", func(t *testing.T) {
		_, err := f.svc.Reorder(ctx, ac, pl.ID, []uint{f.songs[2].ID})
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
		_, err = f.svc.Reorder(ctx, ac, pl.ID, []uint{f.songs[2].ID, f.songs[2].ID})
		assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	})

	t.Run("only the owner edits", func(t *testing.T) {
		_, err := f.svc.AddSong(ctx, testutil.As(f.other), pl.ID, &AddSongRequest{SongID: f.songs[0].ID})
		assert.Equal(t, http.StatusForbidden, apperrors.StatusOf(err))
	})
}

func TestPrivateVisibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pl := f.create(t, false)

	_, err := f.svc.Get(ctx, testutil.As(f.other), pl.ID)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
	_, err = f.svc.Get(ctx, access.Anonymous(), pl.ID)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))

	admin := testutil.CreateUser(t, f.db, "root", database.RoleAdmin)
	_, err = f.svc.Get(ctx, testutil.As(admin), pl.ID)
	assert.NoError(t, err)

	list, total, err := f.svc.List(ctx, testutil.As(f.other), "", repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	list, total, err = f.svc.List(ctx, testutil.As(f.owner), "road", repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsPublic)
}

func TestHiddenSongsAreSkipped(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pl := f.create(t, true)
	for _, s := range f.songs[:2] {
		_, err := f.svc.AddSong(ctx, testutil.As(f.owner), pl.ID, &AddSongRequest{SongID: s.ID})
		require.NoError(t, err)
	}
	require.NoError(t, f.db.Model(&database.Song{}).Where("id = ?", f.songs[0].ID).Update("status", database.SongHidden).Error)

	d, err := f.svc.Get(ctx, testutil.As(f.other), pl.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{f.songs[1].ID}, songOrder(d))
}

func TestLikes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pl := f.create(t, true)
	ac := testutil.As(f.other)

	require.NoError(t, f.svc.Like(ctx, ac, pl.ID))
	assert.Equal(t, http.StatusConflict, apperrors.StatusOf(f.svc.Like(ctx, ac, pl.ID)))

	liked, total, err := f.svc.Liked(ctx, ac, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, liked, 1)
	assert.True(t, liked[0].LikedByMe)
	assert.Equal(t, int64(1), liked[0].LikeCount)

	var notes []database.Notification
	require.NoError(t, f.db.Where("user_id = ?", f.owner.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, database.NotifyNewLike, notes[0].Type)

	require.NoError(t, f.svc.Unlike(ctx, ac, pl.ID))
	require.NoError(t, f.svc.Unlike(ctx, ac, pl.ID))
	_, total, err = f.svc.Liked(ctx, ac, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pl := f.create(t, true)

	assert.Equal(t, http.StatusForbidden, apperrors.StatusOf(f.svc.Delete(ctx, testutil.As(f.other), pl.ID)))
	require.NoError(t, f.svc.Delete(ctx, testutil.As(f.owner), pl.ID))
	_, err := f.svc.Get(ctx, testutil.As(f.owner), pl.ID)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestIsPermutation(t *testing.T) {
	assert.True(t, IsPermutation([]uint{1, 2, 3}, []uint{3, 1, 2}))
	assert.True(t, IsPermutation(nil, []uint{}))
	assert.False(t, IsPermutation([]uint{1, 2}, []uint{1, 1}))
	assert.False(t, IsPermutation([]uint{1, 2}, []uint{1, 2, 3}))
}
