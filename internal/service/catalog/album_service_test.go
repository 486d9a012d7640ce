package catalog

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/repository"
	"github.com/weiwangfds/melodia/internal/service/notification"
	"github.com/weiwangfds/melodia/internal/service/view"
	"github.com/weiwangfds/melodia/internal/testutil"
)

func trackIDs(d *view.AlbumDetail) []uint {
	out := make([]uint, len(d.Tracks))
	for i, tr := range d.Tracks {
		out[i] = tr.Song.ID
	}
	return out
}

func TestAlbumTracks(t *testing.T) {
	db := testutil.NewDB(t)
	m := testutil.NewMedia(t)
	svc := NewAlbumService(db, m, view.NewPresenter(db, m), notification.NewNotificationService(db))
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner", database.RoleArtist)
	artist := testutil.CreateArtist(t, db, owner, "Owner")
	rival := testutil.CreateUser(t, db, "rival", database.RoleArtist)
	rivalArtist := testutil.CreateArtist(t, db, rival, "Rival")
	one := testutil.CreateSong(t, db, artist, "one", "pop")
	two := testutil.CreateSong(t, db, artist, "two", "pop")
	three := testutil.CreateSong(t, db, artist, "three", "pop")
	foreign := testutil.CreateSong(t, db, rivalArtist, "foreign", "pop")

	album, err := svc.Create(ctx, testutil.As(owner), &CreateAlbumRequest{Title: " Debut ", ReleaseDate: "2024-02-03"})
	require.NoError(t, err)
	assert.Equal(t, "Debut", album.Title)
	assert.Equal(t, database.AlbumTypeAlbum, album.AlbumType)
	require.NotNil(t, album.ReleaseDate)
	assert.Empty(t, album.Tracks)

	_, err = svc.Create(ctx, testutil.As(testutil.CreateUser(t, db, "plain", database.RoleListener)), &CreateAlbumRequest{Title: "x"})
	assert.Equal(t, http.StatusForbidden, apperrors.StatusOf(err))

	_, err = svc.AddTrack(ctx, testutil.As(owner), album.ID, &AddTrackRequest{SongID: one.ID})
	require.NoError(t, err)
	_, err = svc.AddTrack(ctx, testutil.As(owner), album.ID, &AddTrackRequest{SongID: two.ID})
	require.NoError(t, err)
	d, err := svc.AddTrack(ctx, testutil.As(owner), album.ID, &AddTrackRequest{SongID: three.ID, TrackNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, []uint{three.ID, one.ID, two.ID}, trackIDs(d))
	assert.Equal(t, 3, d.Tracks[2].TrackNumber)

	_, err = svc.AddTrack(ctx, testutil.As(owner), album.ID, &AddTrackRequest{SongID: one.ID})
	assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err))
	_, err = svc.AddTrack(ctx, testutil.As(owner), album.ID, &AddTrackRequest{SongID: foreign.ID})
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	_, err = svc.AddTrack(ctx, testutil.As(rival), album.ID, &AddTrackRequest{SongID: foreign.ID})
	assert.Equal(t, http.StatusForbidden, apperrors.StatusOf(err))

	require.NoError(t, svc.RemoveTrack(ctx, testutil.As(owner), album.ID, three.ID))
	d, err = svc.Get(ctx, testutil.As(owner), album.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{one.ID, two.ID}, trackIDs(d))
	assert.Equal(t, 1, d.Tracks[0].TrackNumber)
	assert.Equal(t, 2, d.Tracks[1].TrackNumber)

	err = svc.RemoveTrack(ctx, testutil.As(owner), album.ID, three.ID)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))

	t.Run("likes", func(t *testing.T) {
		require.NoError(t, svc.Like(ctx, testutil.As(rival), album.ID))
		assert.Equal(t, http.StatusConflict, apperrors.StatusOf(svc.Like(ctx, testutil.As(rival), album.ID)))
		liked, total, err := svc.Liked(ctx, testutil.As(rival), repository.NewPage(1, 10))
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, liked, 1)
		assert.Equal(t, int64(1), liked[0].LikeCount)
		assert.True(t, liked[0].LikedByMe)
	})

	t.Run("delete keeps songs", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, testutil.As(owner), album.ID))
		_, err := svc.Get(ctx, testutil.As(owner), album.ID)
		assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
		var n int64
		require.NoError(t, db.Model(&database.Song{}).Count(&n).Error)
		assert.Equal(t, int64(4), n)
	})
}
