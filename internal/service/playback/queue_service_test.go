package playback

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/queue"
	"github.com/weiwangfds/melodia/internal/testutil"
	"gorm.io/gorm"
)

func setup(t *testing.T) (QueueService, *gorm.DB, access.Context, []*database.Song) {
	t.Helper()
	db := testutil.NewDB(t)
	artistUser := testutil.CreateUser(t, db, "dj", database.RoleArtist)
	artist := testutil.CreateArtist(t, db, artistUser, "DJ")
	var songs []*database.Song
	for _, title := range []string{"a", "b", "c"} {
		songs = append(songs, testutil.CreateSong(t, db, artist, title, "house"))
	}
	listener := testutil.CreateUser(t, db, "listener", database.RoleListener)
	return NewQueueService(db, queue.NewReducer(10)), db, testutil.As(listener), songs
}

func ids(songs ...*database.Song) []uint {
	out := make([]uint, len(songs))
	for i, s := range songs {
		out[i] = s.ID
	}
	return out
}

func TestQueuePersists(t *testing.T) {
	svc, _, ac, songs := setup(t)
	ctx := context.Background()

	st, err := svc.Get(ctx, ac)
	require.NoError(t, err)
	assert.Empty(t, st.Items)
	assert.Equal(t, -1, st.CurrentIndex)

	st, err = svc.Apply(ctx, ac, queue.Action{Type: queue.ActionSet, SongIDs: ids(songs...)})
	require.NoError(t, err)
	assert.Equal(t, ids(songs...), st.SongIDs())
	assert.Equal(t, 0, st.CurrentIndex)

	st, err = svc.Apply(ctx, ac, queue.Action{Type: queue.ActionNext})
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentIndex)

	got, err := svc.Get(ctx, ac)
	require.NoError(t, err)
	assert.Equal(t, st.SongIDs(), got.SongIDs())
	assert.Equal(t, 1, got.CurrentIndex)
	assert.Equal(t, st.Version, got.Version)
	assert.Equal(t, st.Items[1].QueueID, got.Items[1].QueueID)
}

func TestQueueRejectsUnknownSongs(t *testing.T) {
	svc, _, ac, songs := setup(t)
	ctx := context.Background()

	before, err := svc.Apply(ctx, ac, queue.Action{Type: queue.ActionSet, SongIDs: ids(songs[0])})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, ac, queue.Action{Type: queue.ActionAdd, SongIDs: []uint{songs[1].ID, 9999}})
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))

	after, err := svc.Get(ctx, ac)
	require.NoError(t, err)
	assert.Equal(t, before.SongIDs(), after.SongIDs())
	assert.Equal(t, before.Version, after.Version)
}

func TestQueueReducerErrors(t *testing.T) {
	svc, _, ac, songs := setup(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ac, queue.Action{Type: queue.ActionNext})
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	_, err = svc.Apply(ctx, ac, queue.Action{Type: "rewind"})
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	_, err = svc.Apply(ctx, ac, queue.Action{Type: queue.ActionSet, SongIDs: ids(songs...)})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, ac, queue.Action{Type: queue.ActionRemove, QueueID: "missing"})
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestQueueDropsHiddenSongsOnRestore(t *testing.T) {
	svc, db, ac, songs := setup(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ac, queue.Action{Type: queue.ActionSet, SongIDs: ids(songs...)})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, ac, queue.Action{Type: queue.ActionNext})
	require.NoError(t, err)

	require.NoError(t, db.Model(&database.Song{}).Where("id = ?", songs[1].ID).Update("status", database.SongHidden).Error)

	st, err := svc.Get(ctx, ac)
	require.NoError(t, err)
	assert.Equal(t, ids(songs[0], songs[2]), st.SongIDs())
	assert.Equal(t, 1, st.CurrentIndex)

	require.NoError(t, db.Delete(&database.Song{}, songs[0].ID).Error)
	st, err = svc.Get(ctx, ac)
	require.NoError(t, err)
	assert.Equal(t, ids(songs[2]), st.SongIDs())
	assert.Equal(t, 0, st.CurrentIndex)
}

func TestQueueUnreadableStateAndClear(t *testing.T) {
	svc, db, ac, songs := setup(t)
	ctx := context.Background()

	saved, err := svc.Apply(ctx, ac, queue.Action{Type: queue.ActionSet, SongIDs: ids(songs...)})
	require.NoError(t, err)

	require.NoError(t, db.Model(&database.PlaybackQueue{}).Where("user_id = ?", ac.UserID).Update("state", "{broken").Error)
	st, err := svc.Get(ctx, ac)
	require.NoError(t, err)
	assert.Empty(t, st.Items)
	assert.Equal(t, saved.Version, st.Version)

	_, err = svc.Apply(ctx, ac, queue.Action{Type: queue.ActionSet, SongIDs: ids(songs[0])})
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, ac))

	st, err = svc.Get(ctx, ac)
	require.NoError(t, err)
	assert.Empty(t, st.Items)
	assert.Zero(t, st.Version)
}
