package catalog

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

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

type songFixture struct {
	svc      *songService
	db       *gorm.DB
	uploader *database.User
	fan      *database.User
	artist   *database.Artist
}

func newSongFixture(t *testing.T) *songFixture {
	t.Helper()
	db := testutil.NewDB(t)
	m := testutil.NewMedia(t)
	svc := NewSongService(db, m, view.NewPresenter(db, m), notification.NewNotificationService(db)).(*songService)
	uploader := testutil.CreateUser(t, db, "uploader", database.RoleArtist)
	return &songFixture{
		svc:      svc,
		db:       db,
		uploader: uploader,
		fan:      testutil.CreateUser(t, db, "fan", database.RoleListener),
		artist:   testutil.CreateArtist(t, db, uploader, "Uploader"),
	}
}

func TestPlayRecordsHistory(t *testing.T) {
	f := newSongFixture(t)
	ctx := context.Background()
	song := testutil.CreateSong(t, f.db, f.artist, "tune", "pop")

	res, err := f.svc.Play(ctx, testutil.As(f.fan), song.ID, &PlayRequest{SecondsPlayed: 42, Source: " album "})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.PlayCount)

	res, err = f.svc.Play(ctx, testutil.As(f.fan), song.ID, &PlayRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.PlayCount)

	var rows []database.ListeningHistory
	require.NoError(t, f.db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, f.fan.ID, rows[0].UserID)
	assert.Equal(t, 42, rows[0].SecondsPlayed)
	assert.Equal(t, "album", rows[0].Source)

	require.NoError(t, f.db.Model(&database.Song{}).Where("id = ?", song.ID).Update("status", database.SongHidden).Error)
	_, err = f.svc.Play(ctx, testutil.As(f.fan), song.ID, &PlayRequest{})
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))

	_, err = f.svc.Play(ctx, testutil.As(f.uploader), song.ID, &PlayRequest{})
	assert.NoError(t, err, "uploaders can still play their hidden songs")
}

func TestLikes(t *testing.T) {
	f := newSongFixture(t)
	ctx := context.Background()
	song := testutil.CreateSong(t, f.db, f.artist, "tune", "pop")

	require.NoError(t, f.svc.Like(ctx, testutil.As(f.fan), song.ID))
	assert.Equal(t, http.StatusConflict, apperrors.StatusOf(f.svc.Like(ctx, testutil.As(f.fan), song.ID)))

	var notes []database.Notification
	require.NoError(t, f.db.Where("user_id = ?", f.uploader.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, database.NotifyNewLike, notes[0].Type)

	liked, total, err := f.svc.Liked(ctx, testutil.As(f.fan), repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, liked, 1)
	assert.Equal(t, song.ID, liked[0].ID)

	require.NoError(t, f.svc.Unlike(ctx, testutil.As(f.fan), song.ID))
	require.NoError(t, f.svc.Unlike(ctx, testutil.As(f.fan), song.ID))
	_, total, err = f.svc.Liked(ctx, testutil.As(f.fan), repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestTrending(t *testing.T) {
	f := newSongFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	hot := testutil.CreateSong(t, f.db, f.artist, "hot", "pop")
	warm := testutil.CreateSong(t, f.db, f.artist, "warm", "pop")
	old := testutil.CreateSong(t, f.db, f.artist, "old", "pop")

	add := func(song *database.Song, at time.Time, n int) {
		for i := 0; i < n; i++ {
			row := database.ListeningHistory{UserID: f.fan.ID, SongID: song.ID, PlayedAt: at}
			require.NoError(t, f.db.Omit("User", "Song").Create(&row).Error)
		}
	}
	add(hot, now.Add(-time.Hour), 3)
	add(warm, now.Add(-48*time.Hour), 1)
	add(old, now.Add(-30*24*time.Hour), 10)

	list, err := f.svc.Trending(ctx, access.Anonymous(), 7, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, hot.ID, list[0].ID)
	assert.Equal(t, int64(3), list[0].WindowPlays)
	assert.Equal(t, warm.ID, list[1].ID)

	list, err = f.svc.Trending(ctx, access.Anonymous(), 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, hot.ID, list[0].ID)

	require.NoError(t, f.db.Model(&database.Song{}).Where("id = ?", hot.ID).Update("status", database.SongHidden).Error)
	list, err = f.svc.Trending(ctx, access.Anonymous(), 7, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, warm.ID, list[0].ID)
}

func TestGenres(t *testing.T) {
	f := newSongFixture(t)
	testutil.CreateSong(t, f.db, f.artist, "a", "jazz")
	testutil.CreateSong(t, f.db, f.artist, "b", "jazz")
	testutil.CreateSong(t, f.db, f.artist, "c", "rock")
	testutil.CreateSong(t, f.db, f.artist, "d", "")
	hidden := testutil.CreateSong(t, f.db, f.artist, "e", "rock")
	require.NoError(t, f.db.Model(&database.Song{}).Where("id = ?", hidden.ID).Update("status", database.SongHidden).Error)

	genres, err := f.svc.Genres(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Genre{{Name: "jazz", SongCount: 2}, {Name: "rock", SongCount: 1}}, genres)
}

func TestStream(t *testing.T) {
	f := newSongFixture(t)
	ctx := context.Background()
	song := testutil.CreateSong(t, f.db, f.artist, "tune", "pop")

	out, err := f.svc.Stream(ctx, access.Anonymous(), song.ID)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out.URL, "signature="), out.URL)
	assert.True(t, out.ExpiresAt.After(time.Now()))

	_, err = f.svc.Stream(ctx, access.Anonymous(), 9999)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}
