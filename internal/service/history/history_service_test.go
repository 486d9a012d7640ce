package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/melodia/internal/database"
	"github.com/weiwangfds/melodia/internal/repository"
	"github.com/weiwangfds/melodia/internal/service/view"
	"github.com/weiwangfds/melodia/internal/testutil"
	"gorm.io/gorm"
)

func play(t *testing.T, db *gorm.DB, user *database.User, song *database.Song, at time.Time) {
	t.Helper()
	row := database.ListeningHistory{UserID: user.ID, SongID: song.ID, PlayedAt: at, SecondsPlayed: 30, Source: "search"}
	require.NoError(t, db.Omit("User", "Song").Create(&row).Error)
}

func TestHistory(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewHistoryService(db, view.NewPresenter(db, testutil.NewMedia(t)))
	ctx := context.Background()

	uploader := testutil.CreateUser(t, db, "uploader", database.RoleArtist)
	me := testutil.CreateUser(t, db, "me", database.RoleListener)
	other := testutil.CreateUser(t, db, "other", database.RoleListener)
	artist := testutil.CreateArtist(t, db, uploader, "Uploader")
	a := testutil.CreateSong(t, db, artist, "a", "rock")
	b := testutil.CreateSong(t, db, artist, "b", "rock")
	hidden := testutil.CreateSong(t, db, artist, "hidden", "rock")

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	play(t, db, me, a, base)
	play(t, db, me, b, base.Add(time.Minute))
	play(t, db, me, a, base.Add(2*time.Minute))
	play(t, db, me, hidden, base.Add(3*time.Minute))
	play(t, db, other, b, base.Add(time.Hour))
	require.NoError(t, db.Model(&database.Song{}).Where("id = ?", hidden.ID).Update("status", database.SongHidden).Error)

	t.Run("list", func(t *testing.T) {
		list, total, err := svc.List(ctx, testutil.As(me), repository.NewPage(1, 10))
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, list, 3, "hidden songs are skipped")
		assert.Equal(t, a.ID, list[0].Song.ID)
		assert.Equal(t, b.ID, list[1].Song.ID)
		assert.Equal(t, a.ID, list[2].Song.ID)
		assert.Equal(t, "search", list[0].Source)
	})

	t.Run("recent", func(t *testing.T) {
		recent, err := svc.Recent(ctx, testutil.As(me), 0)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, a.ID, recent[0].Song.ID)
		assert.True(t, recent[0].LastPlayedAt.Equal(base.Add(2*time.Minute)))
		assert.Equal(t, b.ID, recent[1].Song.ID)

		recent, err = svc.Recent(ctx, testutil.As(uploader), 5)
		require.NoError(t, err)
		assert.Empty(t, recent)
	})

	t.Run("clear", func(t *testing.T) {
		n, err := svc.Clear(ctx, testutil.As(me))
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		_, total, err := svc.List(ctx, testutil.As(me), repository.NewPage(1, 10))
		require.NoError(t, err)
		assert.Zero(t, total)

		var left int64
		require.NoError(t, db.Model(&database.ListeningHistory{}).Count(&left).Error)
		assert.Equal(t, int64(1), left, "other users keep their history")
	})
}
