package analytics

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/testutil"
	"gorm.io/gorm"
)

type fixture struct {
	svc      *analyticsService
	db       *gorm.DB
	now      time.Time
	owner    *database.User
	listener *database.User
	artist   *database.Artist
	hit      *database.Song
	deepCut  *database.Song
}

func play(t *testing.T, db *gorm.DB, user *database.User, song *database.Song, at time.Time) {
	t.Helper()
	h := database.ListeningHistory{UserID: user.ID, SongID: song.ID, PlayedAt: at, SecondsPlayed: 60}
	require.NoError(t, db.Omit("User", "Song").Create(&h).Error)
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	// a minute ahead so rows created below fall inside the current window
	now := time.Now().UTC().Add(time.Minute)
	f := &fixture{
		svc:      &analyticsService{db: db, now: func() time.Time { return now }},
		db:       db,
		now:      now,
		owner:    testutil.CreateUser(t, db, "singer", database.RoleArtist),
		listener: testutil.CreateUser(t, db, "fan", database.RoleListener),
	}
	f.artist = testutil.CreateArtist(t, db, f.owner, "Singer")
	f.hit = testutil.CreateSong(t, db, f.artist, "hit", "pop")
	f.deepCut = testutil.CreateSong(t, db, f.artist, "deep-cut", "pop")

	play(t, db, f.listener, f.hit, now.Add(-time.Hour))
	play(t, db, f.listener, f.hit, now.Add(-48*time.Hour))
	play(t, db, f.listener, f.deepCut, now.Add(-72*time.Hour))
	play(t, db, f.listener, f.deepCut, now.Add(-10*24*time.Hour)) // previous week
	play(t, db, f.listener, f.hit, now.Add(-20*24*time.Hour))     // outside both windows

	require.NoError(t, db.Omit("User", "Song").Create(&database.SongLike{UserID: f.listener.ID, SongID: f.hit.ID}).Error)
	require.NoError(t, db.Omit("User", "Artist").Create(&database.ArtistFollow{UserID: f.listener.ID, ArtistID: f.artist.ID}).Error)
	return f
}

func TestOverview(t *testing.T) {
	f := setup(t)

	o, err := f.svc.Overview(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 7, o.Window.Days)
	assert.Equal(t, Totals{Users: 2, Artists: 1, Songs: 2}, o.Totals)
	assert.Equal(t, int64(2), o.NewUsers.Current)
	assert.Equal(t, int64(2), o.NewSongs.Current)

	assert.Equal(t, int64(3), o.Plays.Current)
	assert.Equal(t, int64(1), o.Plays.Previous)
	assert.Equal(t, float64(200), o.Plays.PercentChange)

	assert.Equal(t, int64(1), o.Likes.Current)
	assert.Zero(t, o.Comments.Current)

	require.NotEmpty(t, o.DailyPlays)
	assert.Equal(t, o.Window.Start.Format("2006-01-02"), o.DailyPlays[0].Date)
	var total int64
	for _, d := range o.DailyPlays {
		total += d.Count
	}
	assert.Equal(t, int64(3), total)
	assert.Equal(t, f.now.Format("2006-01-02"), o.DailyPlays[len(o.DailyPlays)-1].Date)
}

func TestArtistReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	r, err := f.svc.Artist(ctx, testutil.As(f.owner), f.artist.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, f.artist.ID, r.ArtistID)
	assert.Equal(t, int64(3), r.Plays.Current)
	assert.Equal(t, int64(1), r.Plays.Previous)
	assert.Equal(t, int64(1), r.Likes.Current)
	assert.Equal(t, int64(1), r.NewFollowers.Current)
	assert.Equal(t, int64(1), r.TotalFollowers)

	require.Len(t, r.TopSongs, 2)
	assert.Equal(t, TopSong{SongID: f.hit.ID, Title: "hit", Plays: 2}, r.TopSongs[0])
	assert.Equal(t, TopSong{SongID: f.deepCut.ID, Title: "deep-cut", Plays: 1}, r.TopSongs[1])
	var daily int64
	for _, d := range r.DailyPlays {
		daily += d.Count
	}
	assert.Equal(t, r.Plays.Current, daily)

	t.Run("others are refused", func(t *testing.T) {
		_, err := f.svc.Artist(ctx, testutil.As(f.listener), f.artist.ID, 7)
		assert.Equal(t, http.StatusForbidden, apperrors.StatusOf(err))
	})

	t.Run("admins may look", func(t *testing.T) {
		admin := testutil.CreateUser(t, f.db, "boss", database.RoleAdmin)
		_, err := f.svc.Artist(ctx, testutil.As(admin), f.artist.ID, 7)
		assert.NoError(t, err)
	})

	t.Run("unknown artist", func(t *testing.T) {
		_, err := f.svc.Artist(ctx, testutil.As(f.owner), 999, 7)
		assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
	})
}
