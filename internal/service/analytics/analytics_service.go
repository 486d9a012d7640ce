// Package analytics computes platform and per-artist activity reports.
package analytics

import (
	"context"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/stats"
	"gorm.io/gorm"
)

const topSongsLimit = 10

// Totals are all-time platform counts.
type Totals struct {
	Users     int64 `json:"users"`
	Artists   int64 `json:"artists"`
	Songs     int64 `json:"songs"`
	Albums    int64 `json:"albums"`
	Playlists int64 `json:"playlists"`
}

// Overview is the platform report.
type Overview struct {
	Window     stats.Window       `json:"window"`
	Totals     Totals             `json:"totals"`
	NewUsers   stats.Trend        `json:"new_users"`
	NewSongs   stats.Trend        `json:"new_songs"`
	Plays      stats.Trend        `json:"plays"`
	Likes      stats.Trend        `json:"likes"`
	Comments   stats.Trend        `json:"comments"`
	DailyPlays []stats.DailyCount `json:"daily_plays"`
}

// TopSong is a song ranked by plays inside the window.
type TopSong struct {
	SongID uint   `json:"song_id"`
	Title  string `json:"title"`
	Plays  int64  `json:"plays"`
}

// ArtistReport is the activity report of one artist.
type ArtistReport struct {
	ArtistID       uint               `json:"artist_id"`
	Window         stats.Window       `json:"window"`
	Plays          stats.Trend        `json:"plays"`
	Likes          stats.Trend        `json:"likes"`
	NewFollowers   stats.Trend        `json:"new_followers"`
	TotalFollowers int64              `json:"total_followers"`
	TopSongs       []TopSong          `json:"top_songs"`
	DailyPlays     []stats.DailyCount `json:"daily_plays"`
}

// AnalyticsService reporting operations.
type AnalyticsService interface {
	Overview(ctx context.Context, days int) (*Overview, error)
	// Artist is restricted to the artist's owner and admins.
	Artist(ctx context.Context, ac access.Context, artistID uint, days int) (*ArtistReport, error)
}

type analyticsService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAnalyticsService creates the analytics service.
func NewAnalyticsService(db *gorm.DB) AnalyticsService {
	return &analyticsService{db: db, now: time.Now}
}

// trend counts rows of query whose column falls into each half of w. query
// builds a fresh statement on every call.
func trend(query func() *gorm.DB, column string, w stats.Window) (stats.Trend, error) {
	var cur, prev int64
	if err := query().Where(column+" >= ? AND "+column+" < ?", w.Start, w.End).Count(&cur).Error; err != nil {
		return stats.Trend{}, err
	}
	if err := query().Where(column+" >= ? AND "+column+" < ?", w.PrevStart, w.Start).Count(&prev).Error; err != nil {
		return stats.Trend{}, err
	}
	return stats.NewTrend(cur, prev), nil
}

func sumTrends(ts ...stats.Trend) stats.Trend {
	var cur, prev int64
	for _, t := range ts {
		cur += t.Current
		prev += t.Previous
	}
	return stats.NewTrend(cur, prev)
}

func (s *analyticsService) table(ctx context.Context, name string) func() *gorm.DB {
	return func() *gorm.DB { return s.db.WithContext(ctx).Table(name) }
}

func (s *analyticsService) Overview(ctx context.Context, days int) (*Overview, error) {
	w := stats.NewWindow(s.now(), days)
	out := &Overview{Window: w}
	db := s.db.WithContext(ctx)

	counts := []struct {
		model interface{}
		dest  *int64
	}{
		{&database.User{}, &out.Totals.Users},
		{&database.Artist{}, &out.Totals.Artists},
		{&database.Song{}, &out.Totals.Songs},
		{&database.Album{}, &out.Totals.Albums},
		{&database.Playlist{}, &out.Totals.Playlists},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dest).Error; err != nil {
			return nil, apperrors.FromDB(err, "analytics")
		}
	}

	var err error
	if out.NewUsers, err = trend(s.table(ctx, "users"), "created_at", w); err != nil {
		return nil, apperrors.FromDB(err, "analytics")
	}
	if out.NewSongs, err = trend(s.table(ctx, "songs"), "created_at", w); err != nil {
		return nil, apperrors.FromDB(err, "analytics")
	}
	if out.Plays, err = trend(s.table(ctx, "listening_history"), "played_at", w); err != nil {
		return nil, apperrors.FromDB(err, "analytics")
	}
	if out.Comments, err = trend(s.table(ctx, "comments"), "created_at", w); err != nil {
		return nil, apperrors.FromDB(err, "analytics")
	}

	var likes []stats.Trend
	for _, table := range []string{"song_likes", "album_likes", "playlist_likes"} {
		t, err := trend(s.table(ctx, table), "created_at", w)
		if err != nil {
			return nil, apperrors.FromDB(err, "analytics")
		}
		likes = append(likes, t)
	}
	out.Likes = sumTrends(likes...)

	var played []time.Time
	err = db.Table("listening_history").
		Where("played_at >= ? AND played_at < ?", w.Start, w.End).
		Pluck("played_at", &played).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "analytics")
	}
	out.DailyPlays = stats.Daily(w, played)
	return out, nil
}

func (s *analyticsService) Artist(ctx context.Context, ac access.Context, artistID uint, days int) (*ArtistReport, error) {
	var artist database.Artist
	if err := s.db.WithContext(ctx).First(&artist, artistID).Error; err != nil {
		return nil, apperrors.FromDB(err, "artist")
	}
	if !ac.CanModify(artist.UserID) {
		return nil, apperrors.Forbidden("only the artist or an admin can view these analytics")
	}

	w := stats.NewWindow(s.now(), days)
	out := &ArtistReport{ArtistID: artist.ID, Window: w}
	db := s.db.WithContext(ctx)

	plays := func() *gorm.DB {
		return s.db.WithContext(ctx).Table("listening_history lh").
			Joins("JOIN song_artists sa ON sa.song_id = lh.song_id").
			Where("sa.artist_id = ?", artist.ID)
	}
	likes := func() *gorm.DB {
		return s.db.WithContext(ctx).Table("song_likes sl").
			Joins("JOIN song_artists sa ON sa.song_id = sl.song_id").
			Where("sa.artist_id = ?", artist.ID)
	}
	follows := func() *gorm.DB {
		return s.db.WithContext(ctx).Table("artist_follows").Where("artist_id = ?", artist.ID)
	}

	var err error
	if out.Plays, err = trend(plays, "lh.played_at", w); err != nil {
		return nil, apperrors.FromDB(err, "analytics")
	}
	if out.Likes, err = trend(likes, "sl.created_at", w); err != nil {
		return nil, apperrors.FromDB(err, "analytics")
	}
	if out.NewFollowers, err = trend(follows, "created_at", w); err != nil {
		return nil, apperrors.FromDB(err, "analytics")
	}
	if err := follows().Count(&out.TotalFollowers).Error; err != nil {
		return nil, apperrors.FromDB(err, "analytics")
	}

	out.TopSongs = []TopSong{}
	err = db.Table("listening_history lh").
		Select("lh.song_id, songs.title, COUNT(*) AS plays").
		Joins("JOIN song_artists sa ON sa.song_id = lh.song_id").
		Joins("JOIN songs ON songs.id = lh.song_id").
		Where("sa.artist_id = ? AND lh.played_at >= ? AND lh.played_at < ?", artist.ID, w.Start, w.End).
		Group("lh.song_id, songs.title").
		Order("plays DESC, lh.song_id").
		Limit(topSongsLimit).
		Scan(&out.TopSongs).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "analytics")
	}

	var played []time.Time
	err = plays().Where("lh.played_at >= ? AND lh.played_at < ?", w.Start, w.End).Pluck("lh.played_at", &played).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "analytics")
	}
	out.DailyPlays = stats.Daily(w, played)
	return out, nil
}
