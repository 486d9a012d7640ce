// Package history serves the caller's listening history.
package history

import (
	"context"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/repository"
	"github.com/weiwangfds/melodia/internal/service/view"
	"gorm.io/gorm"
)

// Entry is one play with the song it refers to.
type Entry struct {
	ID            uint      `json:"id"`
	PlayedAt      time.Time `json:"played_at"`
	SecondsPlayed int       `json:"seconds_played"`
	Source        string    `json:"source,omitempty"`
	Song          view.Song `json:"song"`
}

// RecentSong is a distinct recently played song.
type RecentSong struct {
	LastPlayedAt time.Time `json:"last_played_at"`
	Song         view.Song `json:"song"`
}

// HistoryService listening history operations.
type HistoryService interface {
	List(ctx context.Context, ac access.Context, page repository.Page) ([]Entry, int64, error)
	// Recent returns distinct songs, most recently played first.
	Recent(ctx context.Context, ac access.Context, limit int) ([]RecentSong, error)
	Clear(ctx context.Context, ac access.Context) (int64, error)
}

type historyService struct {
	db        *gorm.DB
	presenter *view.Presenter
}

// NewHistoryService creates the history service.
func NewHistoryService(db *gorm.DB, presenter *view.Presenter) HistoryService {
	return &historyService{db: db, presenter: presenter}
}

// songs loads and presents songs by id, keeping only those ac may see.
func (s *historyService) songs(ctx context.Context, ac access.Context, ids []uint) (map[uint]view.Song, error) {
	out := make(map[uint]view.Song, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var songs []database.Song
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Scopes(repository.VisibleSongs(ac, "songs")).Find(&songs).Error; err != nil {
		return nil, apperrors.FromDB(err, "song")
	}
	views, err := s.presenter.Songs(ctx, ac, songs, false)
	if err != nil {
		return nil, apperrors.FromDB(err, "song")
	}
	for _, v := range views {
		out[v.ID] = v
	}
	return out, nil
}

func (s *historyService) List(ctx context.Context, ac access.Context, page repository.Page) ([]Entry, int64, error) {
	db := s.db.WithContext(ctx).Model(&database.ListeningHistory{}).Where("user_id = ?", ac.UserID)
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "history")
	}
	var rows []database.ListeningHistory
	if err := db.Order("played_at DESC, id DESC").Scopes(repository.Paginate(page)).Find(&rows).Error; err != nil {
		return nil, 0, apperrors.FromDB(err, "history")
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.SongID)
	}
	songs, err := s.songs(ctx, ac, ids)
	if err != nil {
		return nil, 0, err
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		song, ok := songs[r.SongID]
		if !ok {
			continue
		}
		out = append(out, Entry{
			ID:            r.ID,
			PlayedAt:      r.PlayedAt,
			SecondsPlayed: r.SecondsPlayed,
			Source:        r.Source,
			Song:          song,
		})
	}
	return out, total, nil
}

func (s *historyService) Recent(ctx context.Context, ac access.Context, limit int) ([]RecentSong, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > repository.MaxPageSize {
		limit = repository.MaxPageSize
	}
	var ids []uint
	err := s.db.WithContext(ctx).Model(&database.ListeningHistory{}).
		Where("user_id = ?", ac.UserID).
		Group("song_id").
		Order("MAX(played_at) DESC").
		Limit(limit).
		Pluck("song_id", &ids).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "history")
	}
	if len(ids) == 0 {
		return []RecentSong{}, nil
	}

	var rows []database.ListeningHistory
	if err := s.db.WithContext(ctx).Select("song_id", "played_at").
		Where("user_id = ? AND song_id IN ?", ac.UserID, ids).
		Find(&rows).Error; err != nil {
		return nil, apperrors.FromDB(err, "history")
	}
	last := make(map[uint]time.Time, len(ids))
	for _, r := range rows {
		if r.PlayedAt.After(last[r.SongID]) {
			last[r.SongID] = r.PlayedAt
		}
	}

	songs, err := s.songs(ctx, ac, ids)
	if err != nil {
		return nil, err
	}
	out := make([]RecentSong, 0, len(ids))
	for _, id := range ids {
		if song, ok := songs[id]; ok {
			out = append(out, RecentSong{LastPlayedAt: last[id], Song: song})
		}
	}
	return out, nil
}

func (s *historyService) Clear(ctx context.Context, ac access.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", ac.UserID).Delete(&database.ListeningHistory{})
	if res.Error != nil {
		return 0, apperrors.FromDB(res.Error, "history")
	}
	return res.RowsAffected, nil
}
