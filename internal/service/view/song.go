package view

import (
	"context"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
)

// ArtistCredit names an artist on a song.
type ArtistCredit struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Song is the JSON shape of a track.
type Song struct {
	ID              uint           `json:"id"`
	Title           string         `json:"title"`
	Genre           string         `json:"genre"`
	DurationSeconds int            `json:"duration_seconds"`
	AudioFormat     string         `json:"audio_format"`
	FileSize        int64          `json:"file_size"`
	CoverURL        string         `json:"cover_url,omitempty"`
	Lyrics          string         `json:"lyrics,omitempty"`
	ReleaseDate     *time.Time     `json:"release_date,omitempty"`
	PlayCount       int64          `json:"play_count"`
	Status          string         `json:"status"`
	UploaderID      uint           `json:"uploader_id"`
	Artists         []ArtistCredit `json:"artists"`
	LikeCount       int64          `json:"like_count"`
	LikedByMe       bool           `json:"liked_by_me"`
	CreatedAt       time.Time      `json:"created_at"`
}

type creditRow struct {
	SongID   uint
	ArtistID uint
	Name     string
	Role     string
}

// Songs builds views in the order of songs. Lyrics are only included when
// withLyrics is set.
func (p *Presenter) Songs(ctx context.Context, ac access.Context, songs []database.Song, withLyrics bool) ([]Song, error) {
	out := make([]Song, 0, len(songs))
	if len(songs) == 0 {
		return out, nil
	}
	ids := make([]uint, len(songs))
	for i := range songs {
		ids[i] = songs[i].ID
	}

	var credits []creditRow
	err := p.db.WithContext(ctx).Table("song_artists sa").
		Select("sa.song_id, sa.artist_id, a.name, sa.role").
		Joins("JOIN artists a ON a.id = sa.artist_id").
		Where("sa.song_id IN ?", ids).
		Order("CASE WHEN sa.role = 'primary' THEN 0 ELSE 1 END, a.name").
		Scan(&credits).Error
	if err != nil {
		return nil, err
	}
	bySong := make(map[uint][]ArtistCredit, len(songs))
	for _, c := range credits {
		bySong[c.SongID] = append(bySong[c.SongID], ArtistCredit{ID: c.ArtistID, Name: c.Name, Role: c.Role})
	}

	likes, err := p.countBy(ctx, "song_likes", "song_id", ids)
	if err != nil {
		return nil, err
	}
	liked, err := p.likedBy(ctx, "song_likes", "song_id", ac.UserID, ids)
	if err != nil {
		return nil, err
	}

	for i := range songs {
		s := &songs[i]
		v := Song{
			ID:              s.ID,
			Title:           s.Title,
			Genre:           s.Genre,
			DurationSeconds: s.DurationSeconds,
			AudioFormat:     s.AudioFormat,
			FileSize:        s.FileSize,
			CoverURL:        p.URL(ctx, s.CoverKey),
			ReleaseDate:     s.ReleaseDate,
			PlayCount:       s.PlayCount,
			Status:          s.Status,
			UploaderID:      s.UploaderID,
			Artists:         bySong[s.ID],
			LikeCount:       likes[s.ID],
			LikedByMe:       liked[s.ID],
			CreatedAt:       s.CreatedAt,
		}
		if v.Artists == nil {
			v.Artists = []ArtistCredit{}
		}
		if withLyrics {
			v.Lyrics = s.Lyrics
		}
		out = append(out, v)
	}
	return out, nil
}

// Song builds the detail view of one song.
func (p *Presenter) Song(ctx context.Context, ac access.Context, s *database.Song) (*Song, error) {
	views, err := p.Songs(ctx, ac, []database.Song{*s}, true)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}
