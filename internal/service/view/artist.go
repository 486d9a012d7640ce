package view

import (
	"context"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
)

// Artist is the list shape of an artist profile.
type Artist struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio"`
	ImageURL  string    `json:"image_url,omitempty"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// ArtistDetail adds counters and the caller's follow state.
type ArtistDetail struct {
	Artist
	FollowerCount int64 `json:"follower_count"`
	SongCount     int64 `json:"song_count"`
	AlbumCount    int64 `json:"album_count"`
	FollowedByMe  bool  `json:"followed_by_me"`
}

// Artist builds the list view.
func (p *Presenter) Artist(ctx context.Context, a *database.Artist) Artist {
	return Artist{
		ID:        a.ID,
		UserID:    a.UserID,
		Name:      a.Name,
		Bio:       a.Bio,
		ImageURL:  p.URL(ctx, a.ImageKey),
		Verified:  a.Verified,
		CreatedAt: a.CreatedAt,
	}
}

// Artists builds list views.
func (p *Presenter) Artists(ctx context.Context, artists []database.Artist) []Artist {
	out := make([]Artist, 0, len(artists))
	for i := range artists {
		out = append(out, p.Artist(ctx, &artists[i]))
	}
	return out
}

// ArtistDetail builds the detail view. Song counts only include songs visible to ac.
func (p *Presenter) ArtistDetail(ctx context.Context, ac access.Context, a *database.Artist) (*ArtistDetail, error) {
	db := p.db.WithContext(ctx)
	d := &ArtistDetail{Artist: p.Artist(ctx, a)}

	if err := db.Model(&database.ArtistFollow{}).Where("artist_id = ?", a.ID).Count(&d.FollowerCount).Error; err != nil {
		return nil, err
	}
	songs := db.Table("songs").
		Joins("JOIN song_artists sa ON sa.song_id = songs.id").
		Where("sa.artist_id = ?", a.ID)
	if !ac.CanModify(a.UserID) {
		songs = songs.Where("songs.status = ?", database.SongActive)
	}
	if err := songs.Count(&d.SongCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&database.Album{}).Where("artist_id = ?", a.ID).Count(&d.AlbumCount).Error; err != nil {
		return nil, err
	}
	if ac.Authenticated {
		var n int64
		if err := db.Model(&database.ArtistFollow{}).
			Where("user_id = ? AND artist_id = ?", ac.UserID, a.ID).Count(&n).Error; err != nil {
			return nil, err
		}
		d.FollowedByMe = n > 0
	}
	return d, nil
}
