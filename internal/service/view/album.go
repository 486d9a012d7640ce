package view

import (
	"context"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	"github.com/weiwangfds/melodia/internal/repository"
)

// Album is the list shape of an album.
type Album struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	ArtistID    uint       `json:"artist_id"`
	ArtistName  string     `json:"artist_name"`
	AlbumType   string     `json:"album_type"`
	Description string     `json:"description"`
	CoverURL    string     `json:"cover_url,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	TrackCount  int64      `json:"track_count"`
	LikeCount   int64      `json:"like_count"`
	LikedByMe   bool       `json:"liked_by_me"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Track is a song at a position on an album.
type Track struct {
	TrackNumber int  `json:"track_number"`
	Song        Song `json:"song"`
}

// AlbumDetail is an album with its ordered tracks.
type AlbumDetail struct {
	Album
	Tracks []Track `json:"tracks"`
}

// Albums builds list views.
func (p *Presenter) Albums(ctx context.Context, ac access.Context, albums []database.Album) ([]Album, error) {
	out := make([]Album, 0, len(albums))
	if len(albums) == 0 {
		return out, nil
	}
	ids := make([]uint, len(albums))
	artistIDs := make([]uint, 0, len(albums))
	for i := range albums {
		ids[i] = albums[i].ID
		artistIDs = append(artistIDs, albums[i].ArtistID)
	}

	var artists []database.Artist
	if err := p.db.WithContext(ctx).Select("id", "name").Where("id IN ?", artistIDs).Find(&artists).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(artists))
	for _, a := range artists {
		names[a.ID] = a.Name
	}

	tracks, err := p.countBy(ctx, "album_songs", "album_id", ids)
	if err != nil {
		return nil, err
	}
	likes, err := p.countBy(ctx, "album_likes", "album_id", ids)
	if err != nil {
		return nil, err
	}
	liked, err := p.likedBy(ctx, "album_likes", "album_id", ac.UserID, ids)
	if err != nil {
		return nil, err
	}

	for i := range albums {
		a := &albums[i]
		out = append(out, Album{
			ID:          a.ID,
			Title:       a.Title,
			ArtistID:    a.ArtistID,
			ArtistName:  names[a.ArtistID],
			AlbumType:   a.AlbumType,
			Description: a.Description,
			CoverURL:    p.URL(ctx, a.CoverKey),
			ReleaseDate: a.ReleaseDate,
			TrackCount:  tracks[a.ID],
			LikeCount:   likes[a.ID],
			LikedByMe:   liked[a.ID],
			CreatedAt:   a.CreatedAt,
		})
	}
	return out, nil
}

// AlbumDetail builds an album with the tracks visible to ac, ordered by track number.
func (p *Presenter) AlbumDetail(ctx context.Context, ac access.Context, a *database.Album) (*AlbumDetail, error) {
	views, err := p.Albums(ctx, ac, []database.Album{*a})
	if err != nil {
		return nil, err
	}

	var rows []database.AlbumSong
	if err := p.db.WithContext(ctx).Where("album_id = ?", a.ID).Order("track_number").Find(&rows).Error; err != nil {
		return nil, err
	}
	songIDs := make([]uint, len(rows))
	for i, r := range rows {
		songIDs[i] = r.SongID
	}

	var songs []database.Song
	if len(songIDs) > 0 {
		if err := p.db.WithContext(ctx).Where("id IN ?", songIDs).Find(&songs).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[uint]database.Song, len(songs))
	for _, s := range songs {
		byID[s.ID] = s
	}

	ordered := make([]database.Song, 0, len(rows))
	numbers := make([]int, 0, len(rows))
	for _, r := range rows {
		s, ok := byID[r.SongID]
		if !ok || !repository.CanSeeSong(ac, &s) {
			continue
		}
		ordered = append(ordered, s)
		numbers = append(numbers, r.TrackNumber)
	}
	songViews, err := p.Songs(ctx, ac, ordered, false)
	if err != nil {
		return nil, err
	}

	d := &AlbumDetail{Album: views[0], Tracks: make([]Track, len(songViews))}
	for i := range songViews {
		d.Tracks[i] = Track{TrackNumber: numbers[i], Song: songViews[i]}
	}
	return d, nil
}
