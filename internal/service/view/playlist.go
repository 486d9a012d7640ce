package view

import (
	"context"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	"github.com/weiwangfds/melodia/internal/repository"
)

// Playlist is the list shape of a playlist.
type Playlist struct {
	ID          uint      `json:"id"`
	OwnerID     uint      `json:"owner_id"`
	OwnerName   string    `json:"owner_name"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPublic    bool      `json:"is_public"`
	CoverURL    string    `json:"cover_url,omitempty"`
	SongCount   int64     `json:"song_count"`
	LikeCount   int64     `json:"like_count"`
	LikedByMe   bool      `json:"liked_by_me"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PlaylistEntry is a song at a position of a playlist.
type PlaylistEntry struct {
	Position int       `json:"position"`
	AddedAt  time.Time `json:"added_at"`
	Song     Song      `json:"song"`
}

// PlaylistDetail is a playlist with its songs in order.
type PlaylistDetail struct {
	Playlist
	Songs []PlaylistEntry `json:"songs"`
}

// Playlists builds list views.
func (p *Presenter) Playlists(ctx context.Context, ac access.Context, playlists []database.Playlist) ([]Playlist, error) {
	out := make([]Playlist, 0, len(playlists))
	if len(playlists) == 0 {
		return out, nil
	}
	ids := make([]uint, len(playlists))
	ownerIDs := make([]uint, 0, len(playlists))
	for i := range playlists {
		ids[i] = playlists[i].ID
		ownerIDs = append(ownerIDs, playlists[i].OwnerID)
	}

	var owners []database.User
	if err := p.db.WithContext(ctx).Select("id", "username", "display_name").Where("id IN ?", ownerIDs).Find(&owners).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(owners))
	for _, u := range owners {
		names[u.ID] = u.DisplayName
		if u.DisplayName == "" {
			names[u.ID] = u.Username
		}
	}

	songs, err := p.countBy(ctx, "playlist_songs", "playlist_id", ids)
	if err != nil {
		return nil, err
	}
	likes, err := p.countBy(ctx, "playlist_likes", "playlist_id", ids)
	if err != nil {
		return nil, err
	}
	liked, err := p.likedBy(ctx, "playlist_likes", "playlist_id", ac.UserID, ids)
	if err != nil {
		return nil, err
	}

	for i := range playlists {
		pl := &playlists[i]
		out = append(out, Playlist{
			ID:          pl.ID,
			OwnerID:     pl.OwnerID,
			OwnerName:   names[pl.OwnerID],
			Name:        pl.Name,
			Description: pl.Description,
			IsPublic:    pl.IsPublic,
			CoverURL:    p.URL(ctx, pl.CoverKey),
			SongCount:   songs[pl.ID],
			LikeCount:   likes[pl.ID],
			LikedByMe:   liked[pl.ID],
			CreatedAt:   pl.CreatedAt,
			UpdatedAt:   pl.UpdatedAt,
		})
	}
	return out, nil
}

// PlaylistDetail builds a playlist with its songs. Songs hidden from ac are skipped.
func (p *Presenter) PlaylistDetail(ctx context.Context, ac access.Context, pl *database.Playlist) (*PlaylistDetail, error) {
	views, err := p.Playlists(ctx, ac, []database.Playlist{*pl})
	if err != nil {
		return nil, err
	}

	var entries []database.PlaylistSong
	if err := p.db.WithContext(ctx).Where("playlist_id = ?", pl.ID).Order("position").Find(&entries).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, len(entries))
	for i, e := range entries {
		ids[i] = e.SongID
	}
	var songs []database.Song
	if len(ids) > 0 {
		if err := p.db.WithContext(ctx).Where("id IN ?", ids).Find(&songs).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[uint]database.Song, len(songs))
	for _, s := range songs {
		byID[s.ID] = s
	}

	ordered := make([]database.Song, 0, len(entries))
	kept := make([]database.PlaylistSong, 0, len(entries))
	for _, e := range entries {
		s, ok := byID[e.SongID]
		if !ok || !repository.CanSeeSong(ac, &s) {
			continue
		}
		ordered = append(ordered, s)
		kept = append(kept, e)
	}
	songViews, err := p.Songs(ctx, ac, ordered, false)
	if err != nil {
		return nil, err
	}

	d := &PlaylistDetail{Playlist: views[0], Songs: make([]PlaylistEntry, len(songViews))}
	for i := range songViews {
		d.Songs[i] = PlaylistEntry{Position: kept[i].Position, AddedAt: kept[i].AddedAt, Song: songViews[i]}
	}
	return d, nil
}
