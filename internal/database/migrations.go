package database

import (
	"fmt"

	"github.com/weiwangfds/melodia/internal/logger"
	"gorm.io/gorm"
)

// Models lists every table in dependency order.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&RefreshToken{},
		&UserFollow{},
		&Artist{},
		&Song{},
		&SongArtist{},
		&Album{},
		&AlbumSong{},
		&ArtistFollow{},
		&Playlist{},
		&PlaylistSong{},
		&Comment{},
		&SongLike{},
		&AlbumLike{},
		&PlaylistLike{},
		&Notification{},
		&ListeningHistory{},
		&PlaybackQueue{},
		&SongReport{},
		&CommentReport{},
		&UserReport{},
		&PlaylistReport{},
		&Appeal{},
		&BlobDeletion{},
	}
}

// Migrate creates or updates the schema and the composite indexes.
func Migrate(db *gorm.DB) error {
	logger.Info("running database migration")

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := createIndexes(db); err != nil {
		return err
	}

	logger.Info("database migration finished")
	return nil
}

// createIndexes adds indexes gorm tags cannot express. Every statement is
// valid on both PostgreSQL and SQLite.
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// catalog listing and trending
		"CREATE INDEX IF NOT EXISTS idx_songs_status_created ON songs(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_songs_status_play_count ON songs(status, play_count DESC)",
		"CREATE INDEX IF NOT EXISTS idx_album_songs_track ON album_songs(album_id, track_number)",

		"CREATE INDEX IF NOT EXISTS idx_playlist_songs_position ON playlist_songs(playlist_id, position)",
		"CREATE INDEX IF NOT EXISTS idx_comments_song_parent_created ON comments(song_id, parent_id, created_at DESC)",

		"CREATE INDEX IF NOT EXISTS idx_listening_history_user_played ON listening_history(user_id, played_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_listening_history_song_played ON listening_history(song_id, played_at)",

		"CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE read_at IS NULL",

		// one pending report per reporter and target
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_song_reports_pending ON song_reports(reporter_id, song_id) WHERE status = 'pending'",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_comment_reports_pending ON comment_reports(reporter_id, comment_id) WHERE status = 'pending'",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_user_reports_pending ON user_reports(reporter_id, reported_user_id) WHERE status = 'pending'",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_playlist_reports_pending ON playlist_reports(reporter_id, playlist_id) WHERE status = 'pending'",
	}

	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Errorf("failed to create index: %s, error: %v", stmt, err)
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
