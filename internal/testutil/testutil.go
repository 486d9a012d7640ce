// Package testutil builds in-memory databases, media services and fixtures
// for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/melodia/config"
	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	"github.com/weiwangfds/melodia/internal/media"
	"github.com/weiwangfds/melodia/internal/storage"
	"gorm.io/gorm"
)

// Secrets long enough to pass config validation.
const (
	AccessSecret  = "test-access-secret-0123456789abcdef"
	RefreshSecret = "test-refresh-secret-0123456789abcdef"
	SigningKey    = "test-signing-key-0123"
)

// NewDB returns a migrated in-memory SQLite database closed on cleanup.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Init(database.Config{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })
	return db
}

// NewLocalProvider stores blobs under a temporary directory.
func NewLocalProvider(t *testing.T) *storage.LocalProvider {
	t.Helper()
	p, err := storage.NewLocalProvider(storage.LocalConfig{
		Root:       t.TempDir(),
		BaseURL:    "http://localhost:8080/media",
		SigningKey: SigningKey,
	})
	require.NoError(t, err)
	return p
}

// NewMedia returns a media service backed by NewLocalProvider with the default limits.
func NewMedia(t *testing.T) *media.Service {
	t.Helper()
	cfg := config.Default()
	return media.NewService(NewLocalProvider(t), media.Policy{
		MaxAudioSize:    cfg.Media.MaxAudioSize,
		MaxImageSize:    cfg.Media.MaxImageSize,
		AudioExtensions: cfg.Media.AudioExtensions,
		ImageExtensions: cfg.Media.ImageExtensions,
	}, time.Hour)
}

// Config returns a valid configuration using SQLite and local storage.
func Config(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Mode = "test"
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = ":memory:"
	cfg.Database.LogLevel = "silent"
	cfg.Auth.AccessSecret = AccessSecret
	cfg.Auth.RefreshSecret = RefreshSecret
	cfg.Auth.BcryptCost = 4
	cfg.Storage.Provider = storage.ProviderLocal
	cfg.Storage.Local.Root = t.TempDir()
	cfg.Storage.Local.SigningKey = SigningKey
	return cfg
}

// CreateUser inserts an active user with the given role.
func CreateUser(t *testing.T, db *gorm.DB, username, role string) *database.User {
	t.Helper()
	u := &database.User{
		Username:     username,
		Email:        fmt.Sprintf("%s@example.com", username),
		PasswordHash: "x",
		DisplayName:  username,
		Role:         role,
		Status:       database.StatusActive,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateArtist inserts an artist profile owned by user.
func CreateArtist(t *testing.T, db *gorm.DB, user *database.User, name string) *database.Artist {
	t.Helper()
	a := &database.Artist{UserID: user.ID, Name: name}
	require.NoError(t, db.Omit("User").Create(a).Error)
	return a
}

// CreateSong inserts an active song uploaded by artist's user and credits the artist.
func CreateSong(t *testing.T, db *gorm.DB, artist *database.Artist, title, genre string) *database.Song {
	t.Helper()
	s := &database.Song{
		Title:           title,
		Genre:           genre,
		DurationSeconds: 180,
		AudioKey:        "audio/2024/01/" + title + ".mp3",
		AudioFormat:     "mp3",
		Status:          database.SongActive,
		UploaderID:      artist.UserID,
	}
	require.NoError(t, db.Omit("Uploader").Create(s).Error)
	link := &database.SongArtist{SongID: s.ID, ArtistID: artist.ID, Role: database.ArtistRolePrimary}
	require.NoError(t, db.Omit("Song", "Artist").Create(link).Error)
	return s
}

// As builds the access context of u.
func As(u *database.User) access.Context {
	return access.ForUser(u.ID, u.Role)
}
