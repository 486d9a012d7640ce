package database

import (
	"errors"
	"strings"

	"github.com/weiwangfds/melodia/internal/logger"
	"gorm.io/gorm"
)

// SeedOptions admin account and demo toggle. Password hashes are computed by the caller.
type SeedOptions struct {
	AdminUsername     string
	AdminEmail        string
	AdminPasswordHash string
	// Demo adds a demo artist with a handful of songs across genres.
	Demo             bool
	DemoPasswordHash string
}

// SeedResult reports what Seed created.
type SeedResult struct {
	AdminCreated bool
	DemoSongs    int
}

var demoSongs = []struct{ Title, Genre string }{
	{"Morning Static", "Electronic"},
	{"Low Tide", "Ambient"},
	{"Paper Lanterns", "Indie"},
	{"Brass Alley", "Jazz"},
	{"Northbound", "Rock"},
	{"Quiet Hours", "Classical"},
}

// Seed creates the admin account and optional demo data. Running it twice changes nothing.
func Seed(db *gorm.DB, opts SeedOptions) (*SeedResult, error) {
	res := &SeedResult{}
	err := db.Transaction(func(tx *gorm.DB) error {
		created, err := ensureUser(tx, &User{
			Username:     opts.AdminUsername,
			Email:        strings.ToLower(opts.AdminEmail),
			PasswordHash: opts.AdminPasswordHash,
			DisplayName:  "Administrator",
			Role:         RoleAdmin,
			Status:       StatusActive,
		})
		if err != nil {
			return err
		}
		res.AdminCreated = created

		if !opts.Demo {
			return nil
		}

		demoUser := &User{
			Username:     "demo_artist",
			Email:        "demo_artist@melodia.local",
			PasswordHash: opts.DemoPasswordHash,
			DisplayName:  "Demo Artist",
			Role:         RoleArtist,
			Status:       StatusActive,
		}
		if _, err := ensureUser(tx, demoUser); err != nil {
			return err
		}

		var artist Artist
		err = tx.Where("user_id = ?", demoUser.ID).First(&artist).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			artist = Artist{UserID: demoUser.ID, Name: "Demo Artist", Bio: "Sample catalogue", Verified: true}
			if err := tx.Omit("User").Create(&artist).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		for _, d := range demoSongs {
			var count int64
			if err := tx.Model(&Song{}).Where("title = ? AND uploader_id = ?", d.Title, demoUser.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			song := Song{Title: d.Title, Genre: d.Genre, Status: SongActive, UploaderID: demoUser.ID}
			if err := tx.Omit("Uploader").Create(&song).Error; err != nil {
				return err
			}
			link := SongArtist{SongID: song.ID, ArtistID: artist.ID, Role: ArtistRolePrimary}
			if err := tx.Omit("Song", "Artist").Create(&link).Error; err != nil {
				return err
			}
			res.DemoSongs++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("seed finished: admin created=%v, demo songs=%d", res.AdminCreated, res.DemoSongs)
	return res, nil
}

// ensureUser loads u by username or creates it. u.ID is set either way.
func ensureUser(tx *gorm.DB, u *User) (bool, error) {
	var existing User
	err := tx.Where("username = ?", u.Username).First(&existing).Error
	if err == nil {
		*u = existing
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if err := tx.Create(u).Error; err != nil {
		return false, err
	}
	return true, nil
}
