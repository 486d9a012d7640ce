// Package catalog implements songs, albums, genres and trending.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"gorm.io/gorm"
)

// artistOf returns the artist profile of the caller, 403 when there is none.
func artistOf(ctx context.Context, db *gorm.DB, ac access.Context) (*database.Artist, error) {
	var a database.Artist
	err := db.WithContext(ctx).Where("user_id = ?", ac.UserID).Limit(1).Find(&a).Error
	if err != nil {
		return nil, apperrors.FromDB(err, "artist")
	}
	if a.ID == 0 {
		return nil, apperrors.Forbidden("an artist profile is required")
	}
	return &a, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339. Empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apperrors.Validation(map[string]string{"release_date": "must be a date in YYYY-MM-DD format"})
	}
	t = t.UTC()
	return &t, nil
}
