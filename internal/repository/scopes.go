// Package repository holds the gorm scopes shared by the services: paging,
// search and the access-dependent visibility filters.
package repository

import (
	"strings"

	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	"gorm.io/gorm"
)

// Paging limits.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page     int
	PageSize int
}

// NewPage normalises page and size.
func NewPage(page, size int) Page {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Page: page, PageSize: size}
}

// Offset of the first row.
func (p Page) Offset() int { return (p.Page - 1) * p.PageSize }

// Paginate applies LIMIT/OFFSET.
func Paginate(p Page) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		p = NewPage(p.Page, p.PageSize)
		return db.Offset(p.Offset()).Limit(p.PageSize)
	}
}

// Search filters column case-insensitively by q. An empty q is a no-op.
// column must be a trusted identifier.
func Search(column, q string) func(*gorm.DB) *gorm.DB {
	return SearchAny(q, column)
}

// SearchAny matches q against any of columns. % and _ in q match literally.
func SearchAny(q string, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		q = strings.TrimSpace(q)
		if q == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		conds := make([]string, len(columns))
		args := make([]interface{}, len(columns))
		for i, c := range columns {
			conds[i] = "LOWER(" + c + `) LIKE ? ESCAPE '\'`
			args[i] = pattern
		}
		return db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// VisibleSongs hides hidden songs from everyone except their uploader and admins.
// alias is the songs table name or alias used by the query.
func VisibleSongs(ac access.Context, alias string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if ac.IsAdmin() {
			return db
		}
		if ac.Authenticated {
			return db.Where("("+alias+".status = ? OR "+alias+".uploader_id = ?)", database.SongActive, ac.UserID)
		}
		return db.Where(alias+".status = ?", database.SongActive)
	}
}

// VisiblePlaylists returns public playlists plus the caller's own.
func VisiblePlaylists(ac access.Context, alias string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if ac.IsAdmin() {
			return db
		}
		if ac.Authenticated {
			return db.Where("("+alias+".is_public = ? OR "+alias+".owner_id = ?)", true, ac.UserID)
		}
		return db.Where(alias+".is_public = ?", true)
	}
}

// VisibleComments hides hidden comments from everyone except their author and admins.
func VisibleComments(ac access.Context, alias string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if ac.IsAdmin() {
			return db
		}
		if ac.Authenticated {
			return db.Where("("+alias+".is_hidden = ? OR "+alias+".user_id = ?)", false, ac.UserID)
		}
		return db.Where(alias+".is_hidden = ?", false)
	}
}

// CanSeeSong applies the VisibleSongs rule to a loaded row.
func CanSeeSong(ac access.Context, s *database.Song) bool {
	return s.Status == database.SongActive || ac.CanModify(s.UploaderID)
}

// CanSeePlaylist applies the VisiblePlaylists rule to a loaded row.
func CanSeePlaylist(ac access.Context, p *database.Playlist) bool {
	return p.IsPublic || ac.CanModify(p.OwnerID)
}

// CanSeeComment applies the VisibleComments rule to a loaded row.
func CanSeeComment(ac access.Context, c *database.Comment) bool {
	return !c.IsHidden || ac.CanModify(c.UserID)
}
