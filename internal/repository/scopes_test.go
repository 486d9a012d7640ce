package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/database"
	"github.com/weiwangfds/melodia/internal/testutil"
)

func TestNewPage(t *testing.T) {
	assert.Equal(t, Page{Page: 1, PageSize: DefaultPageSize}, NewPage(0, 0))
	assert.Equal(t, Page{Page: 3, PageSize: MaxPageSize}, NewPage(3, 1000))
	assert.Equal(t, 40, NewPage(3, 20).Offset())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `my\_song`, escapeLike("my_song"))
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
}

func TestSearchMatchesLiterally(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner", database.RoleArtist)
	artist := testutil.CreateArtist(t, db, owner, "Owner")
	for _, title := range []string{"my_song", "mysong", "My-Song", "100% Pure", `back\slash`} {
		testutil.CreateSong(t, db, artist, title, "pop")
	}

	titles := func(q string) []string {
		var out []string
		require.NoError(t, db.Model(&database.Song{}).Scopes(Search("title", q)).Order("title").Pluck("title", &out).Error)
		return out
	}

	assert.Equal(t, []string{"my_song"}, titles("my_song"))
	assert.Equal(t, []string{"my_song"}, titles("MY_SONG"))
	assert.Equal(t, []string{"100% Pure"}, titles("100%"))
	assert.Equal(t, []string{`back\slash`}, titles(`k\s`))
	assert.Empty(t, titles("%"+"_"))
	assert.Len(t, titles("  "), 5)
}

func TestSearchAny(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateUser(t, db, "jane_doe", database.RoleListener)
	testutil.CreateUser(t, db, "janedoe", database.RoleListener)

	var names []string
	require.NoError(t, db.Model(&database.User{}).
		Scopes(SearchAny("JANE_", "username", "email")).
		Pluck("username", &names).Error)
	assert.Equal(t, []string{"jane_doe"}, names)
}

func TestVisibleSongs(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner", database.RoleArtist)
	other := testutil.CreateUser(t, db, "other", database.RoleListener)
	admin := testutil.CreateUser(t, db, "admin", database.RoleAdmin)
	artist := testutil.CreateArtist(t, db, owner, "Owner")
	testutil.CreateSong(t, db, artist, "open", "pop")
	hidden := testutil.CreateSong(t, db, artist, "closed", "pop")
	require.NoError(t, db.Model(&database.Song{}).Where("id = ?", hidden.ID).Update("status", database.SongHidden).Error)

	count := func(ac access.Context) int64 {
		var n int64
		require.NoError(t, db.Model(&database.Song{}).Scopes(VisibleSongs(ac, "songs")).Count(&n).Error)
		return n
	}
	assert.Equal(t, int64(1), count(access.Anonymous()))
	assert.Equal(t, int64(1), count(testutil.As(other)))
	assert.Equal(t, int64(2), count(testutil.As(owner)))
	assert.Equal(t, int64(2), count(testutil.As(admin)))
}
