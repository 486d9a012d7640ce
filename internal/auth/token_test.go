package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *TokenManager {
	return NewTokenManager(Config{
		AccessSecret:  "access-secret-0123456789abcdef0123",
		RefreshSecret: "refresh-secret-0123456789abcdef012",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "melodia",
	})
}

func TestIssueAndParse(t *testing.T) {
	m := newTestManager()

	access, err := m.IssueAccess(42, "artist")
	require.NoError(t, err)
	claims, err := m.ParseAccess(access.Token)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, "artist", claims.Role)
	assert.Equal(t, access.ID, claims.ID)

	refresh, err := m.IssueRefresh(42, "artist")
	require.NoError(t, err)
	assert.NotEqual(t, access.ID, refresh.ID)
	_, err = m.ParseRefresh(refresh.Token)
	require.NoError(t, err)
}

func TestParseRejectsWrongType(t *testing.T) {
	m := newTestManager()
	refresh, err := m.IssueRefresh(1, "listener")
	require.NoError(t, err)

	_, err = m.ParseAccess(refresh.Token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestParseRejectsExpired(t *testing.T) {
	m := newTestManager()
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	issued, err := m.IssueAccess(1, "listener")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ParseAccess(issued.Token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestParseRejectsForeignSignature(t *testing.T) {
	other := NewTokenManager(Config{
		AccessSecret: "some-other-secret-0123456789abcdef",
		AccessTTL:    time.Minute,
		Issuer:       "melodia",
	})
	issued, err := other.IssueAccess(1, "admin")
	require.NoError(t, err)

	_, err = newTestManager().ParseAccess(issued.Token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("correct horse battery", 4)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse battery"))
	assert.False(t, CheckPassword(hash, "wrong"))

	assert.NoError(t, ValidatePassword("short but fine"))
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, ValidatePassword(string(long)), ErrPasswordTooLong)
}
