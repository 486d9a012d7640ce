package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestHelpersMapToStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, BadRequest("x").Status)
	assert.Equal(t, http.StatusUnauthorized, Unauthorized("x").Status)
	assert.Equal(t, http.StatusForbidden, Forbidden("x").Status)
	assert.Equal(t, http.StatusNotFound, NotFound("song").Status)
	assert.Equal(t, http.StatusConflict, Conflict("x").Status)
	assert.Equal(t, http.StatusInternalServerError, Internal(stderrors.New("boom")).Status)
	assert.Equal(t, http.StatusRequestEntityTooLarge, New(ErrPayloadTooLarge, "").Status)

	assert.Equal(t, "song not found", NotFound("song").Message)
	assert.Equal(t, "NotFound", NotFound("song").Name())
}

func TestWithCopies(t *testing.T) {
	base := Conflict("taken")
	detailed := base.WithDetails("username")
	assert.Empty(t, base.Details)
	assert.Equal(t, "username", detailed.Details)

	orig := stderrors.New("driver failure")
	wrapped := base.WithOriginalError(orig)
	assert.Nil(t, base.OriginalError)
	assert.True(t, Is(wrapped, orig))
}

func TestGetAppErrorThroughWrapping(t *testing.T) {
	err := fmt.Errorf("loading: %w", NotFound("album"))
	appErr, ok := GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, ErrNotFound, appErr.Code)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(stderrors.New("plain")))
}

func TestFromDB(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"canceled", context.Canceled, ErrServiceUnavailable},
		{"gorm duplicate", gorm.ErrDuplicatedKey, ErrConflict},
		{"gorm foreign key", gorm.ErrForeignKeyViolated, ErrInvalidParams},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, ErrConflict},
		{"postgres not null", &pgconn.PgError{Code: "23502"}, ErrInvalidParams},
		{"postgres deadlock", &pgconn.PgError{Code: "40P01"}, ErrConflict},
		{"sqlite unique", stderrors.New("UNIQUE constraint failed: users.email"), ErrConflict},
		{"sqlite foreign key", stderrors.New("FOREIGN KEY constraint failed"), ErrInvalidParams},
		{"unknown", stderrors.New("disk I/O error"), ErrDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr, ok := GetAppError(FromDB(tt.err, "user"))
			require.True(t, ok)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, FromDB(nil, "user"))
	})

	t.Run("app errors pass through", func(t *testing.T) {
		orig := Forbidden("not yours")
		assert.Same(t, orig, FromDB(orig, "user"))
	})

	t.Run("conflict names the entity", func(t *testing.T) {
		appErr, _ := GetAppError(FromDB(gorm.ErrDuplicatedKey, "playlist"))
		assert.Equal(t, "playlist already exists", appErr.Message)
	})
}
