package errors

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes handled by FromDB.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgNotNullViolation     = "23502"
	pgCheckViolation       = "23514"
	pgInvalidTextRepr      = "22P02"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// Is, As and Join re-export the standard helpers so callers need one import.
var (
	Is   = stderrors.Is
	As   = stderrors.As
	Join = stderrors.Join
)

// FromDB maps a database error to an *AppError. entity names the record for
// not-found and conflict messages. A nil err yields nil; an *AppError passes through.
func FromDB(err error, entity string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := GetAppError(err); ok {
		return appErr
	}
	if entity == "" {
		entity = "record"
	}

	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return NotFound(entity).WithOriginalError(err)
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return Wrap(ErrServiceUnavailable, "", err)
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(ErrConflict, entity+" already exists", err)
	case stderrors.Is(err, gorm.ErrForeignKeyViolated):
		return Wrap(ErrInvalidParams, "referenced record does not exist", err)
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return Wrap(ErrConflict, entity+" already exists", err)
		case pgForeignKeyViolation:
			return Wrap(ErrInvalidParams, "referenced record does not exist", err)
		case pgNotNullViolation, pgCheckViolation, pgInvalidTextRepr:
			return Wrap(ErrInvalidParams, "invalid value for "+entity, err)
		case pgSerializationFailure, pgDeadlockDetected:
			return Wrap(ErrConflict, "concurrent update, please retry", err)
		}
	}

	// SQLite reports constraint failures as plain text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return Wrap(ErrConflict, entity+" already exists", err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return Wrap(ErrInvalidParams, "referenced record does not exist", err)
	case strings.Contains(msg, "NOT NULL constraint failed"), strings.Contains(msg, "CHECK constraint failed"):
		return Wrap(ErrInvalidParams, "invalid value for "+entity, err)
	}

	return Wrap(ErrDatabase, "", err)
}
