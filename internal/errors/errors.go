// Package errors defines the application error type and the mapping from
// database failures to HTTP statuses.
package errors

import (
	"fmt"
	"net/http"

	"github.com/weiwangfds/melodia/internal/i18n"
)

// ErrorCode application error code.
type ErrorCode int

const (
	// general (1000-1099)
	ErrSuccess            ErrorCode = 0
	ErrInternalServer     ErrorCode = 1000
	ErrInvalidParams      ErrorCode = 1001
	ErrUnauthorized       ErrorCode = 1002
	ErrForbidden          ErrorCode = 1003
	ErrNotFound           ErrorCode = 1004
	ErrConflict           ErrorCode = 1005
	ErrTooManyRequests    ErrorCode = 1006
	ErrServiceUnavailable ErrorCode = 1007
	ErrValidation         ErrorCode = 1008

	// auth (1100-1199)
	ErrInvalidCredentials ErrorCode = 1100
	ErrTokenInvalid       ErrorCode = 1101
	ErrAccountInactive    ErrorCode = 1102

	// media (2000-2999)
	ErrPayloadTooLarge  ErrorCode = 2006
	ErrUnsupportedMedia ErrorCode = 2007

	// storage (3000-3999)
	ErrStorageFailed ErrorCode = 3000

	// database (4000-4999)
	ErrDatabase ErrorCode = 4000
)

type codeMeta struct {
	status int
	name   string
	key    string
}

var codeTable = map[ErrorCode]codeMeta{
	ErrSuccess:            {http.StatusOK, "OK", "success"},
	ErrInternalServer:     {http.StatusInternalServerError, "InternalServerError", "internal_server_error"},
	ErrInvalidParams:      {http.StatusBadRequest, "BadRequest", "invalid_params"},
	ErrUnauthorized:       {http.StatusUnauthorized, "Unauthorized", "unauthorized"},
	ErrForbidden:          {http.StatusForbidden, "Forbidden", "forbidden"},
	ErrNotFound:           {http.StatusNotFound, "NotFound", "not_found"},
	ErrConflict:           {http.StatusConflict, "Conflict", "conflict"},
	ErrTooManyRequests:    {http.StatusTooManyRequests, "TooManyRequests", "too_many_requests"},
	ErrServiceUnavailable: {http.StatusServiceUnavailable, "ServiceUnavailable", "service_unavailable"},
	ErrValidation:         {http.StatusBadRequest, "ValidationError", "validation_failed"},
	ErrInvalidCredentials: {http.StatusUnauthorized, "Unauthorized", "invalid_credentials"},
	ErrTokenInvalid:       {http.StatusUnauthorized, "Unauthorized", "token_invalid"},
	ErrAccountInactive:    {http.StatusForbidden, "Forbidden", "account_inactive"},
	ErrPayloadTooLarge:    {http.StatusRequestEntityTooLarge, "PayloadTooLarge", "payload_too_large"},
	ErrUnsupportedMedia:   {http.StatusUnsupportedMediaType, "UnsupportedMediaType", "unsupported_media"},
	ErrStorageFailed:      {http.StatusBadGateway, "StorageError", "storage_failed"},
	ErrDatabase:           {http.StatusInternalServerError, "InternalServerError", "database_error"},
}

// AppError is the error every service returns to the HTTP layer.
type AppError struct {
	Code   ErrorCode `json:"code"`
	Status int       `json:"statusCode"`
	// Message is shown to the client. Empty means "use the localized default".
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	// OriginalError is logged, never serialised.
	OriginalError error `json:"-"`
}

func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = GetErrorMessage(e.Code)
	}
	if e.OriginalError != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, msg, e.OriginalError)
	}
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, msg, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, msg)
}

// Unwrap exposes the original error to errors.Is / errors.As.
func (e *AppError) Unwrap() error { return e.OriginalError }

// Name is the short error label of the response body, e.g. "NotFound".
func (e *AppError) Name() string {
	if meta, ok := codeTable[e.Code]; ok {
		return meta.name
	}
	return http.StatusText(e.Status)
}

// LocalizedMessage returns Message, or the catalogue text for lang when Message is empty.
func (e *AppError) LocalizedMessage(lang string) string {
	if e.Message != "" {
		return e.Message
	}
	return GetErrorMessageWithLang(e.Code, lang)
}

// WithDetails returns a copy carrying details.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithOriginalError returns a copy wrapping err.
func (e *AppError) WithOriginalError(err error) *AppError {
	cp := *e
	cp.OriginalError = err
	return &cp
}

// New creates an error for code with an explicit message.
func New(code ErrorCode, message string) *AppError {
	status := http.StatusInternalServerError
	if meta, ok := codeTable[code]; ok {
		status = meta.status
	}
	return &AppError{Code: code, Status: status, Message: message}
}

// Newf is New with formatting.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an error for code that keeps err for logging.
func Wrap(code ErrorCode, message string, err error) *AppError {
	appErr := New(code, message)
	appErr.OriginalError = err
	return appErr
}

// BadRequest 400.
func BadRequest(message string) *AppError { return New(ErrInvalidParams, message) }

// BadRequestf 400 with formatting.
func BadRequestf(format string, args ...interface{}) *AppError {
	return Newf(ErrInvalidParams, format, args...)
}

// Unauthorized 401.
func Unauthorized(message string) *AppError { return New(ErrUnauthorized, message) }

// Forbidden 403.
func Forbidden(message string) *AppError { return New(ErrForbidden, message) }

// NotFound 404 naming the missing entity.
func NotFound(entity string) *AppError {
	if entity == "" {
		return New(ErrNotFound, "")
	}
	return Newf(ErrNotFound, "%s not found", entity)
}

// Conflict 409.
func Conflict(message string) *AppError { return New(ErrConflict, message) }

// Internal 500 wrapping err.
func Internal(err error) *AppError { return Wrap(ErrInternalServer, "", err) }

// Validation 400 with per-field messages.
func Validation(fields map[string]string) *AppError {
	appErr := New(ErrValidation, "")
	appErr.Fields = fields
	return appErr
}

// IsAppError reports whether err is an *AppError.
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError extracts the *AppError in err's chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status err maps to.
func StatusOf(err error) int {
	if appErr, ok := GetAppError(err); ok {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// GetErrorMessage returns the message for code in the default language.
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang returns the message for code in lang.
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	key := "unknown_error"
	if meta, ok := codeTable[code]; ok {
		key = meta.key
	}
	return i18n.GetInstance().Translate(key, lang)
}
