// Package response writes the uniform JSON envelopes.
package response

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/i18n"
	"github.com/weiwangfds/melodia/internal/logger"
)

// Context keys shared with the middleware package.
const (
	RequestIDKey = "request_id"
	LanguageKey  = "lang"
)

// Response success envelope.
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// PageData paged list payload.
type PageData struct {
	List       interface{} `json:"list"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// ErrorBody error envelope.
type ErrorBody struct {
	Error      string            `json:"error"`
	Message    string            `json:"message"`
	StatusCode int               `json:"statusCode"`
	Code       int               `json:"code"`
	Details    string            `json:"details,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
}

// now is swapped in tests.
var now = time.Now

// Success 200 with data.
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, data)
}

// Created 201 with data.
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, data)
}

// NoContent 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// SuccessWithPage 200 with a paged list.
func SuccessWithPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}
	write(c, http.StatusOK, PageData{
		List:       list,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

func write(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Code:      0,
		Message:   i18n.GetInstance().Translate("success", Language(c)),
		Data:      data,
		RequestID: RequestID(c),
		Timestamp: now().Unix(),
	})
}

// Error writes err in the uniform error shape. Errors that are not *AppError
// become 500s; 5xx responses are logged with the original cause.
func Error(c *gin.Context, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}

	lang := Language(c)
	if appErr.Status >= http.StatusInternalServerError {
		logger.WithFields(map[string]interface{}{
			"request_id": RequestID(c),
			"path":       c.Request.URL.Path,
			"code":       appErr.Code,
		}).Errorf("request failed: %v", err)
	}

	body := ErrorBody{
		Error:      appErr.Name(),
		Message:    appErr.LocalizedMessage(lang),
		StatusCode: appErr.Status,
		Code:       int(appErr.Code),
		Fields:     appErr.Fields,
		RequestID:  RequestID(c),
	}
	// Internal details never leave the server.
	if appErr.Status < http.StatusInternalServerError {
		body.Details = appErr.Details
	}
	c.AbortWithStatusJSON(appErr.Status, body)
}

// BindError converts a gin binding failure into a 400. Validator failures carry
// per-field messages translated into the request language.
func BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if apperrors.As(err, &verrs) {
		trans := i18n.GetInstance().Translator(Language(c))
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[jsonFieldName(fe)] = fe.Translate(trans)
		}
		Error(c, apperrors.Validation(fields))
		return
	}
	Error(c, apperrors.BadRequest("malformed request body").WithDetails(err.Error()))
}

// jsonFieldName turns "CreateSongRequest.Title" into "title" when the
// validator was not given a tag-name function.
func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		name = fe.StructField()
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// RequestID returns the request id set by the middleware.
func RequestID(c *gin.Context) string {
	if id, ok := c.Get(RequestIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// Language returns the negotiated language, falling back to Accept-Language.
func Language(c *gin.Context) string {
	if lang := c.GetString(LanguageKey); lang != "" {
		return lang
	}
	return i18n.GetInstance().FromAcceptLanguage(c.GetHeader("Accept-Language"))
}
