// Package handler exposes the services over HTTP. Handlers bind and validate
// input, call one service method and write the uniform response envelope.
package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/access"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/repository"
	"github.com/weiwangfds/melodia/internal/response"
)

// caller returns the request context and the caller's access context.
func caller(c *gin.Context) (context.Context, access.Context) {
	return c.Request.Context(), access.From(c)
}

// pageOf reads ?page= and ?page_size=.
func pageOf(c *gin.Context) repository.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return repository.NewPage(page, size)
}

// writePage writes a paged list.
func writePage(c *gin.Context, list interface{}, total int64, page repository.Page) {
	response.SuccessWithPage(c, list, total, page.Page, page.PageSize)
}

// idParam parses a positive numeric path parameter. On failure the 400 has
// been written and ok is false.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, apperrors.BadRequestf("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}

// queryUint parses an optional numeric query parameter; empty yields 0.
func queryUint(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		response.Error(c, apperrors.Validation(map[string]string{name: name + " must be a positive number"}))
		return 0, false
	}
	return uint(v), true
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		response.Error(c, apperrors.Validation(map[string]string{name: name + " must be a number"}))
		return 0, false
	}
	return v, true
}

// bindJSON binds the body into req, writing the 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BindError(c, err)
		return false
	}
	return true
}

// formFile returns the multipart file field name. A missing optional file is
// (nil, true).
func formFile(c *gin.Context, name string, required bool) (*multipart.FileHeader, bool) {
	fh, err := c.FormFile(name)
	if err == nil {
		return fh, true
	}
	if err == http.ErrMissingFile && !required {
		return nil, true
	}
	if err == http.ErrMissingFile {
		response.Error(c, apperrors.Validation(map[string]string{name: name + " file is required"}))
		return nil, false
	}
	response.Error(c, apperrors.BadRequest("malformed multipart body").WithDetails(err.Error()))
	return nil, false
}
