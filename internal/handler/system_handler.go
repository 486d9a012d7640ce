package handler

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/melodia/internal/database"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/response"
	"github.com/weiwangfds/melodia/internal/storage"
	"gorm.io/gorm"
)

// Version is stamped at build time with -ldflags "-X .../handler.Version=...".
var Version = "dev"

// SystemHandler health and info endpoints.
type SystemHandler struct {
	db        *gorm.DB
	provider  storage.Provider
	startedAt time.Time
}

// NewSystemHandler creates the system handler.
func NewSystemHandler(db *gorm.DB, provider storage.Provider) *SystemHandler {
	return &SystemHandler{db: db, provider: provider, startedAt: time.Now()}
}

// Health
// @Summary Liveness probe
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Info
// @Summary Service information
// @Tags system
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/info [get]
func (h *SystemHandler) Info(c *gin.Context) {
	response.Success(c, gin.H{
		"service":  "melodia",
		"version":  Version,
		"storage":  h.provider.Name(),
		"database": h.db.Dialector.Name(),
		"uptime":   time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// DBStatus
// @Summary Database connectivity
// @Tags system
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.ErrorBody
// @Router /api/db/status [get]
func (h *SystemHandler) DBStatus(c *gin.Context) {
	if err := database.Ping(h.db); err != nil {
		logger.WithField("error", err.Error()).Error("[system] database ping failed")
		response.Error(c, apperrors.New(apperrors.ErrServiceUnavailable, "database unavailable"))
		return
	}
	sqlDB, _ := h.db.DB()
	st := sqlDB.Stats()
	response.Success(c, gin.H{
		"status":           "ok",
		"open_connections": st.OpenConnections,
		"in_use":           st.InUse,
		"idle":             st.Idle,
	})
}

// MediaHandler serves blobs of the local storage provider through signed URLs.
type MediaHandler struct {
	local *storage.LocalProvider
}

// NewMediaHandler creates the media handler.
func NewMediaHandler(local *storage.LocalProvider) *MediaHandler {
	return &MediaHandler{local: local}
}

// Serve
// @Summary Download a blob
// @Tags media
// @Param key path string true "Object key"
// @Param expires query int true "Unix expiry"
// @Param signature query string true "HMAC signature"
// @Success 200 {file} binary
// @Failure 403 {object} response.ErrorBody
// @Router /media/{key} [get]
func (h *MediaHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := h.local.Verify(key, c.Query("expires"), c.Query("signature")); err != nil {
		response.Error(c, apperrors.Forbidden("invalid or expired media link"))
		return
	}
	path, err := h.local.FilePath(key)
	if err != nil {
		response.Error(c, apperrors.NotFound("media"))
		return
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.Error(c, apperrors.NotFound("media"))
			return
		}
		response.Error(c, apperrors.Internal(err))
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.File(path)
}
