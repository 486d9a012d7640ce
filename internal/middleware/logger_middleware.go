package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/melodia/internal/access"
	"github.com/weiwangfds/melodia/internal/i18n"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/response"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// RequestID reuses a sane incoming X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 || strings.ContainsAny(id, " \t\r\n") {
			id = uuid.NewString()
		}
		c.Set(response.RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Language negotiates the response language from Accept-Language.
func Language() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(response.LanguageKey, i18n.GetInstance().FromAcceptLanguage(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// AccessLog writes one line per request; the level follows the status code.
func AccessLog(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if _, ok := skip[path]; ok {
			return
		}

		status := c.Writer.Status()
		fields := logrus.Fields{
			"request_id": response.RequestID(c),
			"status":     status,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"size":       c.Writer.Size(),
		}
		if raw != "" {
			fields["query"] = raw
		}
		if ac := access.From(c); ac.Authenticated {
			fields["user_id"] = ac.UserID
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("HTTP request")
		case status >= 400:
			entry.Warn("HTTP request")
		default:
			entry.Info("HTTP request")
		}
	}
}

// Recovery turns panics into the uniform 500 body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(logger.GetLogger().WriterLevel(logrus.ErrorLevel), func(c *gin.Context, recovered interface{}) {
		logger.WithField("request_id", response.RequestID(c)).Errorf("panic recovered: %v", recovered)
		response.Error(c, fmt.Errorf("panic: %v", recovered))
	})
}
