package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/response"
)

// RequestLoggerConfig verbose request/response logging, meant for development.
type RequestLoggerConfig struct {
	Enabled         bool
	SkipPaths       []string
	MaxBodySize     int
	IncludeHeaders  bool
	IncludeBody     bool
	IncludeResponse bool
}

// DefaultRequestLoggerConfig logs bodies up to 64 KiB.
func DefaultRequestLoggerConfig() *RequestLoggerConfig {
	return &RequestLoggerConfig{
		Enabled:         false,
		SkipPaths:       []string{"/health"},
		MaxBodySize:     64 * 1024,
		IncludeHeaders:  true,
		IncludeBody:     true,
		IncludeResponse: true,
	}
}

// redactedKeys are masked wherever they appear in a JSON body.
var redactedKeys = map[string]struct{}{
	"password":         {},
	"current_password": {},
	"new_password":     {},
	"access_token":     {},
	"refresh_token":    {},
}

var redactedHeaders = map[string]struct{}{
	"Authorization": {},
	"Cookie":        {},
}

type bodyCaptureWriter struct {
	gin.ResponseWriter
	body  *bytes.Buffer
	limit int
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	if remaining := w.limit - w.body.Len(); remaining > 0 {
		if len(b) > remaining {
			w.body.Write(b[:remaining])
		} else {
			w.body.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// RequestLogger logs request and response bodies with secrets redacted.
// Multipart uploads are never buffered.
func RequestLogger(cfg *RequestLoggerConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = DefaultRequestLoggerConfig()
	}
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		for _, p := range cfg.SkipPaths {
			if c.Request.URL.Path == p {
				c.Next()
				return
			}
		}

		start := time.Now()
		fields := logrus.Fields{
			"type":       "request_log",
			"request_id": response.RequestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"query":      c.Request.URL.RawQuery,
		}
		if cfg.IncludeHeaders {
			fields["headers"] = extractHeaders(c.Request.Header)
		}
		if cfg.IncludeBody && c.Request.Body != nil && !isMultipart(c) {
			fields["body"] = readRequestBody(c, cfg.MaxBodySize)
		}

		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}, limit: cfg.MaxBodySize}
		if cfg.IncludeResponse {
			c.Writer = writer
		}

		c.Next()

		status := c.Writer.Status()
		fields["status_code"] = status
		fields["duration_ms"] = time.Since(start).Milliseconds()
		if cfg.IncludeResponse && writer.body.Len() > 0 {
			fields["response_body"] = parseBody(writer.body.Bytes())
		}

		entry := logger.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("[REQUEST_LOG]")
		case status >= 400:
			entry.Warn("[REQUEST_LOG]")
		default:
			entry.Debug("[REQUEST_LOG]")
		}
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

func readRequestBody(c *gin.Context, maxSize int) interface{} {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(maxSize)+1))
	if err != nil {
		return map[string]string{"error": "failed to read request body"}
	}
	rest := c.Request.Body
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), rest))
	if len(body) > maxSize {
		return "(truncated)"
	}
	if len(body) == 0 {
		return nil
	}
	return parseBody(body)
}

func parseBody(body []byte) interface{} {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return redact(v)
}

func redact(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if _, ok := redactedKeys[strings.ToLower(k)]; ok {
				t[k] = "***"
				continue
			}
			t[k] = redact(val)
		}
	case []interface{}:
		for i := range t {
			t[i] = redact(t[i])
		}
	}
	return v
}

func extractHeaders(headers map[string][]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, values := range headers {
		if len(values) == 0 {
			continue
		}
		if _, ok := redactedHeaders[k]; ok {
			out[k] = "***"
			continue
		}
		out[k] = values[0]
	}
	return out
}
