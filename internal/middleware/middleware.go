// Package middleware provides the gin middleware chain for the playground
// control plane's HTTP boundary: request correlation, structured logging,
// panic recovery, per-request timeout, and a small set of security headers.
package middleware

import (
	"compress/gzip"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/streamspace/playground/internal/logger"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID generates or forwards a correlation id for every request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// StructuredLogger logs one zerolog event per request with the fields the
// Reaper Loop and Session Orchestrator's own component loggers also emit.
func StructuredLogger() gin.HandlerFunc {
	log := logger.HTTP()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		status := c.Writer.Status()

		event := log.Info()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}
		event.
			Str("requestId", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("clientIp", c.ClientIP()).
			Msg("request")
	}
}

// Recovery converts a panic into a 500 Failure response instead of crashing
// the process; the stack trace is logged, never returned to the caller.
func Recovery() gin.HandlerFunc {
	log := logger.HTTP()
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("requestId", GetRequestID(c)).Msg("recovered from panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{"type": "FAILURE", "message": "internal error"},
				})
			}
		}()
		c.Next()
	}
}

// Timeout bounds every request's context to d, matching spec §5's
// "a request carries a deadline from the HTTP boundary" cancellation model.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		finished := make(chan struct{})
		go func() {
			c.Next()
			close(finished)
		}()

		select {
		case <-finished:
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
				"error": gin.H{"type": "FAILURE", "message": "request timeout"},
			})
		}
	}
}

// SecurityHeaders sets the small fixed set of response headers every
// playground-api response carries.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} { return gzip.NewWriter(nil) },
}

type gzipWriter struct {
	gin.ResponseWriter
	writer *gzip.Writer
}

func (g *gzipWriter) Write(data []byte) (int, error) { return g.writer.Write(data) }

// Gzip compresses every response for clients that advertise gzip support,
// whatever its size or content type; other clients pass through untouched.
func Gzip() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !containsGzip(c.GetHeader("Accept-Encoding")) {
			c.Next()
			return
		}
		gz := gzipWriterPool.Get().(*gzip.Writer)
		defer gzipWriterPool.Put(gz)
		gz.Reset(c.Writer)
		defer gz.Close()

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")
		c.Writer = &gzipWriter{ResponseWriter: c.Writer, writer: gz}
		c.Next()
	}
}

func containsGzip(acceptEncoding string) bool {
	for i := 0; i+4 <= len(acceptEncoding); i++ {
		if acceptEncoding[i:i+4] == "gzip" {
			return true
		}
	}
	return false
}
