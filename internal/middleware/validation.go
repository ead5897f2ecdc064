// Package middleware holds the gin middleware shared by the API routes:
// request screening, rate limiting, and the error envelope.
package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "digital.vasic.promptforge/internal/errors"
	"digital.vasic.promptforge/internal/security"
)

// RenderError writes the error envelope for any error. Domain errors keep
// their code and status; everything else renders as a 500.
func RenderError(c *gin.Context, err error) {
	e := apperrors.AsError(err)
	body := gin.H{
		"error":   e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	c.AbortWithStatusJSON(e.StatusCode, body)
}

// BodySizeLimit rejects requests whose declared body exceeds maxBytes.
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			RenderError(c, apperrors.NewValidation(
				fmt.Sprintf("request body exceeds maximum of %d bytes", maxBytes), "body"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// RequireJSON rejects write requests without a JSON content type.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if !strings.HasPrefix(c.ContentType(), "application/json") {
				RenderError(c, apperrors.NewValidation(
					"content type must be application/json", "content-type"))
				return
			}
		}
		c.Next()
	}
}

// screenedFields are the JSON body fields run through the injection
// detector before a handler sees the request.
var screenedFields = []string{"prompt", "template", "original_prompt"}

// InjectionScreen runs prompt-bearing body fields through the injection
// detector. A disabled detector passes everything through unchanged.
func InjectionScreen(detector *security.Detector, cfg ScreenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			RenderError(c, apperrors.NewValidation("failed to read request body", "body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		var payload map[string]json.RawMessage
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			// Malformed JSON is the handler's problem, not the screen's.
			c.Next()
			return
		}

		for _, field := range screenedFields {
			raw, ok := payload[field]
			if !ok {
				continue
			}
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				continue
			}
			if err := detector.Validate(text, cfg.Strict); err != nil {
				RenderError(c, err)
				return
			}
		}

		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		c.Next()
	}
}

// ScreenConfig controls the injection screen.
type ScreenConfig struct {
	Enabled bool
	Strict  bool
}

// RequestLogger logs one line per request with latency and status.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("Request failed")
		} else {
			entry.Info("Request handled")
		}
	}
}
