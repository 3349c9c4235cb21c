package log

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"nimproxy/internal/core"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// GinLogger returns a middleware that assigns a request id and writes one
// access log line per request. Structured fields are attached when the
// logger is an *AppLogger.
func GinLogger(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := strings.TrimSpace(c.GetHeader(core.HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Writer.Header().Set(core.HeaderRequestID, requestID)

		c.Next()

		latency := time.Since(start)
		if latency > time.Minute {
			latency = latency.Truncate(time.Second)
		} else {
			latency = latency.Truncate(time.Millisecond)
		}

		statusCode := c.Writer.Status()
		line := fmt.Sprintf("[GIN] %3d | %13v | %15s | %-7s %q", statusCode, latency, c.ClientIP(), c.Request.Method, path)
		if errMsg := c.Errors.ByType(gin.ErrorTypePrivate).String(); errMsg != "" {
			line += " | " + errMsg
		}

		appLogger, ok := logger.(*AppLogger)
		if !ok || appLogger == nil {
			logByStatus(logger, statusCode, line)
			return
		}

		entry := appLogger.WithFields(logrus.Fields{
			"status":     statusCode,
			"latency_ms": latency.Milliseconds(),
			"request_id": requestID,
		})
		switch {
		case statusCode >= http.StatusInternalServerError:
			entry.Error(line)
		case statusCode >= http.StatusBadRequest:
			entry.Warn(line)
		default:
			entry.Info(line)
		}
	}
}

func logByStatus(logger core.Logger, statusCode int, line string) {
	if logger == nil {
		return
	}
	switch {
	case statusCode >= http.StatusInternalServerError:
		logger.Error("%s", line)
	case statusCode >= http.StatusBadRequest:
		logger.Warn("%s", line)
	default:
		logger.Info("%s", line)
	}
}

// GinRecovery recovers from handler panics, logs the stack and answers 500
// with the OpenAI error envelope unless headers were already sent.
func GinRecovery(logger core.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		if logger != nil {
			logger.Error("Panic in handler: %v path=%s\n%s", recovered, c.Request.URL.Path, debug.Stack())
		}
		if c.Writer.Written() {
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, core.ErrorResponse{Error: core.ErrorDetail{
			Message: core.ErrorMessageInternal,
			Type:    core.ErrorTypeInvalidRequest,
			Code:    http.StatusInternalServerError,
		}})
	})
}
