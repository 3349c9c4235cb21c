package server

import (
	"errors"
	"net/http"
	"time"

	"nimproxy/internal/core"
	"nimproxy/internal/metrics"
	"nimproxy/internal/process"

	"github.com/gin-gonic/gin"
)

// setStreamingHeaders sets streaming response HTTP headers
func setStreamingHeaders(c *gin.Context) {
	c.Header(core.HeaderContentType, core.ContentTypeEventStream)
	c.Header(core.HeaderCacheControl, core.CacheControlNoCache)
	c.Header(core.HeaderConnection, core.ConnectionKeepAlive)
}

// respondWithOpenAIError writes the shared error envelope. code is either a
// string code or the numeric HTTP status.
func respondWithOpenAIError(c *gin.Context, status int, message string, code any) {
	c.AbortWithStatusJSON(status, core.ErrorResponse{Error: core.ErrorDetail{
		Message: message,
		Type:    core.ErrorTypeInvalidRequest,
		Code:    code,
	}})
}

// recordRequestResultWithMetrics records request result
func recordRequestResultWithMetrics(m core.MetricsCollector, success bool, startTime time.Time, model string, stream bool, status int) {
	if success {
		metrics.RecordSuccessWithMetrics(m, startTime, model, stream, status)
	} else {
		metrics.RecordFailureWithMetrics(m, startTime, model, stream, status)
	}
}

// upstreamFailure maps a failed backend exchange to the status and message
// reported to the client.
func upstreamFailure(err error) (int, string) {
	var upstreamErr *process.UpstreamError
	if !errors.As(err, &upstreamErr) {
		if err != nil && err.Error() != "" {
			return http.StatusInternalServerError, err.Error()
		}
		return http.StatusInternalServerError, core.ErrorMessageInternal
	}

	status := upstreamErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	message := upstreamErr.Message
	if upstreamErr.StatusCode == 0 && upstreamErr.Err != nil {
		message = upstreamErr.Err.Error()
	}
	if message == "" {
		message = core.ErrorMessageInternal
	}
	return status, message
}
