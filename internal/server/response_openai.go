package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"nimproxy/internal/convert"
	"nimproxy/internal/core"
	"nimproxy/internal/process"

	"github.com/gin-gonic/gin"
)

// handleStreamingResponse pipes the backend event stream to the client
// unchanged, flushing after every chunk.
func (s *Server) handleStreamingResponse(c *gin.Context, resp *http.Response, prepared *process.PreparedRequest, startTime time.Time) {
	logger := s.config.Logger
	setStreamingHeaders(c)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ctx := c.Request.Context()
	buf := make([]byte, core.StreamBufferSize)
	var written int64
	var streamErr error

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := c.Writer.Write(buf[:n]); err != nil {
				streamErr = err
				break
			}
			c.Writer.Flush()
			written += int64(n)
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				streamErr = readErr
			}
			break
		}
		if ctx.Err() != nil {
			streamErr = ctx.Err()
			break
		}
	}

	s.metricsService.RecordStreamBytes(written)

	switch {
	case streamErr == nil:
		logger.Debug("Stream completed: model=%s bytes=%d", prepared.ClientModel, written)
		recordRequestResultWithMetrics(s.metricsService, true, startTime, prepared.ClientModel, true, http.StatusOK)
	case ctx.Err() != nil:
		logger.Info("Client disconnected during stream: model=%s bytes=%d", prepared.ClientModel, written)
		recordRequestResultWithMetrics(s.metricsService, false, startTime, prepared.ClientModel, true, http.StatusOK)
	default:
		logger.Error("Stream error after %d bytes: %v", written, streamErr)
		recordRequestResultWithMetrics(s.metricsService, false, startTime, prepared.ClientModel, true, http.StatusOK)
	}
}

// handleNonStreamingResponse reshapes a complete backend answer into an
// OpenAI chat.completion.
func (s *Server) handleNonStreamingResponse(c *gin.Context, resp *http.Response, prepared *process.PreparedRequest, startTime time.Time) {
	logger := s.config.Logger

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if process.IsClientCanceled(c.Request.Context(), err) {
			logger.Info("Client disconnected while reading NIM response (model=%s)", prepared.ClientModel)
			recordRequestResultWithMetrics(s.metricsService, false, startTime, prepared.ClientModel, false, 0)
			c.Abort()
			return
		}
		logger.Error("Failed to read NIM response: %v", err)
		recordRequestResultWithMetrics(s.metricsService, false, startTime, prepared.ClientModel, false, http.StatusInternalServerError)
		respondWithOpenAIError(c, http.StatusInternalServerError, err.Error(), http.StatusInternalServerError)
		return
	}

	result, err := convert.ReshapeResponse(body, prepared.ClientModel, s.now())
	if err != nil {
		logger.Error("Malformed NIM response: %v", err)
		recordRequestResultWithMetrics(s.metricsService, false, startTime, prepared.ClientModel, false, http.StatusInternalServerError)
		respondWithOpenAIError(c, http.StatusInternalServerError, err.Error(), http.StatusInternalServerError)
		return
	}

	recordRequestResultWithMetrics(s.metricsService, true, startTime, prepared.ClientModel, false, http.StatusOK)
	c.JSON(http.StatusOK, result)
}
