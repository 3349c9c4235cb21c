package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"nimproxy/internal/convert"
	"nimproxy/internal/core"
	"nimproxy/internal/metrics"
	"nimproxy/internal/process"

	"github.com/gin-gonic/gin"
)

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, core.HealthResponse{
		Status:  core.HealthStatusOK,
		Service: core.ServiceName,
	})
}

func (s *Server) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.List(s.now()))
}

func (s *Server) endpointNotFound(c *gin.Context) {
	respondWithOpenAIError(c, http.StatusNotFound, fmt.Sprintf(core.ErrorMessageNotFoundFmt, c.Request.URL.Path), http.StatusNotFound)
}

func (s *Server) getStatsData(c *gin.Context) {
	stats := s.metricsService.GetRequestStats()
	periodStats := metrics.GetPeriodStats(stats.RequestHistory, 1, 24, 24*7)

	var successRate float64
	if stats.TotalRequests > 0 {
		successRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests) * 100
	}

	var avgResponseTime int64
	if stats.TotalRequests > 0 {
		avgResponseTime = stats.TotalResponseTime / stats.TotalRequests
	}

	lastRequest := ""
	if !stats.LastRequestTime.IsZero() {
		lastRequest = stats.LastRequestTime.Format(core.TimeFormatDateTime)
	}

	c.JSON(http.StatusOK, gin.H{
		"currentTime":        s.now().Format(core.TimeFormatDateTime),
		"currentQPS":         fmt.Sprintf("%.3f", s.metricsService.GetQPS()),
		"totalRequests":      stats.TotalRequests,
		"successfulRequests": stats.SuccessfulRequests,
		"failedRequests":     stats.FailedRequests,
		"successRate":        successRate,
		"avgResponseTime":    avgResponseTime,
		"lastRequestTime":    lastRequest,
		"totalRecords":       len(stats.RequestHistory),
		"models":             s.config.Models.Names(),
		"stats1h":            periodStats[1],
		"stats24h":           periodStats[24],
		"stats7d":            periodStats[24*7],
	})
}

func (s *Server) chatCompletions(c *gin.Context) {
	startTime := time.Now()
	logger := s.config.Logger

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			recordRequestResultWithMetrics(s.metricsService, false, startTime, "", false, http.StatusRequestEntityTooLarge)
			respondWithOpenAIError(c, http.StatusRequestEntityTooLarge, core.ErrorMessageBodyTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn("Failed to read request body: %v", err)
		recordRequestResultWithMetrics(s.metricsService, false, startTime, "", false, http.StatusBadRequest)
		respondWithOpenAIError(c, http.StatusBadRequest, err.Error(), core.ErrorCodeInvalidJSON)
		return
	}

	prepared, err := s.requestProcessor.Prepare(body)
	if err != nil {
		s.respondPrepareError(c, err, startTime, body)
		return
	}

	ctx := c.Request.Context()
	//nolint:bodyclose // resp.Body closed below via defer
	resp, err := s.requestProcessor.SendUpstreamRequest(ctx, prepared)
	if err != nil {
		if process.IsClientCanceled(ctx, err) {
			logger.Info("Client disconnected before NIM answered (model=%s)", prepared.ClientModel)
			recordRequestResultWithMetrics(s.metricsService, false, startTime, prepared.ClientModel, prepared.Stream, 0)
			c.Abort()
			return
		}
		status, message := upstreamFailure(err)
		logger.Error("Proxy error: %v", err)
		recordRequestResultWithMetrics(s.metricsService, false, startTime, prepared.ClientModel, prepared.Stream, status)
		respondWithOpenAIError(c, status, message, status)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if prepared.Stream {
		s.handleStreamingResponse(c, resp, prepared, startTime)
	} else {
		s.handleNonStreamingResponse(c, resp, prepared, startTime)
	}
}

func (s *Server) respondPrepareError(c *gin.Context, err error, startTime time.Time, body []byte) {
	model := convert.RequestedModel(body)

	var notSupported *process.ModelNotSupportedError
	switch {
	case errors.Is(err, convert.ErrInvalidRequestBody):
		recordRequestResultWithMetrics(s.metricsService, false, startTime, "", false, http.StatusBadRequest)
		respondWithOpenAIError(c, http.StatusBadRequest, err.Error(), core.ErrorCodeInvalidJSON)
	case errors.As(err, &notSupported):
		s.config.Logger.Warn("Rejected unsupported model '%s'", notSupported.Model)
		recordRequestResultWithMetrics(s.metricsService, false, startTime, model, convert.StreamRequested(body), http.StatusBadRequest)
		respondWithOpenAIError(c, http.StatusBadRequest, notSupported.Error(), core.ErrorCodeModelNotFound)
	default:
		s.config.Logger.Error("Failed to build NIM request: %v", err)
		recordRequestResultWithMetrics(s.metricsService, false, startTime, model, false, http.StatusInternalServerError)
		respondWithOpenAIError(c, http.StatusInternalServerError, core.ErrorMessageInternal, http.StatusInternalServerError)
	}
}
