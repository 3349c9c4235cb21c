package metrics

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"nimproxy/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AtomicRequestStats thread-safe request statistics
type AtomicRequestStats struct {
	TotalRequests      atomic.Int64
	SuccessfulRequests atomic.Int64
	FailedRequests     atomic.Int64
	TotalResponseTime  atomic.Int64
}

// MetricsConfig configuration for MetricsService
type MetricsConfig struct {
	HistorySize int
	// Models bounds the model label. Requests for ids outside the table are
	// counted under core.MetricsUnsupportedModel.
	Models *core.ModelMapping
	// Registry receives the Prometheus collectors. A private registry is
	// created when nil.
	Registry *prometheus.Registry
	Logger   core.Logger
}

// MetricsService collects request statistics in memory and exports them to Prometheus.
type MetricsService struct {
	atomicStats      AtomicRequestStats
	requestHistory   []core.RequestRecord
	historyMu        sync.RWMutex
	lastRequestTime  time.Time
	maxHistorySize   int
	models           *core.ModelMapping
	logger           core.Logger
	done             chan struct{}
	closeOnce        sync.Once
	historyBuffer    []core.RequestRecord
	bufferMu         sync.Mutex
	bufferFlushTimer *time.Ticker
	recentRequests   []time.Time
	recentMu         sync.Mutex

	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	upstreamDuration prometheus.Histogram
	streamBytesTotal prometheus.Counter
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(config MetricsConfig) *MetricsService {
	if config.HistorySize <= 0 {
		config.HistorySize = core.HistoryBufferSize
	}
	if config.Logger == nil {
		config.Logger = &core.NopLogger{}
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	ms := &MetricsService{
		maxHistorySize: config.HistorySize,
		models:         config.Models,
		logger:         config.Logger,
		done:           make(chan struct{}),
		historyBuffer:  make([]core.RequestRecord, 0, core.HistoryBatchSize),
		registry:       config.Registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: core.MetricsNamespace,
				Name:      "requests_total",
				Help:      "Chat completion requests handled by the proxy",
			},
			[]string{"model", "status", "stream"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: core.MetricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "End to end chat completion latency",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"stream"},
		),
		upstreamTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: core.MetricsNamespace,
				Name:      "upstream_requests_total",
				Help:      "Requests sent to the NIM backend by response status (0 for transport errors)",
			},
			[]string{"status"},
		),
		upstreamDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: core.MetricsNamespace,
				Name:      "upstream_response_header_seconds",
				Help:      "Time until the NIM backend answered with response headers",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		streamBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: core.MetricsNamespace,
				Name:      "stream_bytes_total",
				Help:      "Bytes forwarded from streamed backend responses",
			},
		),
	}

	ms.registry.MustRegister(
		ms.requestsTotal,
		ms.requestDuration,
		ms.upstreamTotal,
		ms.upstreamDuration,
		ms.streamBytesTotal,
	)

	ms.bufferFlushTimer = time.NewTicker(core.HistoryFlushInterval)
	go ms.flushLoop()

	return ms
}

func (ms *MetricsService) flushLoop() {
	for {
		select {
		case <-ms.bufferFlushTimer.C:
			ms.flushBuffer()
		case <-ms.done:
			return
		}
	}
}

func (ms *MetricsService) flushBuffer() {
	ms.bufferMu.Lock()
	if len(ms.historyBuffer) == 0 {
		ms.bufferMu.Unlock()
		return
	}
	batch := ms.historyBuffer
	ms.historyBuffer = make([]core.RequestRecord, 0, core.HistoryBatchSize)
	ms.bufferMu.Unlock()

	ms.historyMu.Lock()
	ms.requestHistory = append(ms.requestHistory, batch...)
	if len(ms.requestHistory) > ms.maxHistorySize {
		ms.requestHistory = ms.requestHistory[len(ms.requestHistory)-ms.maxHistorySize:]
	}
	ms.historyMu.Unlock()
}

// RecordRequest records a request result
func (ms *MetricsService) RecordRequest(record core.RequestRecord) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	now := record.Timestamp

	ms.historyMu.Lock()
	ms.lastRequestTime = now
	ms.historyMu.Unlock()
	ms.atomicStats.TotalRequests.Add(1)
	ms.atomicStats.TotalResponseTime.Add(record.ResponseTime)

	if record.Success {
		ms.atomicStats.SuccessfulRequests.Add(1)
	} else {
		ms.atomicStats.FailedRequests.Add(1)
	}

	stream := strconv.FormatBool(record.Stream)
	ms.requestsTotal.WithLabelValues(ms.modelLabel(record.Model), strconv.Itoa(record.StatusCode), stream).Inc()
	ms.requestDuration.WithLabelValues(stream).Observe(float64(record.ResponseTime) / 1000)

	ms.recentMu.Lock()
	ms.recentRequests = append(ms.recentRequests, now)
	ms.pruneRecentLocked(now)
	ms.recentMu.Unlock()

	ms.bufferMu.Lock()
	ms.historyBuffer = append(ms.historyBuffer, record)
	shouldFlush := len(ms.historyBuffer) >= core.HistoryBatchSize
	ms.bufferMu.Unlock()

	if shouldFlush {
		ms.flushBuffer()
	}
}

// modelLabel keeps client input out of label values: it is unbounded and may
// not be valid UTF-8, which client_golang rejects with a panic.
func (ms *MetricsService) modelLabel(model string) string {
	if _, ok := ms.models.Lookup(model); ok && utf8.ValidString(model) {
		return model
	}
	return core.MetricsUnsupportedModel
}

// RecordUpstream records one backend exchange
func (ms *MetricsService) RecordUpstream(statusCode int, duration time.Duration) {
	ms.upstreamTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	ms.upstreamDuration.Observe(duration.Seconds())
}

// RecordStreamBytes records bytes forwarded from a streamed response
func (ms *MetricsService) RecordStreamBytes(n int64) {
	if n > 0 {
		ms.streamBytesTotal.Add(float64(n))
	}
}

func (ms *MetricsService) pruneRecentLocked(now time.Time) {
	cutoff := now.Add(-1 * time.Minute)
	startIdx := 0
	for startIdx < len(ms.recentRequests) && ms.recentRequests[startIdx].Before(cutoff) {
		startIdx++
	}
	if startIdx > 0 {
		newRecent := make([]time.Time, len(ms.recentRequests)-startIdx)
		copy(newRecent, ms.recentRequests[startIdx:])
		ms.recentRequests = newRecent
	}
}

// GetQPS returns current QPS
func (ms *MetricsService) GetQPS() float64 {
	ms.recentMu.Lock()
	defer ms.recentMu.Unlock()

	ms.pruneRecentLocked(time.Now())
	if len(ms.recentRequests) == 0 {
		return 0
	}

	return math.Round(float64(len(ms.recentRequests))/60.0*1000) / 1000
}

// GetRequestStats returns current stats snapshot
func (ms *MetricsService) GetRequestStats() core.RequestStats {
	ms.flushBuffer()
	ms.historyMu.RLock()
	defer ms.historyMu.RUnlock()

	historyCopy := make([]core.RequestRecord, len(ms.requestHistory))
	copy(historyCopy, ms.requestHistory)

	return core.RequestStats{
		TotalRequests:      ms.atomicStats.TotalRequests.Load(),
		SuccessfulRequests: ms.atomicStats.SuccessfulRequests.Load(),
		FailedRequests:     ms.atomicStats.FailedRequests.Load(),
		TotalResponseTime:  ms.atomicStats.TotalResponseTime.Load(),
		LastRequestTime:    ms.lastRequestTime,
		RequestHistory:     historyCopy,
	}
}

// GetPeriodStats computes period statistics for multiple hour windows in a single pass.
func GetPeriodStats(history []core.RequestRecord, hourPeriods ...int) map[int]core.PeriodStats {
	if len(hourPeriods) == 0 {
		return nil
	}

	now := time.Now()
	cutoffs := make([]time.Time, len(hourPeriods))
	requests := make([]int64, len(hourPeriods))
	successful := make([]int64, len(hourPeriods))
	responseTime := make([]int64, len(hourPeriods))

	for i, hours := range hourPeriods {
		cutoffs[i] = now.Add(-time.Duration(hours) * time.Hour)
	}

	for _, record := range history {
		for i, cutoff := range cutoffs {
			if record.Timestamp.After(cutoff) {
				requests[i]++
				responseTime[i] += record.ResponseTime
				if record.Success {
					successful[i]++
				}
			}
		}
	}

	result := make(map[int]core.PeriodStats, len(hourPeriods))
	for i, hours := range hourPeriods {
		stats := core.PeriodStats{
			Requests: requests[i],
			QPS:      float64(requests[i]) / (float64(hours) * 3600.0),
		}
		if requests[i] > 0 {
			stats.SuccessRate = float64(successful[i]) / float64(requests[i]) * 100
			stats.AvgResponseTime = responseTime[i] / requests[i]
		}
		result[hours] = stats
	}
	return result
}

// Handler exposes the registry in the Prometheus text format
func (ms *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(ms.registry, promhttp.HandlerOpts{})
}

// Close stops the flush loop. It is safe to call more than once.
func (ms *MetricsService) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.bufferFlushTimer.Stop()
		ms.flushBuffer()
		ms.logger.Debug("Metrics service stopped")
	})
	return nil
}

// RecordSuccessWithMetrics records successful request
func RecordSuccessWithMetrics(metrics core.MetricsCollector, startTime time.Time, model string, stream bool, statusCode int) {
	metrics.RecordRequest(core.RequestRecord{
		Success:      true,
		Stream:       stream,
		StatusCode:   statusCode,
		ResponseTime: time.Since(startTime).Milliseconds(),
		Model:        model,
	})
}

// RecordFailureWithMetrics records failed request
func RecordFailureWithMetrics(metrics core.MetricsCollector, startTime time.Time, model string, stream bool, statusCode int) {
	metrics.RecordRequest(core.RequestRecord{
		Success:      false,
		Stream:       stream,
		StatusCode:   statusCode,
		ResponseTime: time.Since(startTime).Milliseconds(),
		Model:        model,
	})
}
