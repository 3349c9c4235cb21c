package core

import "time"

// HTTP client config constants
const (
	HTTPMaxIdleConns          = 500
	HTTPMaxIdleConnsPerHost   = 100
	HTTPMaxConnsPerHost       = 200
	HTTPIdleConnTimeout       = 600 * time.Second
	HTTPTLSHandshakeTimeout   = 30 * time.Second
	HTTPExpectContinueTimeout = 5 * time.Second
)

// HTTP server constants
const (
	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerShutdownTimeout   = 30 * time.Second
	MaxRequestBodySize      = 50 << 20
)

// Stats and monitoring constants
const (
	HistoryBufferSize    = 1000
	HistoryBatchSize     = 100
	HistoryFlushInterval = 100 * time.Millisecond
	MetricsNamespace     = "nim_proxy"

	// MetricsUnsupportedModel is the model label for ids outside the mapping table.
	MetricsUnsupportedModel = "unsupported"
)

// Response body size limits
const (
	MaxErrorBodySize = 1 << 20
	StreamBufferSize = 32 * 1024
)

// Logging config constants
const (
	MaxDebugFilePathLength = 260
	DebugFileMaxSizeMB     = 50
	DebugFileMaxBackups    = 3
	DebugFileMaxAgeDays    = 7
)

// File permission constants
const (
	FilePermissionReadWrite = 0644
)

// Time format constants
const (
	TimeFormatDateTime = "2006-01-02 15:04:05"
)
