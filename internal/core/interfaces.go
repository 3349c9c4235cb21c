package core

import "time"

// Logger interface
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Fatal(format string, args ...any)
}

// MetricsCollector interface
type MetricsCollector interface {
	RecordRequest(record RequestRecord)
	RecordUpstream(statusCode int, duration time.Duration)
	RecordStreamBytes(n int64)
	GetQPS() float64
}

// NopLogger empty logger implementation
type NopLogger struct{}

func (*NopLogger) Debug(format string, args ...any) {}
func (*NopLogger) Info(format string, args ...any)  {}
func (*NopLogger) Warn(format string, args ...any)  {}
func (*NopLogger) Error(format string, args ...any) {}
func (*NopLogger) Fatal(format string, args ...any) {}

// NopMetrics empty metrics collector implementation
type NopMetrics struct{}

func (*NopMetrics) RecordRequest(record RequestRecord)                    {}
func (*NopMetrics) RecordUpstream(statusCode int, duration time.Duration) {}
func (*NopMetrics) RecordStreamBytes(n int64)                             {}
func (*NopMetrics) GetQPS() float64                                       { return 0 }
