package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"nimproxy/internal/core"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// AppLogger is the application logger implementation backed by logrus.
type AppLogger struct {
	entry      *logrus.Entry
	fileHandle io.Closer
	mu         sync.Mutex
}

// lineFormatter renders "2006/01/02 15:04:05 [LEVEL] message k=v".
type lineFormatter struct{}

func (lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(e.Time.Format("2006/01/02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(levelLabel(e.Level))
	b.WriteString("] ")
	b.WriteString(e.Message)

	if len(e.Data) > 0 {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
		}
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelLabel(level logrus.Level) string {
	switch level {
	case logrus.WarnLevel:
		return "WARN"
	case logrus.PanicLevel, logrus.FatalLevel:
		return "FATAL"
	default:
		return strings.ToUpper(level.String())
	}
}

func newLogrus(output io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(lineFormatter{})
	l.SetLevel(level)
	return l
}

// NewAppLoggerWithConfig creates a logger instance with configuration.
func NewAppLoggerWithConfig(output io.Writer, debugMode bool) *AppLogger {
	level := logrus.InfoLevel
	if debugMode {
		level = logrus.DebugLevel
	}
	return &AppLogger{entry: logrus.NewEntry(newLogrus(output, level))}
}

// Debug logs a message at DEBUG level.
func (l *AppLogger) Debug(format string, args ...any) {
	if l != nil {
		l.entry.Debugf(format, args...)
	}
}

// Info logs a message at INFO level.
func (l *AppLogger) Info(format string, args ...any) {
	if l != nil {
		l.entry.Infof(format, args...)
	}
}

// Warn logs a message at WARN level.
func (l *AppLogger) Warn(format string, args ...any) {
	if l != nil {
		l.entry.Warnf(format, args...)
	}
}

// Error logs a message at ERROR level.
func (l *AppLogger) Error(format string, args ...any) {
	if l != nil {
		l.entry.Errorf(format, args...)
	}
}

// Fatal logs a message at FATAL level and terminates the process.
func (l *AppLogger) Fatal(format string, args ...any) {
	if l != nil {
		l.entry.Fatalf(format, args...)
		return
	}
	logrus.Fatalf(format, args...)
}

// WithFields returns a structured entry sharing this logger's output.
func (l *AppLogger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.entry.WithFields(fields)
}

// Close safely closes log file handle.
func (l *AppLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileHandle != nil {
		err := l.fileHandle.Close()
		l.fileHandle = nil
		return err
	}
	return nil
}

// containsPathTraversal reports whether any path segment is "..".
func containsPathTraversal(path string) bool {
	normalized := strings.ReplaceAll(path, "\\", "/")
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

// createDebugFileOutput creates a rotating debug file output, falls back to stdout on bad input.
func createDebugFileOutput() (io.Writer, io.Closer) {
	debugFile := os.Getenv("DEBUG_FILE")
	if debugFile == "" {
		return os.Stdout, nil
	}

	if len(debugFile) > core.MaxDebugFilePathLength {
		_, _ = fmt.Fprintln(os.Stderr, "[WARN] DEBUG_FILE path too long, falling back to stdout")
		return os.Stdout, nil
	}

	if containsPathTraversal(debugFile) {
		_, _ = fmt.Fprintln(os.Stderr, "[WARN] DEBUG_FILE contains path traversal characters, falling back to stdout")
		return os.Stdout, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   debugFile,
		MaxSize:    core.DebugFileMaxSizeMB,
		MaxBackups: core.DebugFileMaxBackups,
		MaxAge:     core.DebugFileMaxAgeDays,
	}
	return rotator, rotator
}

// IsDebug returns whether the app is running in debug mode.
func IsDebug() bool {
	return os.Getenv("GIN_MODE") == "debug"
}

// ParseLevel maps a LOG_LEVEL value to a logrus level. Unknown values yield fallback.
func ParseLevel(value string, fallback logrus.Level) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug", "verbose":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "quiet", "silent":
		return logrus.FatalLevel
	default:
		return fallback
	}
}

// CreateLogger creates a logger instance (for dependency injection).
func CreateLogger() core.Logger {
	level := logrus.InfoLevel
	if IsDebug() {
		level = logrus.DebugLevel
	}
	level = ParseLevel(os.Getenv("LOG_LEVEL"), level)

	output, fileHandle := createDebugFileOutput()

	return &AppLogger{
		entry:      logrus.NewEntry(newLogrus(output, level)),
		fileHandle: fileHandle,
	}
}
