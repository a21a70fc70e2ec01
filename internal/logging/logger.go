package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the common structured-logging surface used across the service.
// It is implemented by the stdout fallback and by the OTLP-backed logger.
type Logger interface {
	WithService(serviceName string) *slog.Logger
	WithComponent(componentName string) *slog.Logger
	WithOperation(operationName string) *slog.Logger
	WithRequestID(requestID string) *slog.Logger
	WithSystem(systemID string) *slog.Logger
	WithMethod(method string) *slog.Logger
	WithHorizon(horizon string) *slog.Logger
	WithError(err error) *slog.Logger
	LogStartup(serviceName string, version string, port int)
	LogShutdown(serviceName string, reason string)
	LogCacheOperation(operation string, key string, hit bool, durationMs int64)
	LogDetectionRun(systemID string, candidates int, accepted int, skipped bool)
	Logger() *slog.Logger
}

// StandardLogger provides a standardized logging interface.
type StandardLogger struct {
	logger Logger
}

// NewStandardLogger creates a stdout JSON logger. Used until (or instead of)
// the OTLP pipeline is initialized.
func NewStandardLogger(logLevel string) *StandardLogger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: getSlogLevel(logLevel),
	}))
	return &StandardLogger{logger: &fallbackLogger{logger: logger}}
}

// NewStandardOTLPLogger creates a logger that exports through OTLP, falling
// back to stdout when the exporter cannot be set up.
func NewStandardOTLPLogger(config OTLPConfig) *StandardLogger {
	otlpLogger, err := NewOTLPLogger(config)
	if err != nil {
		basic := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: getSlogLevel(config.LogLevel),
		}))
		return &StandardLogger{logger: &fallbackLogger{logger: basic}}
	}
	return &StandardLogger{logger: &otlpWrapper{logger: otlpLogger}}
}

func (l *StandardLogger) WithService(serviceName string) *slog.Logger {
	return l.logger.WithService(serviceName)
}

func (l *StandardLogger) WithComponent(componentName string) *slog.Logger {
	return l.logger.WithComponent(componentName)
}

func (l *StandardLogger) WithOperation(operationName string) *slog.Logger {
	return l.logger.WithOperation(operationName)
}

func (l *StandardLogger) WithRequestID(requestID string) *slog.Logger {
	return l.logger.WithRequestID(requestID)
}

func (l *StandardLogger) WithSystem(systemID string) *slog.Logger {
	return l.logger.WithSystem(systemID)
}

func (l *StandardLogger) WithMethod(method string) *slog.Logger {
	return l.logger.WithMethod(method)
}

func (l *StandardLogger) WithHorizon(horizon string) *slog.Logger {
	return l.logger.WithHorizon(horizon)
}

func (l *StandardLogger) WithError(err error) *slog.Logger {
	return l.logger.WithError(err)
}

func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.logger.LogStartup(serviceName, version, port)
}

func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.logger.LogShutdown(serviceName, reason)
}

func (l *StandardLogger) LogCacheOperation(operation string, key string, hit bool, durationMs int64) {
	l.logger.LogCacheOperation(operation, key, hit, durationMs)
}

func (l *StandardLogger) LogDetectionRun(systemID string, candidates int, accepted int, skipped bool) {
	l.logger.LogDetectionRun(systemID, candidates, accepted, skipped)
}

// Logger returns the underlying *slog.Logger.
func (l *StandardLogger) Logger() *slog.Logger {
	return l.logger.Logger()
}

func getSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogrusLevel converts a string level to logrus.Level for the services
// that still take a *logrus.Logger.
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// otlpWrapper adapts OTLPLogger to the Logger interface.
type otlpWrapper struct {
	logger *OTLPLogger
}

func (o *otlpWrapper) WithService(serviceName string) *slog.Logger {
	return o.logger.logger.With("service", serviceName)
}

func (o *otlpWrapper) WithComponent(componentName string) *slog.Logger {
	return o.logger.logger.With("component", componentName)
}

func (o *otlpWrapper) WithOperation(operationName string) *slog.Logger {
	return o.logger.logger.With("operation", operationName)
}

func (o *otlpWrapper) WithRequestID(requestID string) *slog.Logger {
	return o.logger.logger.With("request_id", requestID)
}

func (o *otlpWrapper) WithSystem(systemID string) *slog.Logger {
	return o.logger.logger.With("system_id", systemID)
}

func (o *otlpWrapper) WithMethod(method string) *slog.Logger {
	return o.logger.logger.With("method", method)
}

func (o *otlpWrapper) WithHorizon(horizon string) *slog.Logger {
	return o.logger.logger.With("horizon", horizon)
}

func (o *otlpWrapper) WithError(err error) *slog.Logger {
	return o.logger.logger.With("error", err.Error())
}

func (o *otlpWrapper) LogStartup(serviceName string, version string, port int) {
	o.logger.logger.Info("Service starting",
		"event", "startup",
		"service", serviceName,
		"version", version,
		"port", port,
	)
}

func (o *otlpWrapper) LogShutdown(serviceName string, reason string) {
	o.logger.logger.Info("Service shutting down",
		"event", "shutdown",
		"service", serviceName,
		"reason", reason,
	)
}

func (o *otlpWrapper) LogCacheOperation(operation string, key string, hit bool, durationMs int64) {
	o.logger.logger.Debug("Cache operation",
		"event", "cache_operation",
		"operation", operation,
		"key", key,
		"hit", hit,
		"duration_ms", durationMs,
	)
}

func (o *otlpWrapper) LogDetectionRun(systemID string, candidates int, accepted int, skipped bool) {
	o.logger.logger.Info("Detection run",
		"event", "detection_run",
		"system_id", systemID,
		"candidates", candidates,
		"accepted", accepted,
		"skipped", skipped,
	)
}

func (o *otlpWrapper) Logger() *slog.Logger {
	return o.logger.logger
}

// fallbackLogger writes directly through slog when OTLP is not configured.
type fallbackLogger struct {
	logger *slog.Logger
}

func (f *fallbackLogger) WithService(serviceName string) *slog.Logger {
	return f.logger.With("service", serviceName)
}

func (f *fallbackLogger) WithComponent(componentName string) *slog.Logger {
	return f.logger.With("component", componentName)
}

func (f *fallbackLogger) WithOperation(operationName string) *slog.Logger {
	return f.logger.With("operation", operationName)
}

func (f *fallbackLogger) WithRequestID(requestID string) *slog.Logger {
	return f.logger.With("request_id", requestID)
}

func (f *fallbackLogger) WithSystem(systemID string) *slog.Logger {
	return f.logger.With("system_id", systemID)
}

func (f *fallbackLogger) WithMethod(method string) *slog.Logger {
	return f.logger.With("method", method)
}

func (f *fallbackLogger) WithHorizon(horizon string) *slog.Logger {
	return f.logger.With("horizon", horizon)
}

func (f *fallbackLogger) WithError(err error) *slog.Logger {
	return f.logger.With("error", err.Error())
}

func (f *fallbackLogger) LogStartup(serviceName string, version string, port int) {
	f.logger.Info("Service starting",
		"event", "startup",
		"service", serviceName,
		"version", version,
		"port", port,
	)
}

func (f *fallbackLogger) LogShutdown(serviceName string, reason string) {
	f.logger.Info("Service shutting down",
		"event", "shutdown",
		"service", serviceName,
		"reason", reason,
	)
}

func (f *fallbackLogger) LogCacheOperation(operation string, key string, hit bool, durationMs int64) {
	f.logger.Debug("Cache operation",
		"event", "cache_operation",
		"operation", operation,
		"key", key,
		"hit", hit,
		"duration_ms", durationMs,
	)
}

func (f *fallbackLogger) LogDetectionRun(systemID string, candidates int, accepted int, skipped bool) {
	f.logger.Info("Detection run",
		"event", "detection_run",
		"system_id", systemID,
		"candidates", candidates,
		"accepted", accepted,
		"skipped", skipped,
	)
}

func (f *fallbackLogger) Logger() *slog.Logger {
	return f.logger
}
