// Package logger configures the process-wide slog logger. Output goes to
// stdout as JSON or text, or to an OTLP collector through the otelslog
// bridge. Warnings and errors are sampled; their counters are not.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelFatal = slog.Level(12)
)

// Config selects the log handler
type Config struct {
	Level       string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format      string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
	SampleRate  int32  `yaml:"sample_rate" env:"ERROR_SAMPLE_RATE" env-default:"1"`
	OTEL        bool   `yaml:"otel" env:"OTEL_ENABLED" env-default:"false"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"ratebook"`
}

var (
	// Logger is the configured logger, also installed as slog's default
	Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: programLevel}))

	programLevel = new(slog.LevelVar)
	sampleRate   atomic.Int32
	shutdownFunc func(context.Context) error
)

// Counters are incremented on every warning and error, sampled or not.
// They are reported by the health endpoint.
var (
	TotalErrors    atomic.Int64
	TotalWarnings  atomic.Int64
	Total5xxErrors atomic.Int64
	Total4xxErrors atomic.Int64
	Total404Errors atomic.Int64
	Total422Errors atomic.Int64
	SlowRequests   atomic.Int64
)

func init() {
	sampleRate.Store(1)
}

// Setup installs the logger described by cfg. When OTEL export cannot be
// set up it falls back to JSON on stdout and returns the error.
func Setup(ctx context.Context, cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	programLevel.Set(level)

	if cfg.SampleRate > 0 {
		sampleRate.Store(cfg.SampleRate)
	}

	if cfg.OTEL {
		handler, shutdown, err := otelHandler(ctx, cfg.ServiceName)
		if err == nil {
			shutdownFunc = shutdown
			install(handler)
			return nil
		}
		install(streamHandler(os.Stdout, "json"))
		return fmt.Errorf("otel logging unavailable, using json: %w", err)
	}

	install(streamHandler(os.Stdout, cfg.Format))
	return nil
}

// SetOutput sends log output to w in the given format. Tests use it to
// capture or discard logs.
func SetOutput(w io.Writer, format string) {
	install(streamHandler(w, format))
}

func install(h slog.Handler) {
	Logger = slog.New(h)
	slog.SetDefault(Logger)
}

func streamHandler(w io.Writer, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: programLevel}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func otelHandler(ctx context.Context, serviceName string) (slog.Handler, func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	handler := &levelHandler{
		level:   programLevel,
		handler: otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider)),
	}
	return handler, provider.Shutdown, nil
}

// levelHandler applies the program level to a handler that has none
type levelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithGroup(name)}
}

// Shutdown flushes the OTEL exporter, if one is in use
func Shutdown(ctx context.Context) error {
	if shutdownFunc != nil {
		return shutdownFunc(ctx)
	}
	return nil
}

// SetLevel sets the minimum log level
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// GetLevel returns the current minimum log level
func GetLevel() slog.Level {
	return programLevel.Level()
}

// ParseLevel converts a level name to a slog.Level. An empty name is INFO.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %s", name)
}

// shouldSample keeps 1 in every sampleRate messages
func shouldSample() bool {
	rate := sampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.IntN(int(rate)) == 0
}

// Debug logs at debug level
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs at info level
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn counts the warning and logs it when sampled
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error counts the error and logs it when sampled
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs, flushes the OTEL exporter and exits
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	_ = Shutdown(context.Background())
	os.Exit(1)
}

// CountStatus updates the HTTP counters for a response status
func CountStatus(status int) {
	switch {
	case status >= 500:
		Total5xxErrors.Add(1)
		TotalErrors.Add(1)
	case status >= 400:
		Total4xxErrors.Add(1)
		TotalWarnings.Add(1)
		switch status {
		case 404:
			Total404Errors.Add(1)
		case 422:
			Total422Errors.Add(1)
		}
	}
}

// CountSlowRequest records a request over the slow threshold
func CountSlowRequest() {
	SlowRequests.Add(1)
	TotalWarnings.Add(1)
}

// Stats is a point-in-time copy of the counters
type Stats struct {
	Errors       int64 `json:"errors"`
	Warnings     int64 `json:"warnings"`
	Status5xx    int64 `json:"status5xx"`
	Status4xx    int64 `json:"status4xx"`
	Status404    int64 `json:"status404"`
	Status422    int64 `json:"status422"`
	SlowRequests int64 `json:"slowRequests"`
}

// Snapshot reads the counters
func Snapshot() Stats {
	return Stats{
		Errors:       TotalErrors.Load(),
		Warnings:     TotalWarnings.Load(),
		Status5xx:    Total5xxErrors.Load(),
		Status4xx:    Total4xxErrors.Load(),
		Status404:    Total404Errors.Load(),
		Status422:    Total422Errors.Load(),
		SlowRequests: SlowRequests.Load(),
	}
}
