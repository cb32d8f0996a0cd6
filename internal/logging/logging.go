// Package logging sets up zerolog with console and rotating file output and
// carries loggers through contexts.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig describes where log lines go. Console and File may both be
// enabled; with neither, logs are discarded.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	// Out receives console output; nil means stderr.
	Out io.Writer
	// NoColor disables ANSI levels on the console.
	NoColor bool
}

// New builds the process logger from cfg and sets the global level.
func New(cfg LogConfig) zerolog.Logger {
	sinks := make([]io.Writer, 0, 2)
	if cfg.Console {
		sinks = append(sinks, consoleWriter(cfg))
	}
	if cfg.File {
		if w := rotatingFile(cfg); w != nil {
			sinks = append(sinks, w)
		}
	}

	var out io.Writer
	switch len(sinks) {
	case 0:
		out = io.Discard
	case 1:
		out = sinks[0]
	default:
		out = zerolog.MultiLevelWriter(sinks...)
	}

	zerolog.SetGlobalLevel(levelOf(cfg.Level))
	return zerolog.New(out).With().Timestamp().Str("app", "tradestein").Logger()
}

func consoleWriter(cfg LogConfig) zerolog.ConsoleWriter {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    cfg.NoColor,
		TimeFormat:    time.Kitchen,
		FieldsExclude: []string{"app"},
	}
}

// rotatingFile returns nil when the log directory cannot be created; the
// logger then runs console-only.
func rotatingFile(cfg LogConfig) io.Writer {
	if cfg.FilePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}
}

// levelOf maps a config level to zerolog, falling back to info.
func levelOf(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetDebugLevel lowers the global level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
	// RequestIDKey is the context key for request ID.
	RequestIDKey ContextKey = "request_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithRequestID stores a request id in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFrom returns the request id stored in ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithUser adds a user id to the logger context.
func WithUser(logger zerolog.Logger, userID string) zerolog.Logger {
	return logger.With().Str("user_id", userID).Logger()
}

// LogTradeEvent logs a journal mutation.
func LogTradeEvent(logger zerolog.Logger, action, userID, tradeID, ticker string) {
	logger.Info().
		Str("event", "trade").
		Str("action", action).
		Str("user_id", userID).
		Str("trade_id", tradeID).
		Str("ticker", ticker).
		Msg("Trade " + action)
}

// LogJob logs a completed background job.
func LogJob(logger zerolog.Logger, job string, duration time.Duration, err error) {
	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Str("event", "job").
		Str("job", job).
		Dur("duration", duration).
		Msg("Job finished")
}

// LogAPICall logs an API call.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}
