package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// Logger is the logging port used across the module.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})

	InfoContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnContext(ctx context.Context, msg string, fields map[string]interface{})
}

type slogAdapter struct {
	logger *slog.Logger
}

// New picks a handler by environment: text at debug level for local and dev,
// JSON at info level for prod.
func New(env string) Logger {
	return NewWithWriter(env, os.Stdout)
}

func NewWithWriter(env string, w io.Writer) Logger {
	var log *slog.Logger

	switch env {
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	case envLocal, envDev:
		fallthrough
	default:
		log = slog.New(
			slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return &slogAdapter{logger: log}
}

// Nop discards everything.
func Nop() Logger {
	return &slogAdapter{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *slogAdapter) Info(msg string, fields map[string]interface{}) {
	l.log(context.Background(), slog.LevelInfo, msg, fields)
}

func (l *slogAdapter) Error(msg string, fields map[string]interface{}) {
	l.log(context.Background(), slog.LevelError, msg, fields)
}

func (l *slogAdapter) Debug(msg string, fields map[string]interface{}) {
	l.log(context.Background(), slog.LevelDebug, msg, fields)
}

func (l *slogAdapter) Warn(msg string, fields map[string]interface{}) {
	l.log(context.Background(), slog.LevelWarn, msg, fields)
}

func (l *slogAdapter) InfoContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, slog.LevelInfo, msg, fields)
}

func (l *slogAdapter) ErrorContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, slog.LevelError, msg, fields)
}

func (l *slogAdapter) DebugContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, slog.LevelDebug, msg, fields)
}

func (l *slogAdapter) WarnContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, slog.LevelWarn, msg, fields)
}

func (l *slogAdapter) log(ctx context.Context, level slog.Level, msg string, fields map[string]interface{}) {
	if fields == nil {
		l.logger.Log(ctx, level, msg)
		return
	}
	l.logger.Log(ctx, level, msg, slog.Any("fields", fields))
}
