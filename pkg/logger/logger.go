package logger

import (
	"context"
	"log/slog"
	"os"
)

type contextKey struct{}

func Setup(level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithRecording tags the context with the recording file currently being
// processed so worker-side logs can be correlated per file.
func WithRecording(ctx context.Context, recording string) context.Context {
	return context.WithValue(ctx, contextKey{}, recording)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if recording, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("recording", recording)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
