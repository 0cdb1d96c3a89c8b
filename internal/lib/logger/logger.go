package logger

import (
	"io"
	"log/slog"
)

// New returns the logger for env writing to w: text at debug for local,
// JSON at debug for dev, JSON at info for prod. Unknown envs get text at info.
// Every record carries the env.
func New(env string, w io.Writer) *slog.Logger {
	json, level := false, slog.LevelInfo
	switch env {
	case "local":
		level = slog.LevelDebug
	case "dev":
		json, level = true, slog.LevelDebug
	case "prod":
		json = true
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if json {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With(slog.String("env", env))
}

// Discard drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
