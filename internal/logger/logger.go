// Package logger builds the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"memories/internal/config"
)

// New returns a logger writing to stderr and installs it as the slog default.
func New(cfg config.LogConfig) *slog.Logger {
	l := NewWithWriter(os.Stderr, cfg)
	slog.SetDefault(l)
	return l
}

// NewWithWriter returns a logger writing to w. "json" selects the JSON handler,
// anything else the colored console handler.
func NewWithWriter(w io.Writer, cfg config.LogConfig) *slog.Logger {
	level := ParseLevel(cfg.Level)

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    w != os.Stderr && w != os.Stdout,
	}))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// Duration is a slog attribute helper rounding to microseconds.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d.Round(time.Microsecond))
}
