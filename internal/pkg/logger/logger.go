// Package logger builds the process slog.Logger and carries request
// scoped loggers through a context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"

	"github.com/khmercoders/kcbot/internal/conf"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates the logger described by cfg writing to w (stderr when nil).
// When cfg.File is set, records are also written to a rotated file; the
// returned closer releases it.
func New(cfg conf.LogConfig, w io.Writer) (*slog.Logger, io.Closer, error) {
	if w == nil {
		w = os.Stderr
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotated, err := newRotatedFile(cfg)
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(w, rotated)
		closer = rotated
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, nil, fmt.Errorf("unknown log.format: %s", cfg.Format)
	}

	return slog.New(h), closer, nil
}

func newRotatedFile(cfg conf.LogConfig) (*rotatelogs.RotateLogs, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	rotationHours := cfg.RotationHours
	if rotationHours <= 0 {
		rotationHours = 24
	}
	options := []rotatelogs.Option{
		rotatelogs.WithLinkName(cfg.File),
		rotatelogs.WithRotationTime(time.Duration(rotationHours) * time.Hour),
	}
	if cfg.MaxAgeDays > 0 {
		options = append(options, rotatelogs.WithMaxAge(time.Duration(cfg.MaxAgeDays)*24*time.Hour))
	}
	if cfg.RotationSizeMB > 0 {
		options = append(options, rotatelogs.WithRotationSize(int64(cfg.RotationSizeMB)*1024*1024))
	}

	writer, err := rotatelogs.New(cfg.File+".%Y%m%d", options...)
	if err != nil {
		return nil, fmt.Errorf("open rotated log %s: %w", cfg.File, err)
	}
	return writer, nil
}

// ParseLevel maps a level name to slog.Level; empty means info
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log.level: %s", s)
	}
}

type ctxKey struct{}

// IntoContext returns ctx carrying l
func IntoContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or fallback
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
