package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the handler and sinks used by Init.
type Options struct {
	Format     string `mapstructure:"format"` // "json" | "text"
	Level      string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	File       string `mapstructure:"file"`   // optional rotating log file
	MaxSizeMB  int    `mapstructure:"max-size-mb"`
	MaxBackups int    `mapstructure:"max-backups"`
	MaxAgeDays int    `mapstructure:"max-age-days"`
}

var (
	level  = new(slog.LevelVar) // dynamic level if we ever want to adjust it
	Logger = newLogger(os.Stdout, os.Getenv("LOG_FORMAT"))
	closer io.Closer
)

func newLogger(w io.Writer, format string) *slog.Logger {
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

// Init replaces the package logger. Safe to call once at startup before the
// poller goroutine is started.
func Init(opts Options) {
	format := opts.Format
	if env := os.Getenv("LOG_FORMAT"); env != "" {
		format = env
	}
	SetLevel(opts.Level)

	var w io.Writer = os.Stdout
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		closer = lj
		w = io.MultiWriter(os.Stdout, lj)
	}
	Logger = newLogger(w, format)
}

// Close flushes and closes the file sink, if any.
func Close() error {
	if closer == nil {
		return nil
	}
	return closer.Close()
}

func SetLevel(s string) {
	switch strings.ToLower(s) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

func Info(msg string, args ...any)  { Logger.Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger.Warn(msg, args...) }
func Error(msg string, args ...any) { Logger.Error(msg, args...) }
func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }

// Fatal logs at error level and exits.
func Fatal(msg string, args ...any) {
	Logger.Error(msg, args...)
	_ = Close()
	os.Exit(1)
}

func With(args ...any) *slog.Logger { return Logger.With(args...) }

func DebugEnabled() bool { return Logger.Enabled(context.Background(), slog.LevelDebug) }
