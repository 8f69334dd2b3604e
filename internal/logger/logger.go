package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var Logger = slog.Default()

// Init configures the package logger and installs it as the slog default.
// DEBUG=true lowers the level, LOG_FORMAT=json switches to the JSON handler.
func Init() {
	InitWriter(os.Stdout, os.Getenv("DEBUG") == "true", os.Getenv("LOG_FORMAT"))
}

func InitWriter(w io.Writer, debug bool, format string) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// With returns a child logger tagged with the component name.
func With(component string) *slog.Logger {
	return Logger.With("component", component)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
