// Package logging wraps slog with a console handler and a rotating JSON file
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/giygas/bpc-regimens/config"
)

// Options controls where and how much is logged
type Options struct {
	LogDir        string
	ConsoleLevel  slog.Level
	RetentionDays int
	MaxFileSize   int64
	Console       io.Writer
}

type LoggingService struct {
	Logger   *slog.Logger
	rotating *RotatingLogger
}

var DefaultLoggingService *LoggingService

// InitLogger installs the global logger. If the log directory cannot be
// used, logging continues on the console only.
func InitLogger(opts Options) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: opts.ConsoleLevel})

	service := &LoggingService{}
	rotating := NewRotatingLogger(opts.LogDir, opts.RetentionDays, opts.MaxFileSize)
	if err := rotating.Start(); err != nil {
		service.Logger = slog.New(consoleHandler)
		service.Logger.Error("File logging disabled", "log_dir", opts.LogDir, "error", err)
	} else {
		service.rotating = rotating
		fileHandler := slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: GetFileLogLevel()})
		service.Logger = slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}})
	}

	if DefaultLoggingService != nil {
		_ = DefaultLoggingService.Close()
	}
	DefaultLoggingService = service
	slog.SetDefault(service.Logger)
}

// Close flushes and closes the log file, if any
func (s *LoggingService) Close() error {
	if s == nil || s.rotating == nil {
		return nil
	}
	err := s.rotating.Close()
	s.rotating = nil
	return err
}

// Close closes the global logging service
func Close() error {
	return DefaultLoggingService.Close()
}

// Logger returns the global logger, or a stderr logger before InitLogger
func Logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return DefaultLoggingService.Logger
}

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// GetConsoleLogLevel picks the console level. Tests stay quiet unless
// verbose; otherwise an explicit level wins over the environment default.
func GetConsoleLogLevel(env config.Environment, level string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}
	if level != "" {
		return parseLogLevel(level)
	}
	if env == config.EnvProduction || env == config.EnvStaging {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// GetFileLogLevel is always debug, the file keeps everything
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}
