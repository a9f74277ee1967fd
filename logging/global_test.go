package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giygas/bpc-regimens/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGetConsoleLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		env      config.Environment
		level    string
		verbose  bool
		expected slog.Level
	}{
		{"dev defaults to info", config.EnvDevelopment, "", false, slog.LevelInfo},
		{"test is quiet", config.EnvTest, "", false, slog.LevelError},
		{"test verbose", config.EnvTest, "", true, slog.LevelInfo},
		{"prod defaults to warn", config.EnvProduction, "", false, slog.LevelWarn},
		{"staging defaults to warn", config.EnvStaging, "", false, slog.LevelWarn},
		{"prod with debug override", config.EnvProduction, "debug", false, slog.LevelDebug},
		{"test ignores override", config.EnvTest, "debug", false, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetConsoleLogLevel(tt.env, tt.level, tt.verbose); got != tt.expected {
				t.Errorf("GetConsoleLogLevel(%v, %q, %v) = %v, want %v", tt.env, tt.level, tt.verbose, got, tt.expected)
			}
		})
	}
}

func TestGetFileLogLevel(t *testing.T) {
	if got := GetFileLogLevel(); got != slog.LevelDebug {
		t.Errorf("GetFileLogLevel() = %v, want %v", got, slog.LevelDebug)
	}
}

func TestInitLoggerWritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	InitLogger(Options{LogDir: dir, ConsoleLevel: slog.LevelWarn, RetentionDays: 7, MaxFileSize: 1 << 20, Console: &console})
	t.Cleanup(func() {
		_ = Close()
		DefaultLoggingService = nil
	})

	Debug("debug only in file", "cohort", "BrCa")
	Warn("warning everywhere", "cohort", "CRC")

	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if strings.Contains(console.String(), "debug only in file") {
		t.Errorf("console should not contain debug output: %s", console.String())
	}
	if !strings.Contains(console.String(), "warning everywhere") {
		t.Errorf("console should contain the warning: %s", console.String())
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "regimens-*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one log file, got %v", matches)
	}
	content, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	for _, want := range []string{`"msg":"debug only in file"`, `"cohort":"CRC"`} {
		if !strings.Contains(string(content), want) {
			t.Errorf("log file missing %s: %s", want, content)
		}
	}
}

func TestInitLoggerFallsBackToConsole(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	var console bytes.Buffer

	InitLogger(Options{LogDir: filepath.Join(blocker, "logs"), ConsoleLevel: slog.LevelInfo, RetentionDays: 1, Console: &console})
	t.Cleanup(func() { DefaultLoggingService = nil })

	Info("still logging")

	if !strings.Contains(console.String(), "File logging disabled") {
		t.Errorf("expected fallback notice, got: %s", console.String())
	}
	if !strings.Contains(console.String(), "still logging") {
		t.Errorf("expected console output, got: %s", console.String())
	}
}

func TestPackageFunctionsBeforeInit(t *testing.T) {
	DefaultLoggingService = nil
	// Must not panic
	Info("info")
	Warn("warn")
	Error("error")
	Debug("debug")
	if Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if err := Close(); err != nil {
		t.Errorf("Close() before init = %v", err)
	}
}
