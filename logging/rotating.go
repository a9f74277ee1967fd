package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const filePrefix = "regimens"

var overflowFileRegex = regexp.MustCompile(`^` + filePrefix + `-\d{4}-\d{2}-\d{2}_(\d{2})\.log$`)

// RotatingLogger writes to one log file per day. When a file reaches
// maxFileSize the day continues in numbered overflow files.
type RotatingLogger struct {
	logDir      string
	retention   time.Duration
	maxFileSize int64
	now         func() time.Time

	mu          sync.Mutex
	currentFile *os.File
	currentDay  string
	currentSize atomic.Int64
	closed      bool

	ctx         context.Context
	cancel      context.CancelFunc
	cleanupDone chan struct{}
}

// NewRotatingLogger creates a rotating logger. A maxFileSize of 0 disables
// size based rotation.
func NewRotatingLogger(logDir string, retentionDays int, maxFileSize int64) *RotatingLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
		maxFileSize: maxFileSize,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Start opens today's file and launches the retention cleanup loop
func (rl *RotatingLogger) Start() error {
	if err := os.MkdirAll(rl.logDir, 0755); err != nil {
		close(rl.cleanupDone)
		return fmt.Errorf("failed to create log directory %s: %w", rl.logDir, err)
	}

	rl.mu.Lock()
	err := rl.rotate(dayKey(rl.now()), false)
	rl.mu.Unlock()
	if err != nil {
		close(rl.cleanupDone)
		return err
	}

	go func() {
		defer close(rl.cleanupDone)
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-rl.ctx.Done():
				return
			case <-ticker.C:
				if _, err := rl.cleanupOldLogs(); err != nil {
					slog.Warn("Failed to cleanup old logs", "error", err)
				}
			}
		}
	}()

	return nil
}

// rotate switches to the file for day (caller must hold the lock)
func (rl *RotatingLogger) rotate(day string, full bool) error {
	if rl.currentFile != nil {
		if err := rl.currentFile.Close(); err != nil {
			slog.Warn("Failed to close log file during rotation", "error", err)
		}
		rl.currentFile = nil
	}

	logPath := filepath.Join(rl.logDir, rl.pickFile(day, full))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	rl.currentFile = file
	rl.currentDay = day
	rl.currentSize.Store(fileSize(logPath))
	return nil
}

// pickFile returns the newest file of the day that still has room, or a new
// overflow file when full is set or every file of the day is at the limit.
func (rl *RotatingLogger) pickFile(day string, full bool) string {
	seq, last := rl.highestOverflow(day)
	if !full {
		candidate := fmt.Sprintf("%s-%s.log", filePrefix, day)
		if last != "" {
			candidate = last
		}
		if rl.maxFileSize <= 0 || fileSize(filepath.Join(rl.logDir, candidate)) < rl.maxFileSize {
			return candidate
		}
	}
	return fmt.Sprintf("%s-%s_%02d.log", filePrefix, day, seq+1)
}

func (rl *RotatingLogger) highestOverflow(day string) (int, string) {
	matches, _ := filepath.Glob(filepath.Join(rl.logDir, fmt.Sprintf("%s-%s_??.log", filePrefix, day)))

	highest := 0
	var name string
	for _, match := range matches {
		m := overflowFileRegex.FindStringSubmatch(filepath.Base(match))
		if len(m) < 2 {
			continue
		}
		if n, _ := strconv.Atoi(m[1]); n > highest {
			highest = n
			name = filepath.Base(match)
		}
	}
	return highest, name
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Write implements io.Writer
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.closed {
		return 0, os.ErrClosed
	}

	day := dayKey(rl.now())
	switch {
	case day != rl.currentDay || rl.currentFile == nil:
		if err := rl.rotate(day, false); err != nil {
			return 0, err
		}
	case rl.maxFileSize > 0 && rl.currentSize.Load() > 0 && rl.currentSize.Load()+int64(len(p)) > rl.maxFileSize:
		if err := rl.rotate(day, true); err != nil {
			return 0, err
		}
	}

	n, err := rl.currentFile.Write(p)
	rl.currentSize.Add(int64(n))
	return n, err
}

// cleanupOldLogs removes log files not modified within the retention period
func (rl *RotatingLogger) cleanupOldLogs() (int, error) {
	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := rl.now().Add(-rl.retention)
	deleted := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix+"-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(rl.logDir, name)); err == nil {
			deleted++
		}
	}
	return deleted, nil
}

// Close stops the cleanup loop and closes the current file
func (rl *RotatingLogger) Close() error {
	rl.cancel()

	select {
	case <-rl.cleanupDone:
	case <-time.After(time.Second):
		fmt.Fprintln(os.Stderr, "Warning: log cleanup goroutine did not stop in time")
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.closed = true
	if rl.currentFile == nil {
		return nil
	}
	err := rl.currentFile.Close()
	rl.currentFile = nil
	return err
}

// multiHandler fans a record out to several handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
