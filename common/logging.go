package common

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger is the structured logger used across the motion client.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// SlogLevel maps a LogLevel to its slog counterpart. Unknown levels map to Info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DailyRotatingWriter writes to <dir>/<name>-<date>.log and opens a new file
// when the local date changes.
type DailyRotatingWriter struct {
	logDir      string
	filename    string
	currentFile *os.File
	currentDate string
	now         func() time.Time
	mu          sync.Mutex
}

func NewDailyRotatingWriter(logDir, filename string) *DailyRotatingWriter {
	return &DailyRotatingWriter{
		logDir:   logDir,
		filename: filename,
		now:      time.Now,
	}
}

func (w *DailyRotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	currentDate := w.now().Format("2006-01-02")
	if w.currentFile == nil || w.currentDate != currentDate {
		if err := w.rotate(currentDate); err != nil {
			return 0, err
		}
	}

	return w.currentFile.Write(p)
}

func (w *DailyRotatingWriter) rotate(date string) error {
	if w.currentFile != nil {
		w.currentFile.Close()
	}

	path := filepath.Join(w.logDir, fmt.Sprintf("%s-%s.log", w.filename, date))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	w.currentFile = file
	w.currentDate = date
	return nil
}

// Close closes the file currently being written.
func (w *DailyRotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile != nil {
		err := w.currentFile.Close()
		w.currentFile = nil
		return err
	}
	return nil
}

// CreateLogger creates a JSON logger that writes to stdout and, when logDir is
// not empty, to daily rotating files in logDir. If the directory cannot be
// created the logger falls back to stdout only.
func CreateLogger(logLevel LogLevel, logDir string, fileName string) Logger {
	opts := &slog.HandlerOptions{Level: logLevel.SlogLevel()}

	if logDir == "" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	out := io.MultiWriter(os.Stdout, NewDailyRotatingWriter(logDir, fileName))
	return slog.New(slog.NewJSONHandler(out, opts))
}

// NewWriterLogger logs JSON to w. Tests use it to capture output.
func NewWriterLogger(w io.Writer, logLevel LogLevel) Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel.SlogLevel()}))
}

type nopLogger struct{}

// NopLogger discards everything.
var NopLogger Logger = &nopLogger{}

func (l *nopLogger) Info(msg string, args ...any)  {}
func (l *nopLogger) Warn(msg string, args ...any)  {}
func (l *nopLogger) Error(msg string, args ...any) {}
func (l *nopLogger) Debug(msg string, args ...any) {}
