package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Logger writes the human-readable event log: leveled lines to a single
// append-only file, mirrored to stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	file       *os.File
	path       string
	mu         sync.Mutex
}

// New opens (or creates) the event log at path in append mode.
func New(path string) (*Logger, error) {
	return NewWithConsole(path, os.Stdout, os.Stderr)
}

// NewWithConsole is New with explicit console writers; nil writers
// disable console mirroring.
func NewWithConsole(path string, stdout, stderr io.Writer) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
	}

	l := &Logger{file: file, path: path}
	l.setupLoggers(stdout, stderr)
	return l, nil
}

// setupLoggers initializes writers and per-level loggers.
func (l *Logger) setupLoggers(stdout, stderr io.Writer) {
	out := func(console io.Writer) io.Writer {
		if console == nil {
			return l.file
		}
		return io.MultiWriter(console, l.file)
	}

	l.infoLog = log.New(out(stdout), "INFO    ", log.Ldate|log.Ltime)
	l.warningLog = log.New(out(stdout), "WARNING ", log.Ldate|log.Ltime)
	l.errorLog = log.New(out(stderr), "ERROR   ", log.Ldate|log.Ltime)
}

// Path returns the event log file path.
func (l *Logger) Path() string {
	return l.path
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Printf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Printf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Printf(format, v...)
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
