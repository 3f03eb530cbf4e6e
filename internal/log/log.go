// Package log provides structured debug logging for lpck.
// Entries carry a level, a category and key=value fields. Logging is off
// until Init or InitWriter is called (the --debug flag or LPCK_DEBUG).
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Category groups related log messages.
type Category string

const (
	CatWorkspace Category = "workspace" // Workspace member resolution
	CatRegistry  Category = "registry"  // Registry load, substitution and restore
	CatNpm       Category = "npm"       // External npm invocations
	CatInstall   Category = "install"   // Install selection
	CatPipeline  Category = "pipeline"  // Run state transitions
	CatConfig    Category = "config"    // Preset file loading/saving
	CatGit       Category = "git"       // Git pre-flight checks
)

// Logger writes formatted entries to a writer.
type Logger struct {
	mu       sync.Mutex
	writer   io.Writer
	minLevel Level
}

var (
	stateMu       sync.RWMutex
	defaultLogger *Logger
)

// Init opens (appending) the log file at path and makes it the destination
// of all package-level logging. The returned function closes the file.
func Init(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil { //nolint:gosec // log dir needs to be readable
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G304: user-controlled debug log path
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	set(&Logger{writer: f, minLevel: LevelDebug})
	return func() {
		set(nil)
		_ = f.Close()
	}, nil
}

// InitWriter logs to w. Passing nil disables logging.
func InitWriter(w io.Writer) {
	if w == nil {
		set(nil)
		return
	}
	set(&Logger{writer: w, minLevel: LevelDebug})
}

func set(l *Logger) {
	stateMu.Lock()
	defaultLogger = l
	stateMu.Unlock()
}

// Enabled reports whether logging is active.
func Enabled() bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return defaultLogger != nil
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	stateMu.RLock()
	l := defaultLogger
	stateMu.RUnlock()
	if l != nil {
		l.mu.Lock()
		l.minLevel = level
		l.mu.Unlock()
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	write(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	write(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	write(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	write(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	write(LevelError, cat, msg, fields...)
}

func write(level Level, cat Category, msg string, fields ...any) {
	stateMu.RLock()
	l := defaultLogger
	stateMu.RUnlock()
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.minLevel {
		return
	}

	// Format: 2026-10-15T10:45:00 [ERROR] [registry] message key=value key2=value2
	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&b, " [%s] [%s] %s", level, cat, msg)
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	if len(fields)%2 != 0 {
		fmt.Fprintf(&b, " %v=", fields[len(fields)-1])
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(l.writer, b.String())
}
