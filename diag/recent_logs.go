// Package diag provides client-side diagnostics: a recent-log ring buffer,
// per-endpoint connectivity stats and client identification.
package diag

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry.
type LogLevel string

const (
	LevelError LogLevel = "ERROR"
	LevelWarn  LogLevel = "WARN"
	LevelInfo  LogLevel = "INFO"
	LevelDebug LogLevel = "DEBUG"
)

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// LogEntry represents a single log entry.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// RecentLogs keeps the last N log entries and mirrors every entry to slog.
type RecentLogs struct {
	mu         sync.Mutex
	entries    []LogEntry
	maxEntries int
	out        *slog.Logger
}

// NewRecentLogs creates a RecentLogs buffer writing through out.
// A nil out falls back to slog.Default().
func NewRecentLogs(maxEntries int, out *slog.Logger) *RecentLogs {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	if out == nil {
		out = slog.Default()
	}
	return &RecentLogs{
		entries:    make([]LogEntry, 0, maxEntries),
		maxEntries: maxEntries,
		out:        out,
	}
}

// NopLogs returns a RecentLogs that buffers entries but discards output.
func NopLogs() *RecentLogs {
	return NewRecentLogs(100, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// Log adds a log entry with context.
func (r *RecentLogs) Log(level LogLevel, message string, context map[string]interface{}) {
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Context:   context,
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	if len(r.entries) > r.maxEntries {
		r.entries = r.entries[len(r.entries)-r.maxEntries:]
	}
	r.mu.Unlock()

	r.emit(entry)
}

func (r *RecentLogs) emit(entry LogEntry) {
	args := make([]any, 0, len(entry.Context)*2)
	for k, v := range entry.Context {
		args = append(args, k, v)
	}
	r.out.Log(context.Background(), entry.Level.slogLevel(), entry.Message, args...)
}

// Error logs an error message with context.
func (r *RecentLogs) Error(message string, context map[string]interface{}) {
	r.Log(LevelError, message, context)
}

// Warn logs a warning message with context.
func (r *RecentLogs) Warn(message string, context map[string]interface{}) {
	r.Log(LevelWarn, message, context)
}

// Info logs an info message with context.
func (r *RecentLogs) Info(message string, context map[string]interface{}) {
	r.Log(LevelInfo, message, context)
}

// Debug logs a debug message with context.
func (r *RecentLogs) Debug(message string, context map[string]interface{}) {
	r.Log(LevelDebug, message, context)
}

// Entries returns a copy of the buffered entries, oldest first.
func (r *RecentLogs) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// LogStats summarizes the buffered entries per level.
type LogStats struct {
	Total      int `json:"total_count"`
	Errors     int `json:"errors_count"`
	Warnings   int `json:"warnings_count"`
	Info       int `json:"info_count"`
	Debug      int `json:"debug_count"`
	MaxEntries int `json:"max_entries"`
}

// Stats counts buffered entries per level.
func (r *RecentLogs) Stats() LogStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := LogStats{Total: len(r.entries), MaxEntries: r.maxEntries}
	for _, entry := range r.entries {
		switch entry.Level {
		case LevelError:
			stats.Errors++
		case LevelWarn:
			stats.Warnings++
		case LevelInfo:
			stats.Info++
		case LevelDebug:
			stats.Debug++
		}
	}
	return stats
}
