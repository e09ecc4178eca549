package obs

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	loggerMu sync.RWMutex
	logger   = NewLogger(os.Stdout, "info", "json")
)

// NewLogger builds a slog logger writing one record per line. Format is
// "json" or "text"; the time attribute is emitted as ts.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				a.Key = "ts"
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel maps a level name to slog; unknown names mean info.
func ParseLevel(level string) slog.Level {
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

// Logger returns the shared structured logger used across the service.
func Logger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger replaces the shared logger and returns the previous one.
func SetLogger(l *slog.Logger) *slog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	prev := logger
	if l != nil {
		logger = l
	}
	return prev
}
