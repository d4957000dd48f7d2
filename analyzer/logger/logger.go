// Package logger configures the process-wide slog logger used by the
// analyzer CLI and engine.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogLevel is the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelNone  LogLevel = "none"
)

// levelNone is above every level slog emits.
const levelNone = slog.Level(1000)

// DefaultTag prefixes records when no tag is set.
const DefaultTag = "ANALYZER"

// ParseLevel validates a level name.
func ParseLevel(s string) (LogLevel, error) {
	switch l := LogLevel(strings.ToLower(strings.TrimSpace(s))); l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelNone:
		return l, nil
	case "":
		return LogLevelInfo, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn, error or none)", s)
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	case LogLevelNone:
		return levelNone
	default:
		return slog.LevelInfo
	}
}

// textHandler writes one line per record:
//
//	2006/01/02 15:04:05 [TAG] LEVEL message key=value ...
type textHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Level
	tag   string
	attrs []slog.Attr
}

// NewHandler returns a handler writing records at or above level to w.
func NewHandler(w io.Writer, level LogLevel, tag string) slog.Handler {
	if tag == "" {
		tag = DefaultTag
	}
	return &textHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level.slogLevel(),
		tag:   tag,
	}
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format("2006/01/02 15:04:05"))
	fmt.Fprintf(&b, " [%s] %s %s", h.tag, r.Level.String(), r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	val := a.Value.Resolve().String()
	if strings.ContainsAny(val, " \t\n\"") {
		val = fmt.Sprintf("%q", val)
	}
	fmt.Fprintf(b, " %s=%s", a.Key, val)
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup is a no-op; the analyzer never groups attributes.
func (h *textHandler) WithGroup(string) slog.Handler {
	return h
}

// SetupLogger installs a handler writing to stderr as the default slog
// logger, and routes the standard log package to stderr as well.
func SetupLogger(level LogLevel) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, level, DefaultTag)))

	log.SetOutput(os.Stderr)
	log.SetFlags(0)
}
