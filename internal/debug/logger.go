// Package debug provides debug logging functionality using log/slog
package debug

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	slogseq "github.com/sokkalf/slog-seq"
)

var (
	// logger is the global debug logger instance
	logger *slog.Logger
	// enabled indicates if debug logging is enabled
	enabled bool
	// closeSeq flushes the Seq handler when one is attached
	closeSeq func()
	// mu protects the logger and enabled flag
	mu sync.RWMutex
)

func init() {
	Init(false)
}

// Init initializes the debug logger
// If enable is true, debug logs will be written to os.Stderr
// If enable is false, debug logs will be silently discarded
func Init(enable bool) {
	mu.Lock()
	defer mu.Unlock()

	enabled = enable
	closeSeq = nil

	level := slog.LevelDebug
	if !enable {
		// Set to a level higher than any actual level
		level = slog.LevelError + 1
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
}

// InitWithSeq initializes the debug logger with an additional Seq sink.
// If the Seq endpoint is unreachable the console handler is used alone.
func InitWithSeq(enable bool, endpoint string) {
	Init(enable)
	if !enable || endpoint == "" {
		return
	}

	_, seqHandler := slogseq.NewLogger(
		endpoint,
		slogseq.WithBatchSize(1),
		slogseq.WithFlushInterval(500*time.Millisecond),
		slogseq.WithHandlerOptions(&slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if seqHandler == nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	console := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger = slog.New(&multiHandler{handlers: []slog.Handler{console, seqHandler}})
	closeSeq = func() { seqHandler.Close() }
}

// Close flushes any attached Seq sink.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if closeSeq != nil {
		closeSeq()
		closeSeq = nil
	}
}

// Enabled returns whether debug logging is enabled
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Error(msg, args...)
}

// With returns a logger with the given attributes
func With(args ...any) *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	return l.With(args...)
}

// Logger returns the underlying slog.Logger instance
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// multiHandler forwards log records to multiple handlers
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
