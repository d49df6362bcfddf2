package logging

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

const defaultBufferLimit = 1000

// Level names a buffered entry's severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Entry is one log line held by a Buffer.
type Entry struct {
	Level   Level
	Message string
	Fields  []interface{}
	ctx     context.Context
}

// Buffer holds log entries while the terminal belongs to the interactive
// feed. It keeps at most limit entries, dropping the oldest.
type Buffer struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

// NewBuffer creates a buffer with the provided capacity (defaults to 1000).
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = defaultBufferLimit
	}
	return &Buffer{
		limit:   limit,
		entries: make([]Entry, 0, limit),
	}
}

func (b *Buffer) add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == b.limit {
		copy(b.entries, b.entries[1:])
		b.entries[len(b.entries)-1] = entry
		return
	}
	b.entries = append(b.entries, entry)
}

// Entries returns a copy of the buffered entries, oldest first.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Flush replays buffered entries into delegate in order and empties the buffer.
func (b *Buffer) Flush(delegate ports.Logger) {
	if delegate == nil {
		return
	}
	b.mu.Lock()
	entries := make([]Entry, len(b.entries))
	copy(entries, b.entries)
	b.entries = b.entries[:0]
	b.mu.Unlock()

	for _, entry := range entries {
		ctx := entry.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		switch entry.Level {
		case LevelDebug:
			delegate.Debug(ctx, entry.Message, entry.Fields...)
		case LevelWarn:
			delegate.Warn(ctx, entry.Message, entry.Fields...)
		case LevelError:
			delegate.Error(ctx, entry.Message, entry.Fields...)
		default:
			delegate.Info(ctx, entry.Message, entry.Fields...)
		}
	}
}

// BufferedLogger implements ports.Logger by writing into a Buffer.
type BufferedLogger struct {
	buffer *Buffer
	fields []interface{}
}

// NewBufferedLogger returns a logger that stores entries in buffer.
func NewBufferedLogger(buffer *Buffer) *BufferedLogger {
	return &BufferedLogger{buffer: buffer}
}

func (l *BufferedLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelDebug, msg, fields...)
}

func (l *BufferedLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelInfo, msg, fields...)
}

func (l *BufferedLogger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelWarn, msg, fields...)
}

func (l *BufferedLogger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, LevelError, msg, fields...)
}

// With returns a child buffered logger with persistent fields.
func (l *BufferedLogger) With(fields ...interface{}) ports.Logger {
	next := append(append([]interface{}{}, l.fields...), fields...)
	return &BufferedLogger{buffer: l.buffer, fields: next}
}

func (l *BufferedLogger) log(ctx context.Context, level Level, msg string, fields ...interface{}) {
	if l == nil || l.buffer == nil {
		return
	}
	l.buffer.add(Entry{
		Level:   level,
		Message: msg,
		Fields:  append(append([]interface{}{}, l.fields...), fields...),
		ctx:     ctx,
	})
}

var _ ports.Logger = (*BufferedLogger)(nil)
