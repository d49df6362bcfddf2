package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	cblog "github.com/charmbracelet/log"
	"github.com/rs/zerolog"

	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// Format selects the output encoding.
type Format string

const (
	// FormatText renders human readable lines through charmbracelet/log.
	FormatText Format = "text"
	// FormatJSON renders one JSON object per line through zerolog.
	FormatJSON Format = "json"
)

// Options configures the logger adapter.
type Options struct {
	Writer       io.Writer
	Level        string
	Format       Format
	TimeFormat   string
	ReportCaller bool
	Layer        string
	Component    string
	Fields       map[string]interface{}
}

// backend is the encoder behind Logger.
type backend interface {
	write(level cblog.Level, msg string, fields []interface{})
}

// Logger implements ports.Logger on top of charmbracelet/log or zerolog.
type Logger struct {
	out    backend
	fields []interface{}
	layer  string
}

// New creates a Logger adapter with the supplied options.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	level := cblog.InfoLevel
	if opts.Level != "" {
		parsed, err := cblog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	var out backend
	switch opts.Format {
	case "", FormatText:
		out = &charmBackend{logger: cblog.NewWithOptions(writer, cblog.Options{
			Level:           level,
			TimeFormat:      opts.TimeFormat,
			ReportTimestamp: true,
			ReportCaller:    opts.ReportCaller,
			Fields:          mapToFields(opts.Fields),
		})}
	case FormatJSON:
		out = newZerologBackend(writer, level, opts.Fields)
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}

	fields := make([]interface{}, 0, 6)
	if opts.Component != "" {
		fields = append(fields, "component", opts.Component)
	}
	layer := opts.Layer
	if layer == "" {
		layer = "infrastructure"
	}

	return &Logger{
		out:    out,
		fields: fields,
		layer:  layer,
	}, nil
}

// Debug emits a debug log entry.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.DebugLevel, msg, fields...)
}

// Info emits an info log entry.
func (l *Logger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.InfoLevel, msg, fields...)
}

// Warn emits a warning log entry.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.WarnLevel, msg, fields...)
}

// Error emits an error log entry.
func (l *Logger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.ErrorLevel, msg, fields...)
}

// With derives a new logger with persistent fields.
func (l *Logger) With(fields ...interface{}) ports.Logger {
	if l == nil {
		return &NoOpLogger{}
	}
	next := make([]interface{}, len(l.fields))
	copy(next, l.fields)
	next = append(next, fields...)
	return &Logger{
		out:    l.out,
		fields: next,
		layer:  l.layer,
	}
}

func (l *Logger) log(ctx context.Context, level cblog.Level, msg string, fields ...interface{}) {
	if l == nil || l.out == nil {
		return
	}
	extras := []interface{}{"layer", l.layer}
	if id := ports.CorrelationID(ctx); id != "" {
		extras = append(extras, "correlation_id", id)
	}
	l.out.write(level, msg, mergeFields(l.fields, fields, extras))
}

type charmBackend struct {
	logger *cblog.Logger
}

func (b *charmBackend) write(level cblog.Level, msg string, fields []interface{}) {
	switch level {
	case cblog.DebugLevel:
		b.logger.Debug(msg, fields...)
	case cblog.WarnLevel:
		b.logger.Warn(msg, fields...)
	case cblog.ErrorLevel:
		b.logger.Error(msg, fields...)
	default:
		b.logger.Info(msg, fields...)
	}
}

type zerologBackend struct {
	logger zerolog.Logger
}

// newZerologBackend ignores timeFormat; zerolog timestamps follow
// zerolog.TimeFieldFormat, which is process-wide.
func newZerologBackend(w io.Writer, level cblog.Level, static map[string]interface{}) *zerologBackend {
	ctx := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp()
	for _, key := range sortedKeys(static) {
		ctx = ctx.Interface(key, static[key])
	}
	return &zerologBackend{logger: ctx.Logger()}
}

func (b *zerologBackend) write(level cblog.Level, msg string, fields []interface{}) {
	var evt *zerolog.Event
	switch level {
	case cblog.DebugLevel:
		evt = b.logger.Debug()
	case cblog.WarnLevel:
		evt = b.logger.Warn()
	case cblog.ErrorLevel:
		evt = b.logger.Error()
	default:
		evt = b.logger.Info()
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key, _ := fields[i].(string)
		switch v := fields[i+1].(type) {
		case error:
			evt = evt.AnErr(key, v)
		case time.Duration:
			evt = evt.Dur(key, v)
		default:
			evt = evt.Interface(key, v)
		}
	}
	evt.Msg(msg)
}

func toZerologLevel(level cblog.Level) zerolog.Level {
	switch level {
	case cblog.DebugLevel:
		return zerolog.DebugLevel
	case cblog.WarnLevel:
		return zerolog.WarnLevel
	case cblog.ErrorLevel:
		return zerolog.ErrorLevel
	case cblog.FatalLevel:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func sortedKeys(input map[string]interface{}) []string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mapToFields(input map[string]interface{}) []interface{} {
	if len(input) == 0 {
		return nil
	}
	res := make([]interface{}, 0, len(input)*2)
	for _, k := range sortedKeys(input) {
		res = append(res, k, input[k])
	}
	return res
}

// mergeFields flattens key/value groups into one list. A repeated key keeps
// its first position and takes the last value; non-string keys, empty keys
// and empty string values are skipped.
func mergeFields(groups ...[]interface{}) []interface{} {
	index := make(map[string]int)
	out := make([]interface{}, 0, 16)
	for _, group := range groups {
		for i := 0; i+1 < len(group); i += 2 {
			key, ok := group[i].(string)
			if !ok || key == "" {
				continue
			}
			value := group[i+1]
			if s, isString := value.(string); isString && s == "" {
				continue
			}
			if at, seen := index[key]; seen {
				out[at+1] = value
				continue
			}
			index[key] = len(out)
			out = append(out, key, value)
		}
	}
	return out
}

var _ ports.Logger = (*Logger)(nil)
