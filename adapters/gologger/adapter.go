// Package gologger backs the go-logger contracts with zerolog.
package gologger

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-callback-relay/core"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Logger is a glog.Logger writing structured zerolog events. Arguments are
// read as key/value pairs.
type Logger struct {
	zl zerolog.Logger
}

// New builds the process logger from cfg. A nil writer logs to stderr.
func New(cfg core.LogConfig, w io.Writer) (*Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	w = zerolog.SyncWriter(w)
	level := zerolog.InfoLevel
	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("gologger: invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", FormatJSON:
	case FormatConsole:
		w = zerolog.ConsoleWriter{Out: w}
	default:
		return nil, fmt.Errorf("gologger: unsupported log format %q", cfg.Format)
	}
	return FromZerolog(zerolog.New(w).Level(level).With().Timestamp().Logger()), nil
}

func FromZerolog(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

func (l *Logger) Trace(msg string, args ...any) { l.emit(l.zl.Trace(), msg, args) }
func (l *Logger) Debug(msg string, args ...any) { l.emit(l.zl.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.emit(l.zl.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(l.zl.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.emit(l.zl.Error(), msg, args) }

// Fatal logs at fatal level without exiting; the caller owns shutdown.
func (l *Logger) Fatal(msg string, args ...any) {
	l.emit(l.zl.WithLevel(zerolog.FatalLevel), msg, args)
}

// WithContext tags events with the active trace and span ids, if any.
func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	span := trace.SpanContextFromContext(ctx)
	if !span.IsValid() {
		return l
	}
	return &Logger{zl: l.zl.With().
		Str("trace_id", span.TraceID().String()).
		Str("span_id", span.SpanID().String()).
		Logger()}
}

func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	return &Logger{zl: l.zl.With().Fields(maps.Clone(fields)).Logger()}
}

func (l *Logger) emit(event *zerolog.Event, msg string, args []any) {
	if event == nil {
		return
	}
	for idx := 0; idx < len(args); idx += 2 {
		key := fmt.Sprint(args[idx])
		if idx+1 >= len(args) {
			event = event.Interface("!BADKEY", args[idx])
			break
		}
		switch value := args[idx+1].(type) {
		case error:
			event = event.AnErr(key, value)
		default:
			event = event.Interface(key, value)
		}
	}
	event.Msg(msg)
}

// Provider hands out loggers tagged with the requesting component.
type Provider struct {
	root *Logger
}

func NewProvider(root *Logger) *Provider {
	return &Provider{root: root}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	if p == nil || p.root == nil {
		return glog.Nop()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return p.root
	}
	return &Logger{zl: p.root.zl.With().Str("component", name).Logger()}
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)
