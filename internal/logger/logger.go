// Package logger provides the leveled, structured logger used
// throughout this module: five severities (TRACE through ERROR, plus
// an OFF sentinel), a JSON or line-oriented text wire format, and
// optional rotation to a file via lumberjack.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/gotrace/ptimage/cfg"
	"github.com/gotrace/ptimage/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Custom severity levels. TRACE sits below slog's built-in Debug so
// the finest-grained per-byte-read logging has somewhere to live
// without colliding with Go's own debug conventions; OFF sits above
// every real severity so setting it silences the logger entirely.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(math.MaxInt)
)

const defaultAsyncBufferSize = 1024

// loggerFactory holds the state needed to (re)build defaultLogger:
// where it writes, in what format, at what severity, and the rotation
// parameters to apply if and when it writes to a file.
type loggerFactory struct {
	format string
	level  string

	file      *os.File
	sysWriter io.Writer

	logRotateConfig config.LogRotateConfig
}

var (
	programLevel         = new(slog.LevelVar)
	defaultLoggerFactory = &loggerFactory{
		format:          "json",
		level:           config.INFO,
		logRotateConfig: config.DefaultLogRotateConfig(),
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))
)

func init() {
	setLoggingLevel(defaultLoggerFactory.level, programLevel)
}

// createJsonOrTextHandler builds a slog.Handler that writes to w,
// filters by programLevel, and prefixes every message with prefix.
// The wire shape intentionally does not match slog's own defaults:
// the level key is renamed "severity" with this package's own TRACE/
// WARNING spellings, the message key is renamed "message", and in
// JSON mode the timestamp is a {"seconds","nanos"} pair rather than a
// single RFC3339 string, matching the structured-log convention the
// rest of this module's ambient stack expects.
func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, programLevel *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       programLevel,
		ReplaceAttr: replaceAttrs(f.format),
	}

	var base slog.Handler
	if f.format == "text" {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}
	return &prefixHandler{Handler: base, prefix: prefix}
}

func replaceAttrs(format string) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.LevelKey:
			level, _ := a.Value.Any().(slog.Level)
			return slog.Attr{Key: "severity", Value: slog.StringValue(severityName(level))}
		case slog.MessageKey:
			return slog.Attr{Key: "message", Value: a.Value}
		case slog.TimeKey:
			t := a.Value.Time()
			if format == "text" {
				return slog.Attr{Key: "time", Value: slog.StringValue(t.Format("2006/01/02 15:04:05.000000"))}
			}
			return slog.Attr{
				Key: "timestamp",
				Value: slog.GroupValue(
					slog.Int64("seconds", t.Unix()),
					slog.Int64("nanos", int64(t.Nanosecond())),
				),
			}
		}
		return a
	}
}

func severityName(level slog.Level) string {
	switch {
	case level < LevelDebug:
		return "TRACE"
	case level < LevelInfo:
		return "DEBUG"
	case level < LevelWarn:
		return "INFO"
	case level < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// prefixHandler prepends a fixed string to every record's message
// before delegating, so a package's log lines can be tagged without
// each call site repeating the tag.
type prefixHandler struct {
	slog.Handler
	prefix string
}

func (h *prefixHandler) Handle(ctx context.Context, r slog.Record) error {
	r.Message = h.prefix + r.Message
	return h.Handler.Handle(ctx, r)
}

func (h *prefixHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &prefixHandler{Handler: h.Handler.WithAttrs(attrs), prefix: h.prefix}
}

func (h *prefixHandler) WithGroup(name string) slog.Handler {
	return &prefixHandler{Handler: h.Handler.WithGroup(name), prefix: h.prefix}
}

func setLoggingLevel(level string, pl *slog.LevelVar) {
	switch level {
	case config.TRACE:
		pl.Set(LevelTrace)
	case config.DEBUG:
		pl.Set(LevelDebug)
	case config.WARNING:
		pl.Set(LevelWarn)
	case config.ERROR:
		pl.Set(LevelError)
	case config.OFF:
		pl.Set(LevelOff)
	default:
		pl.Set(LevelInfo)
	}
}

// SetLoggingLevel updates the default logger's severity threshold.
func SetLoggingLevel(level string) {
	defaultLoggerFactory.level = level
	setLoggingLevel(level, programLevel)
}

// SetLogFormat switches the default logger between "text" and "json"
// (the default), rebuilding it against the same destination and level.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format

	var w io.Writer = os.Stderr
	if defaultLoggerFactory.sysWriter != nil {
		w = defaultLoggerFactory.sysWriter
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
}

// InitLogFile redirects the default logger to a rotating file at
// newLogConfig.FilePath, at newLogConfig.Severity and newLogConfig.Format,
// using legacyLogConfig's rotation parameters (kept as a separate
// argument since rotation is lumberjack's concern, not the logging
// destination's).
func InitLogFile(legacyLogConfig config.LogConfig, newLogConfig cfg.LoggingConfig) error {
	filePath := string(newLogConfig.FilePath)

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logger: open log file %q: %w", filePath, err)
	}

	defaultLoggerFactory = &loggerFactory{
		format:          newLogConfig.Format,
		level:           string(newLogConfig.Severity),
		file:            f,
		logRotateConfig: legacyLogConfig.LogRotateConfig,
	}

	rotated := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    legacyLogConfig.LogRotateConfig.MaxFileSizeMB,
		MaxBackups: legacyLogConfig.LogRotateConfig.BackupFileCount,
		Compress:   legacyLogConfig.LogRotateConfig.Compress,
	}
	async := NewAsyncLogger(rotated, defaultAsyncBufferSize)

	setLoggingLevel(defaultLoggerFactory.level, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(async, programLevel, ""))
	return nil
}

func logf(level slog.Level, format string, args ...any) {
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

// Tracef logs at TRACE, the finest severity, typically per-byte or
// per-entry image operations.
func Tracef(format string, args ...any) { logf(LevelTrace, format, args...) }

// Debugf logs at DEBUG.
func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }

// Infof logs at INFO.
func Infof(format string, args ...any) { logf(LevelInfo, format, args...) }

// Warnf logs at WARNING.
func Warnf(format string, args ...any) { logf(LevelWarn, format, args...) }

// Errorf logs at ERROR.
func Errorf(format string, args ...any) { logf(LevelError, format, args...) }
