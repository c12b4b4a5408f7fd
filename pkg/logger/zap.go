package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap.Logger to the Logger interface
type ZapLogger struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// NewZapLogger creates a logger at the given level. Format "json" selects the
// production encoder; anything else uses the console encoder.
func NewZapLogger(level, format string) (*ZapLogger, error) {
	atom := zap.NewAtomicLevelAt(parseLevel(level))

	var cfg zap.Config
	if strings.EqualFold(format, "json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = atom
	cfg.DisableStacktrace = true

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return &ZapLogger{base: base, level: atom}, nil
}

// NewFromZap wraps an existing zap logger. Used by tests with zaptest/observer.
func NewFromZap(base *zap.Logger) *ZapLogger {
	atom := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return &ZapLogger{base: base.WithOptions(zap.IncreaseLevel(atom)), level: atom}
}

// NewDefaultLogger returns a console logger at LOG_LEVEL, falling back to a
// no-op logger when zap cannot be built.
func NewDefaultLogger() Logger {
	l, err := NewZapLogger(GetLogLevel(), "text")
	if err != nil {
		return NoOp{}
	}
	return l
}

// Debug logs a debug message
func (l *ZapLogger) Debug(msg string, fields ...interface{}) {
	l.base.Debug(msg, toZapFields(fields)...)
}

// Info logs an info message
func (l *ZapLogger) Info(msg string, fields ...interface{}) {
	l.base.Info(msg, toZapFields(fields)...)
}

// Warn logs a warning message
func (l *ZapLogger) Warn(msg string, fields ...interface{}) {
	l.base.Warn(msg, toZapFields(fields)...)
}

// Error logs an error message
func (l *ZapLogger) Error(msg string, fields ...interface{}) {
	l.base.Error(msg, toZapFields(fields)...)
}

// SetLevel sets the logging level
func (l *ZapLogger) SetLevel(level string) {
	l.level.SetLevel(parseLevel(level))
}

// WithField returns a logger with an additional field
func (l *ZapLogger) WithField(key string, value interface{}) Logger {
	return &ZapLogger{base: l.base.With(zap.Any(key, value)), level: l.level}
}

// WithFields returns a logger with additional fields
func (l *ZapLogger) WithFields(fields map[string]interface{}) Logger {
	return &ZapLogger{base: l.base.With(mapFields(fields)...), level: l.level}
}

// With returns a logger with additional fields
func (l *ZapLogger) With(fields ...Field) Logger {
	zf := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		zf = append(zf, zap.Any(f.Key, f.Value))
	}
	return &ZapLogger{base: l.base.With(zf...), level: l.level}
}

// Sync flushes buffered entries
func (l *ZapLogger) Sync() error {
	return l.base.Sync()
}

// toZapFields accepts Field values, maps, zap fields, and key/value pairs.
func toZapFields(args []interface{}) []zap.Field {
	if len(args) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case Field:
			out = append(out, zap.Any(v.Key, v.Value))
		case zap.Field:
			out = append(out, v)
		case map[string]interface{}:
			out = append(out, mapFields(v)...)
		case error:
			out = append(out, zap.Error(v))
		case string:
			if i+1 < len(args) {
				out = append(out, zap.Any(v, args[i+1]))
				i++
			} else {
				out = append(out, zap.String("extra", v))
			}
		default:
			out = append(out, zap.Any(fmt.Sprintf("arg%d", i), v))
		}
	}
	return out
}

func mapFields(fields map[string]interface{}) []zap.Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetLogLevel gets the current log level from environment
func GetLogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "INFO"
	}
	return level
}

// NoOp discards all entries
type NoOp struct{}

func (NoOp) Debug(msg string, fields ...interface{}) {}

func (NoOp) Info(msg string, fields ...interface{}) {}

func (NoOp) Warn(msg string, fields ...interface{}) {}

func (NoOp) Error(msg string, fields ...interface{}) {}

func (NoOp) SetLevel(level string) {}

func (n NoOp) WithField(key string, value interface{}) Logger { return n }

func (n NoOp) WithFields(fields map[string]interface{}) Logger { return n }

func (n NoOp) With(fields ...Field) Logger { return n }
