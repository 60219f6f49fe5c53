package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "datacollector-agent"

// Logger wraps zap. zap carries one caller skip for the wrapper methods; base
// is the same logger without it, for code that logs through zap directly.
type Logger struct {
	zap  *zap.Logger
	base *zap.Logger
}

func newLogger(base *zap.Logger) *Logger {
	return &Logger{
		zap:  base.WithOptions(zap.AddCallerSkip(1)),
		base: base,
	}
}

func NewLogger(logLevel string) (*Logger, error) {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return nil, err
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.StacktraceKey = "stacktrace"
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.InitialFields = map[string]any{"service": serviceName}

	zapLogger, err := config.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return newLogger(zapLogger), nil
}

// NewNop returns a Logger that discards everything; used by tests and the
// send command before configuration is loaded.
func NewNop() *Logger {
	return newLogger(zap.NewNop())
}

func parseLogLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, fields...)
}

func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	l.zap.Fatal(msg, fields...)
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return newLogger(l.base.With(fields...))
}

func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// GetZap returns the underlying logger for packages that take a *zap.Logger.
// It reports callers as zap itself would.
func (l *Logger) GetZap() *zap.Logger {
	return l.base
}
