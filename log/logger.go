// Package log provides structured logging with staging context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for the staging core (structured fields)
//   - SugaredLogger: Printf-style logging for CLI surfaces
//
// Loggers never reach for process-global state. The entry point builds the
// output sinks (stderr, a DailyFile, a test buffer), hands them to New, and
// owns their lifecycle.
package log

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Meta identifies the staging operation every entry belongs to.
type Meta struct {
	// StagingID is a unique identifier for one staging run.
	StagingID string
	// Source is the path being staged. Optional.
	Source string
}

// Logger provides structured logging with staging context.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a logger writing JSON lines at debug level and above to every
// writer in ws. With no writers, output goes to os.Stderr.
func New(meta Meta, ws ...io.Writer) *Logger {
	return newLogger(meta, zapcore.DebugLevel, ws)
}

// NewLevel is New with a minimum level ("debug", "info", "warn", "error").
// An empty level means info.
func NewLevel(meta Meta, level string, ws ...io.Writer) (*Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}
	return newLogger(meta, lvl, ws), nil
}

func newLogger(meta Meta, level zapcore.Level, ws []io.Writer) *Logger {
	if len(ws) == 0 {
		ws = []io.Writer{os.Stderr}
	}
	syncers := make([]zapcore.WriteSyncer, 0, len(ws))
	for _, w := range ws {
		syncers = append(syncers, zapcore.AddSync(w))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.NewMultiWriteSyncer(syncers...),
		level,
	)

	return &Logger{zap: zap.New(core).With(contextFields(meta)...)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// With returns a logger carrying meta in addition to the existing context.
func (l *Logger) With(meta Meta) *Logger {
	return &Logger{zap: l.zap.With(contextFields(meta)...)}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

func contextFields(meta Meta) []zap.Field {
	var fields []zap.Field
	if meta.StagingID != "" {
		fields = append(fields, zap.String("staging_id", meta.StagingID))
	}
	if meta.Source != "" {
		fields = append(fields, zap.String("source", meta.Source))
	}
	return fields
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
