package mqttwire

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	// LogLevelNone disables all logging.
	LogLevelNone
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a level name as used in configuration files.
// Unknown names map to LogLevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug", "DEBUG":
		return LogLevelDebug
	case "warn", "WARN", "warning":
		return LogLevelWarn
	case "error", "ERROR":
		return LogLevelError
	case "none", "NONE", "off":
		return LogLevelNone
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		// above every level zap emits through a Logger
		return zapcore.FatalLevel + 1
	}
}

func logLevelFromZap(l zapcore.Level) LogLevel {
	switch {
	case l <= zapcore.DebugLevel:
		return LogLevelDebug
	case l == zapcore.InfoLevel:
		return LogLevelInfo
	case l == zapcore.WarnLevel:
		return LogLevelWarn
	case l <= zapcore.FatalLevel:
		return LogLevelError
	default:
		return LogLevelNone
	}
}

// LogFields represents key-value pairs for structured logging.
type LogFields map[string]any

// Logger defines the interface for logging.
type Logger interface {
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Warn(msg string, fields LogFields)
	Error(msg string, fields LogFields)

	// WithFields returns a new logger with the given fields added.
	WithFields(fields LogFields) Logger

	Level() LogLevel
	SetLevel(level LogLevel)
}

// NoOpLogger is a logger that does nothing.
type NoOpLogger struct {
	level LogLevel
}

// NewNoOpLogger creates a new no-op logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{level: LogLevelNone}
}

func (n *NoOpLogger) Debug(_ string, _ LogFields)   {}
func (n *NoOpLogger) Info(_ string, _ LogFields)    {}
func (n *NoOpLogger) Warn(_ string, _ LogFields)    {}
func (n *NoOpLogger) Error(_ string, _ LogFields)   {}
func (n *NoOpLogger) WithFields(_ LogFields) Logger { return n }
func (n *NoOpLogger) Level() LogLevel               { return n.level }
func (n *NoOpLogger) SetLevel(level LogLevel)       { n.level = level }

// ZapLogger adapts a *zap.Logger to Logger. Loggers derived with WithFields
// share the level of their parent.
type ZapLogger struct {
	logger *zap.Logger
	level  zap.AtomicLevel
}

// NewZapLogger wraps an existing zap logger. Its core still filters on its
// own level; SetLevel can only raise the effective threshold.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	for _, lvl := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		if l.Core().Enabled(lvl) {
			level.SetLevel(lvl)
			break
		}
	}
	return &ZapLogger{logger: l, level: level}
}

// NewProductionLogger builds a JSON logger with ISO8601 timestamps that
// writes to stderr at the given level.
func NewProductionLogger(level LogLevel) (*ZapLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	atomic := zap.NewAtomicLevelAt(level.zapLevel())

	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	cfg.Level = atomic
	cfg.EncoderConfig = encoderCfg

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{logger: l, level: atomic}, nil
}

func (z *ZapLogger) Debug(msg string, fields LogFields) { z.log(zapcore.DebugLevel, msg, fields) }
func (z *ZapLogger) Info(msg string, fields LogFields)  { z.log(zapcore.InfoLevel, msg, fields) }
func (z *ZapLogger) Warn(msg string, fields LogFields)  { z.log(zapcore.WarnLevel, msg, fields) }
func (z *ZapLogger) Error(msg string, fields LogFields) { z.log(zapcore.ErrorLevel, msg, fields) }

// WithFields returns a new logger with the given fields added.
func (z *ZapLogger) WithFields(fields LogFields) Logger {
	return &ZapLogger{logger: z.logger.With(zapFields(fields)...), level: z.level}
}

// Level returns the current log level.
func (z *ZapLogger) Level() LogLevel { return logLevelFromZap(z.level.Level()) }

// SetLevel sets the log level.
func (z *ZapLogger) SetLevel(level LogLevel) { z.level.SetLevel(level.zapLevel()) }

// Sync flushes buffered log entries.
func (z *ZapLogger) Sync() error { return z.logger.Sync() }

// Zap returns the underlying zap logger.
func (z *ZapLogger) Zap() *zap.Logger { return z.logger }

func (z *ZapLogger) log(level zapcore.Level, msg string, fields LogFields) {
	if !z.level.Enabled(level) {
		return
	}
	if ce := z.logger.Check(level, msg); ce != nil {
		ce.Write(zapFields(fields)...)
	}
}

func zapFields(fields LogFields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}

// Standard field names.
const (
	LogFieldClientID     = "client_id"
	LogFieldConnectionID = "connection_id"
	LogFieldPacketType   = "packet_type"
	LogFieldPacketID     = "packet_id"
	LogFieldReasonCode   = "reason_code"
	LogFieldAuthState    = "auth_state"
	LogFieldAuthMethod   = "auth_method"
	LogFieldError        = "error"
	LogFieldRemoteAddr   = "remote_addr"
	LogFieldDuration     = "duration"
	LogFieldBytes        = "bytes"
	LogFieldKeepAlive    = "keep_alive"
)
