package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel of the logger
type LogLevel uint8

const (
	// LogLevelNothing disables
	LogLevelNothing LogLevel = iota
	// LogLevelError enables err logs
	LogLevelError
	// LogLevelInfo enables info logs (e.g. stream restarts)
	LogLevelInfo
	// LogLevelDebug enables debug logs (e.g. dropped packets)
	LogLevelDebug
)

const logEnv = "RXLINK_LOG_LEVEL"

// A Logger logs.
type Logger interface {
	SetLogLevel(LogLevel)
	WithPrefix(prefix string) Logger
	Debug() bool

	Errorf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// DefaultLogger is used by rxlink for logging.
var DefaultLogger Logger

type zapLogger struct {
	level *zap.AtomicLevel
	sugar *zap.SugaredLogger
}

var _ Logger = &zapLogger{}

// NewLogger creates a logger writing console formatted lines to w
func NewLogger(w zapcore.WriteSyncer, level LogLevel) Logger {
	atom := zap.NewAtomicLevel()
	encoderConf := zap.NewDevelopmentEncoderConfig()
	encoderConf.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConf), w, atom)
	l := &zapLogger{
		level: &atom,
		sugar: zap.New(core).Sugar(),
	}
	l.SetLogLevel(level)
	return l
}

// SetLogLevel sets the log level. It applies to all loggers derived with WithPrefix.
func (l *zapLogger) SetLogLevel(level LogLevel) {
	switch level {
	case LogLevelDebug:
		l.level.SetLevel(zapcore.DebugLevel)
	case LogLevelInfo:
		l.level.SetLevel(zapcore.InfoLevel)
	case LogLevelError:
		l.level.SetLevel(zapcore.ErrorLevel)
	default:
		l.level.SetLevel(zapcore.FatalLevel)
	}
}

// WithPrefix adds a prefix
func (l *zapLogger) WithPrefix(prefix string) Logger {
	return &zapLogger{
		level: l.level,
		sugar: l.sugar.Named(prefix),
	}
}

// Debug returns true if the log level is LogLevelDebug
func (l *zapLogger) Debug() bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

func (l *zapLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *zapLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *zapLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// ParseLogLevel parses the names used in config files and in the environment
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "", "nothing", "none":
		return LogLevelNothing, nil
	case "error":
		return LogLevelError, nil
	case "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	}
	return LogLevelNothing, fmt.Errorf("invalid log level %q", s)
}

func init() {
	DefaultLogger = NewLogger(zapcore.Lock(os.Stderr), readLoggingEnv())
}

func readLoggingEnv() LogLevel {
	level, err := ParseLogLevel(os.Getenv(logEnv))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid %s: %s\n", logEnv, err)
		return LogLevelNothing
	}
	return level
}
