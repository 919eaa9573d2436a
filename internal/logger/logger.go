package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin key/value wrapper around zap's sugared logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a logger for the given mode ("development" or "production").
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch mode {
	case "production":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "development", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log mode %q", mode)
	}
	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: base.Sugar()}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// FromZap wraps an existing zap logger (tests use zaptest/observer).
func FromZap(z *zap.Logger) *Logger {
	return &Logger{sugar: z.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(kv...)}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }

// Desugar exposes the underlying zap logger for libraries that want one.
func (l *Logger) Desugar() *zap.Logger {
	return l.sugar.Desugar()
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
