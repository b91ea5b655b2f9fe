package logging

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*zap.Logger
}

// Options configures the process logger. File is optional; when set, logs
// are written to stderr and to a rotating file.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

func NewLogger(level string) (*Logger, error) {
	return New(Options{Level: level})
}

func New(opts Options) (*Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(opts.Level)); err != nil {
		return nil, err
	}
	atom := zap.NewAtomicLevelAt(zapLevel)

	if opts.File == "" {
		config := zap.NewProductionConfig()
		config.Level = atom
		logger, err := config.Build()
		if err != nil {
			return nil, err
		}
		return &Logger{logger}, nil
	}

	if opts.MaxSizeMB == 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups == 0 {
		opts.MaxBackups = 3
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(os.Stderr), atom),
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), atom),
	)
	return &Logger{zap.New(core, zap.AddCaller())}, nil
}

// Nop returns a logger that discards everything; used by tests and by
// commands that print to the terminal themselves.
func Nop() *Logger {
	return &Logger{zap.NewNop()}
}

// WithCycle tags every entry with the reconciliation cycle it belongs to.
func (l *Logger) WithCycle(cycleID string) *zap.Logger {
	if cycleID == "" {
		return l.Logger
	}
	return l.With(zap.String("cycle_id", cycleID))
}

type ctxKey struct{}

// ContextWithRequestID stores a request id for WithRequestID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestIDFrom returns the request id stored in ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (l *Logger) WithRequestID(ctx context.Context) *zap.Logger {
	if id := RequestIDFrom(ctx); id != "" {
		return l.With(zap.String("request_id", id))
	}
	return l.Logger
}
