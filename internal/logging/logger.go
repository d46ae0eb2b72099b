package logging

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the process logger.
type Config struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json console"`
}

type ctxKey struct{}

var defaultLogger = zap.NewNop()

// New builds a zap logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// SetDefault replaces the logger used when a context carries none.
func SetDefault(l *zap.Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// WithLogger attaches l to ctx.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// WithRequestID attaches a child of the current logger tagged with the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(zap.String("correlation_id", requestID)))
}

// FromContext returns the logger carried by ctx, or the default logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
			return l
		}
	}
	return defaultLogger
}

func Debugf(ctx context.Context, tpl string, args ...any) {
	FromContext(ctx).Sugar().Debugf(tpl, args...)
}

func Infof(ctx context.Context, tpl string, args ...any) {
	FromContext(ctx).Sugar().Infof(tpl, args...)
}

func Warnf(ctx context.Context, tpl string, args ...any) {
	FromContext(ctx).Sugar().Warnf(tpl, args...)
}

func Errorf(ctx context.Context, tpl string, args ...any) {
	FromContext(ctx).Sugar().Errorf(tpl, args...)
}
