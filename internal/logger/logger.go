// Package logger is a thin zap wrapper that carries request-scoped fields
// (request id, owner id) from the context into every entry.
package logger

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	OwnerIDKey   contextKey = "owner_id"
)

var (
	mu           sync.RWMutex
	global       = zap.NewNop()
	dynamicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init replaces the global logger. asJSON selects the JSON encoder, otherwise the
// console encoder is used (local runs).
func Init(levelStr string, asJSON bool) {
	dynamicLevel.SetLevel(parseLevel(levelStr))

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if asJSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), dynamicLevel)
	Set(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
}

// Set installs l as the global logger. Tests use it with zaptest/observer cores.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = l
}

// L returns the global logger without context fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

func Sync() error {
	return L().Sync()
}

// WithRequestID stores the request id in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithOwnerID stores the authenticated owner in ctx.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, OwnerIDKey, ownerID)
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	L().Debug(msg, append(fieldsFromContext(ctx), fields...)...)
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	L().Info(msg, append(fieldsFromContext(ctx), fields...)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	L().Warn(msg, append(fieldsFromContext(ctx), fields...)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	L().Error(msg, append(fieldsFromContext(ctx), fields...)...)
}

func fieldsFromContext(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if v, ok := ctx.Value(RequestIDKey).(string); ok && v != "" {
		fields = append(fields, zap.String(string(RequestIDKey), v))
	}
	if v, ok := ctx.Value(OwnerIDKey).(string); ok && v != "" {
		fields = append(fields, zap.String(string(OwnerIDKey), v))
	}
	return fields
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
