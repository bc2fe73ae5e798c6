package telemetry

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stdout, zapcore.InfoLevel)
	level  = zapcore.InfoLevel
)

func newLogger(w io.Writer, lvl zapcore.Level) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), lvl)
	return zap.New(core)
}

// Configure sets the minimum level ("debug", "info", "warn", "error").
func Configure(rawLevel string) {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(rawLevel)))); err != nil {
		lvl = zapcore.InfoLevel
	}
	mu.Lock()
	defer mu.Unlock()
	level = lvl
	logger = newLogger(os.Stdout, lvl)
}

// SetOutput redirects log lines to w and returns a func restoring stdout.
func SetOutput(w io.Writer) func() {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, level)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		logger = newLogger(os.Stdout, level)
	}
}

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	write(zapcore.DebugLevel, msg, fields)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write(zapcore.InfoLevel, msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write(zapcore.WarnLevel, msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write(zapcore.ErrorLevel, msg, fields)
}

func write(lvl zapcore.Level, msg string, fields map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()

	ce := l.Check(lvl, msg)
	if ce == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		if err, ok := v.(error); ok {
			zf = append(zf, zap.String(k, err.Error()))
			continue
		}
		zf = append(zf, zap.Any(k, v))
	}
	ce.Write(zf...)
}
