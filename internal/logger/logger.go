package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the process logger. Production writes JSON to stdout, every
// other environment gets the colored console encoder. An empty level picks
// info for production and debug elsewhere.
func New(env, level string) (*zap.Logger, error) {
	lvl, err := parseLevel(env, level)
	if err != nil {
		return nil, err
	}
	return build(env, lvl, zapcore.Lock(os.Stdout)), nil
}

// NewWithDefaults creates a logger from SERVER_ENV and LOG_LEVEL and never fails.
func NewWithDefaults() *zap.Logger {
	env := os.Getenv("SERVER_ENV")
	if env == "" {
		env = "development"
	}

	logger, err := New(env, os.Getenv("LOG_LEVEL"))
	if err != nil {
		logger = build(env, zapcore.InfoLevel, zapcore.Lock(os.Stdout))
		logger.Warn("Invalid LOG_LEVEL, using info", zap.Error(err))
	}

	return logger
}

// ForComponent scopes a logger to one part of the shop (cart, checkout,
// payment, ...).
func ForComponent(base *zap.Logger, component string) *zap.Logger {
	return base.Named(component).With(zap.String("component", component))
}

func build(env string, level zapcore.Level, out zapcore.WriteSyncer) *zap.Logger {
	var encoder zapcore.Encoder
	if isProduction(env) {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "timestamp"
		cfg.MessageKey = "message"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, out, zap.NewAtomicLevelAt(level))
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	)
}

func parseLevel(env, level string) (zapcore.Level, error) {
	if strings.TrimSpace(level) == "" {
		if isProduction(env) {
			return zapcore.InfoLevel, nil
		}
		return zapcore.DebugLevel, nil
	}
	return zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
}

func isProduction(env string) bool {
	return env == "production"
}
