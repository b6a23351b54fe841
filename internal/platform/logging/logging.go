// Package logging builds the zap loggers shared by every service binary.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger at the given level. Unknown levels
// fall back to info.
func New(level string) (*zap.Logger, error) {
	return build(level, "json")
}

// NewForEnv picks a console encoder for local development and JSON everywhere else.
func NewForEnv(level, env string) (*zap.Logger, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local":
		return build(level, "console")
	default:
		return build(level, "json")
	}
}

func build(level, encoding string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(strings.ToLower(strings.TrimSpace(level))); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = encoding
	cfg.EncoderConfig.TimeKey = "ts"
	if encoding == "console" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build()
}
