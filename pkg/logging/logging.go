// Package logging builds the zap loggers used by the CLI and server
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // "json" or "console"

	// OutputPath defaults to stderr
	OutputPath string
}

// New creates a zap logger. An unknown level falls back to info.
func New(cfg Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.DisableStacktrace = true
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zc.Level = level

	if cfg.OutputPath != "" {
		zc.OutputPaths = []string{cfg.OutputPath}
	}

	return zc.Build()
}

// Sample returns the fields identifying a centerline in log lines
func Sample(name string, points int) []zap.Field {
	return []zap.Field{
		zap.String("centerline", name),
		zap.Int("points", points),
	}
}
