// Package observability provides the quiz hub's structured logging and
// Prometheus metrics.
package observability

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/quizhub/internal/config"
)

// Logging is a process logger whose level can be changed at runtime.
type Logging struct {
	Logger *zap.Logger
	level  zap.AtomicLevel
}

// NewLogging builds the process logger. Every entry carries fields.
//
// Precondition: cfg must pass config validation.
// Postcondition: Returns a Logging whose level starts at cfg.Level, or an
// error if the level or format is unknown.
func NewLogging(cfg config.LoggingConfig, fields ...zap.Field) (*Logging, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = level
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	// Broadcast fan-out logs per recipient at debug; sampling would hide drops.
	zapCfg.Sampling = nil

	logger, err := zapCfg.Build(zap.Fields(fields...))
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return &Logging{Logger: logger, level: level}, nil
}

// NewLogger is NewLogging for callers that never change the level.
func NewLogger(cfg config.LoggingConfig, fields ...zap.Field) (*zap.Logger, error) {
	l, err := NewLogging(cfg, fields...)
	if err != nil {
		return nil, err
	}
	return l.Logger, nil
}

// Level reports the current minimum level.
func (l *Logging) Level() zapcore.Level {
	return l.level.Level()
}

// LevelHandler serves the level as JSON: GET reads it, PUT {"level":"debug"}
// changes it.
func (l *Logging) LevelHandler() http.Handler {
	return l.level
}

// Sync flushes buffered entries.
func (l *Logging) Sync() {
	_ = l.Logger.Sync()
}
