package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	Debug bool
	// Level is one of debug, info, warning, error; Debug forces debug.
	Level string
	// OutputFile adds a log file next to stderr when non-empty.
	OutputFile string
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func NewLogger(cfg *LoggerConfig, options ...zap.Option) (*zap.Logger, error) {
	mergedOptions := []zap.Option{
		zap.WithCaller(true),
	}
	mergedOptions = append(mergedOptions, options...)

	c := zap.NewProductionConfig()
	c.EncoderConfig = zap.NewProductionEncoderConfig()
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Debug {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		c.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	}

	if cfg.OutputFile != "" {
		c.OutputPaths = append(c.OutputPaths, cfg.OutputFile)
		c.ErrorOutputPaths = append(c.ErrorOutputPaths, cfg.OutputFile)
	}

	return c.Build(mergedOptions...)
}
