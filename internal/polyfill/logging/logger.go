// Package logging builds the service's zap.Logger, grounded on the
// teacher's internal/common/logger: a console core plus an optional
// rotating file core, selected by the configured level.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a zap.Logger writing to stdout, and additionally to a
// rotating file at filePath when one is given.
func New(level, filePath string) (*zap.Logger, error) {
	parsedLevel := parseLevel(level)

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		parsedLevel,
	)

	if filePath == "" {
		return zap.New(consoleCore), nil
	}

	fileEncoderConfig := zap.NewProductionEncoderConfig()
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(fileEncoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    100,
			MaxAge:     28,
			MaxBackups: 5,
			Compress:   true,
		}),
		parsedLevel,
	)

	return zap.New(zapcore.NewTee(consoleCore, fileCore)), nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
