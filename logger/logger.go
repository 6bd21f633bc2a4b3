// Package logger provides structured logging for the authgate core.
//
// It wraps Uber's zap logger and exposes a global instance initialized once
// by the embedding process. Library packages stay silent and return errors;
// the binary (or the audit recorder) is what talks to the log.
//
// # Usage
//
//	logger.InitLogger("debug", "console")
//	defer logger.Log.Sync()
//
//	logger.Log.Info("verification accepted",
//	    zap.String("identity", identity),
//	)
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

// InitLogger builds the global logger. Level is one of debug, info, warn,
// error; format is json or console. Unknown values fall back to info/json.
func InitLogger(level, format string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var err error
	Log, err = cfg.Build()
	if err != nil {
		panic(err)
	}
}
