// Package logging configures the zap loggers used across lspcore.
//
// Components receive a *zap.Logger at construction and default to a no-op
// logger when none is supplied, so library use stays silent unless the
// embedding application opts in.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger writing to stderr.
//
// level is one of "debug", "info", "warn", "error" (case-insensitive,
// unknown values fall back to info). When jsonOutput is true the production
// JSON encoder is used; otherwise a console encoder suited to a terminal.
func New(level string, jsonOutput bool) *zap.Logger {
	lvl := parseLevel(level)

	var encoder zapcore.Encoder
	if jsonOutput {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), lvl)
	return zap.New(core)
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
