package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console logger on stderr. Only warnings and errors are shown
// unless verbose is set.
func New(verbose bool) *zap.Logger {
	level := zap.WarnLevel
	if verbose {
		level = zap.DebugLevel
	}

	logger, err := newConfig(level, []string{"stderr"}).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging disabled, logger init failed with error: %v\n", err)
		return zap.NewNop()
	}
	return logger
}

// NewService builds a logger for the background service, writing info and
// above to the given paths (stderr when empty)
func NewService(paths ...string) (*zap.Logger, error) {
	if len(paths) == 0 {
		paths = []string{"stderr"}
	}
	return newConfig(zap.InfoLevel, paths).Build()
}

func newConfig(level zapcore.Level, paths []string) *zap.Config {
	return &zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "message",
			LevelKey:       "level",
			TimeKey:        "time",
			NameKey:        "name",
			CallerKey:      "caller",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      paths,
		ErrorOutputPaths: []string{"stderr"},
	}
}
