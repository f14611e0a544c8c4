// Package logger - Structured logging for the detection pipeline.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger that writes debug and info entries to stdout and warnings or
// worse to stderr. Debug entries are only emitted when debug is true.
func New(debug bool) *zap.Logger {
	return NewWithWriters(debug, zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr))
}

// NewWithWriters is New with explicit write syncers.
//
// Arguments:
//   - debug: Enables debug entries and the development encoder config.
//   - out: Receives debug and info entries.
//   - errOut: Receives warn, error and fatal entries.
//
// Returns:
//   - *zap.Logger: The logger over a tee core.
func NewWithWriters(debug bool, out, errOut zapcore.WriteSyncer) *zap.Logger {
	// debug and info level enabler
	debugInfoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.DebugLevel || level == zapcore.InfoLevel
	})

	// info level enabler
	infoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.InfoLevel
	})

	// warn, error and fatal level enabler
	warnErrorFatalLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level >= zapcore.WarnLevel
	})

	encoderConfig := zap.NewProductionEncoderConfig()
	lowLevel := zapcore.LevelEnabler(infoLevel)
	if debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		lowLevel = debugInfoLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), out, lowLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), errOut, warnErrorFatalLevel),
	)
	return zap.New(core)
}
