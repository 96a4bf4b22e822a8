// Package logging builds the zap loggers used by the pipeline.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger that writes to stderr. Verbose selects a colored
// development console at debug level; otherwise only warnings and errors
// are printed.
func New(verbose bool) *zap.Logger {
	return NewWithWriter(os.Stderr, verbose)
}

// NewWithWriter is New with a custom destination.
func NewWithWriter(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = ""
	if verbose {
		level = zapcore.DebugLevel
		enc = zap.NewDevelopmentEncoderConfig()
		enc.TimeKey = ""
	}
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

// ParseLevel maps a level name such as "debug" or "WARN" to a zap level,
// defaulting to warn.
func ParseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.WarnLevel
	}
	return lvl
}

// NewAtLevel builds a console logger at an explicit level.
func NewAtLevel(w io.Writer, level zapcore.Level) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = ""
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level))
}

// Nop discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
