package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWithWriter(t *testing.T) {
	var quiet bytes.Buffer
	l := NewWithWriter(&quiet, false)
	l.Info("hidden")
	l.Warn("shown", zap.String("request", "List users"))
	_ = l.Sync()

	assert.NotContains(t, quiet.String(), "hidden")
	assert.Contains(t, quiet.String(), "WARN")
	assert.Contains(t, quiet.String(), "List users")

	var loud bytes.Buffer
	l = NewWithWriter(&loud, true)
	l.Debug("details")
	_ = l.Sync()
	assert.Contains(t, loud.String(), "DEBUG")
	assert.Contains(t, loud.String(), "details")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" INFO ":  zapcore.InfoLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.WarnLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewAtLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewAtLevel(&buf, zapcore.ErrorLevel)
	l.Warn("no")
	l.Error("yes")
	_ = l.Sync()
	assert.NotContains(t, buf.String(), "no")
	assert.Contains(t, buf.String(), "yes")
}
