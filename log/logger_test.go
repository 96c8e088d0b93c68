package log

import (
	"bytes"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
)

func TestDefaultLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCustomLogger(&buf, LogLevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "[WARN] warn message")
	assert.Contains(t, out, "[ERROR] error message")
}

func TestDefaultLoggerNoneSilencesEverything(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCustomLogger(&buf, LogLevelNone)

	logger.Error("should not appear")
	assert.Empty(t, buf.String())
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "NONE", LogLevelNone.String())
}

func TestPackageLevelLogger(t *testing.T) {
	original := GetDefaultLogger()
	defer SetDefaultLogger(original)

	var buf bytes.Buffer
	SetDefaultLogger(NewCustomLogger(&buf, LogLevelDebug))

	Debug("d %d", 1)
	Info("i %d", 2)
	Warn("w %d", 3)
	Error("e %d", 4)

	out := buf.String()
	assert.Contains(t, out, "d 1")
	assert.Contains(t, out, "i 2")
	assert.Contains(t, out, "w 3")
	assert.Contains(t, out, "e 4")
}

func TestGologLogger(t *testing.T) {
	glogger := golog.New()
	logger := NewGologLogger(glogger)

	assert.Equal(t, LogLevelInfo, logger.GetLevel())

	logger.SetLevel(LogLevelDebug)
	assert.Equal(t, LogLevelDebug, logger.GetLevel())

	// Logging must not panic at any level.
	logger.Debug("debug %s", "x")
	logger.Info("info %d", 1)
	logger.Warn("warn %v", []string{"a"})
	logger.Error("error %f", 1.5)

	logger.SetLevel(LogLevelNone)
	logger.Error("filtered")
}

func TestNoOpLoggerImplementsLogger(t *testing.T) {
	var _ Logger = (*NoOpLogger)(nil)
	var _ Logger = (*DefaultLogger)(nil)
	var _ Logger = (*GologLogger)(nil)
}
