package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return newLogger(zap.New(core, zap.AddCaller())), logs
}

func TestLogger_CallerPointsAtCallSite(t *testing.T) {
	logger, logs := newObservedLogger()

	logger.Info("through wrapper")
	logger.With(zap.String("component", "test")).GetZap().Info("through zap")

	entries := logs.All()
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "logger_test.go", filepath.Base(entry.Caller.File), entry.Message)
	}
	assert.Equal(t, "test", entries[1].ContextMap()["component"])
}

func TestParseLogLevel(t *testing.T) {
	level, err := parseLogLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	level, err = parseLogLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level)

	_, err = parseLogLevel("verbose")
	assert.Error(t, err)
}
