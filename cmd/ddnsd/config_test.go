package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestLogOutput(t *testing.T) {
	assert.Nil(t, logOutput(&config.LogConfig{Output: "none"}))
	assert.Equal(t, os.Stdout, logOutput(&config.LogConfig{Output: "stdout"}))
	assert.Equal(t, os.Stderr, logOutput(&config.LogConfig{}))
	assert.Equal(t, os.Stderr, logOutput(nil))

	path := filepath.Join(t.TempDir(), "logs", "ddnsd.log")
	rotated := logOutput(&config.LogConfig{Output: path, Rotation: &config.LogRotationConfig{MaxSize: 10}})
	lj, ok := rotated.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, path, lj.Filename)
	assert.Equal(t, 10, lj.MaxSize)

	plain := logOutput(&config.LogConfig{Output: path})
	f, ok := plain.(*os.File)
	require.True(t, ok)
	defer f.Close()
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestLogOutputKey(t *testing.T) {
	a := &config.LogConfig{Output: "/var/log/ddnsd.log", Level: "info"}
	b := &config.LogConfig{Output: "/var/log/ddnsd.log", Level: "debug"}
	assert.Equal(t, logOutputKey(a), logOutputKey(b), "level changes keep the output")

	b.Rotation = &config.LogRotationConfig{MaxSize: 5}
	assert.NotEqual(t, logOutputKey(a), logOutputKey(b))
}

func TestLogFromConfig(t *testing.T) {
	log := logFromConfig(&config.LogConfig{Level: "warn"}, "", os.Stderr)
	assert.Equal(t, logger.WarnLevel, log.GetLevel())

	log = logFromConfig(&config.LogConfig{Level: "warn"}, "debug", os.Stderr)
	assert.True(t, log.IsLevelEnabled(logger.DebugLevel))

	log = logFromConfig(nil, "", nil)
	assert.False(t, log.IsLevelEnabled(logger.InfoLevel))

	zl := zerologFromConfig(&config.LogConfig{Level: "error", Format: "json"}, "", nil)
	assert.Equal(t, "error", zl.GetLevel().String())
}
