package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/joshp123/gohome-purifier/internal/config"
)

func TestNewLevels(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "WARN", Format: "console"})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gohome.log")
	logger, err := New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		File:   config.LogFileConf{Filename: path, MaxSizeMB: 1},
	})
	require.NoError(t, err)

	logger.Info("hello")
	_ = logger.Sync()
	assert.FileExists(t, path)
}
