package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalConfig(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	ResetGlobalConfigForTest()

	cfg := GetGlobalConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultAPIURL, cfg.API.BaseURL)

	// Subsequent calls return the same instance.
	assert.Same(t, cfg, GetGlobalConfig())

	ResetGlobalConfigForTest()
	assert.NotSame(t, cfg, GetGlobalConfig())

	replacement := Default()
	replacement.API.BaseURL = "http://other:1"
	SetGlobalConfig(replacement)
	assert.Equal(t, "http://other:1", GetAPIURL())
	ResetGlobalConfigForTest()
}

func TestConfigGetters(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	ResetGlobalConfigForTest()
	defer ResetGlobalConfigForTest()

	cfg := GetGlobalConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.File = "/tmp/test.log"

	assert.Equal(t, "debug", GetLogLevel())
	assert.Equal(t, "/tmp/test.log", GetLogFile())
	assert.Equal(t, "/tmp/test.log", GetLoggingConfig().File)
}

func TestGetConfigDir(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv(EnvHome, home)

		dir, err := GetConfigDir()
		require.NoError(t, err)
		assert.Equal(t, home, dir)

		path, err := GetConfigPath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "config.yaml"), path)

		logPath, err := GetDefaultLogPath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "logs", "statdash.log"), logPath)
	})

	t.Run("home directory", func(t *testing.T) {
		t.Setenv(EnvHome, "")
		t.Setenv("HOME", t.TempDir())

		dir, err := GetConfigDir()
		require.NoError(t, err)
		assert.Equal(t, ".statdash", filepath.Base(dir))
	})
}

func TestEnsureDirs(t *testing.T) {
	home := filepath.Join(t.TempDir(), "statdash")
	t.Setenv(EnvHome, home)
	ResetGlobalConfigForTest()
	defer ResetGlobalConfigForTest()

	require.NoError(t, EnsureConfigDir())
	info, err := os.Stat(home)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// No log file configured: nothing to create.
	require.NoError(t, EnsureLogDir())

	GetGlobalConfig().Logging.File = filepath.Join(home, "logs", "x.log")
	require.NoError(t, EnsureLogDir())
	_, err = os.Stat(filepath.Join(home, "logs"))
	assert.NoError(t, err)
}
