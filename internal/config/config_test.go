package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaulting and rejection of invalid values.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Nil config.
	require.Error(t, Validate(nil))

	// Negative retries.
	cfg := &Config{RetryAttempts: -1}
	require.Error(t, Validate(cfg))

	// Empty config picks up defaults.
	cfg = new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultCacheDir, cfg.CacheDir)
	require.Equal(t, DefaultTargetDir, cfg.TargetDir)
	require.Equal(t, DefaultRetryAttempts, cfg.RetryAttempts)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		CacheDir:      filepath.Join(dir, "cache"),
		TargetDir:     filepath.Join(dir, "build"),
		Timeout:       30 * time.Second,
		RetryAttempts: 5,
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.CacheDir, loaded.CacheDir)
	require.Equal(t, cfg.TargetDir, loaded.TargetDir)
	require.Equal(t, cfg.RetryAttempts, loaded.RetryAttempts)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoadMissingFile ensures a missing settings file yields defaults, not an error.
func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultCacheDir, cfg.CacheDir)
}
