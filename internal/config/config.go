package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds installation parameters shared by the stack binaries.
type Config struct {
	// CacheDir is the directory where verified archives persist across runs.
	CacheDir string `yaml:"cache_dir"`
	// TargetDir is the directory archives are unpacked into.
	TargetDir string `yaml:"target_dir"`
	// Timeout bounds a single download request.
	Timeout time.Duration `yaml:"timeout"`
	// RetryAttempts is the total number of attempts for one download.
	RetryAttempts int `yaml:"retry_attempts"`
	// Progress toggles the download progress bar.
	Progress bool `yaml:"progress"`
	// LogLevel is the minimum level for log output (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for installer settings.
	DefaultConfigFilename = "stack-settings.yaml"

	// DefaultCacheDir is the default directory for cached archives.
	DefaultCacheDir = "stack-cache"

	// DefaultTargetDir is the default directory archives are unpacked into.
	DefaultTargetDir = "build"

	// DefaultTimeout is the default duration for a single download request.
	DefaultTimeout = 5 * time.Minute

	// DefaultRetryAttempts is the default total attempt count per download.
	DefaultRetryAttempts = 3

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeRetries is returned when the retry attempt count is negative.
	errNegativeRetries = errors.New("retry attempts must not be negative")
)

// Default returns a configuration populated with default values.
func Default() *Config {
	return &Config{
		CacheDir:      DefaultCacheDir,
		TargetDir:     DefaultTargetDir,
		Timeout:       DefaultTimeout,
		RetryAttempts: DefaultRetryAttempts,
		Progress:      true,
		LogLevel:      "info",
	}
}

// Load reads configuration from the provided path and validates essential fields.
// A missing file is not an error: defaults are returned so the installer can
// run without any settings file present.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	} else if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults for omitted fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.RetryAttempts < 0 {
		return errNegativeRetries
	}

	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}

	if cfg.TargetDir == "" {
		cfg.TargetDir = DefaultTargetDir
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return nil
}
