// Package config loads and saves the shadowgit CLI configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds the CLI-level settings. The checkpoint library itself takes
// explicit parameters; this only feeds the shadowgit binary.
type Config struct {
	// StorageDir is the global storage root holding every task's repository.
	StorageDir string `json:"storage_dir"`

	// LogLevel is one of debug, info, warn, error, none.
	LogLevel string `json:"log_level"`

	// LogFile is the log destination; empty disables logging.
	LogFile string `json:"log_file"`

	// IgnorePatterns are the default snapshot exclusions, gitignore-style.
	IgnorePatterns []string `json:"ignore_patterns"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	base := filepath.Join(dir, "shadowgit")

	return &Config{
		StorageDir: filepath.Join(base, "checkpoints"),
		LogLevel:   "info",
		LogFile:    filepath.Join(base, "shadowgit.log"),
		IgnorePatterns: []string{
			"node_modules/",
			"__pycache__/",
			"dist/",
			"build/",
			"target/",
			"*.log",
			"*.tmp",
			".DS_Store",
		},
	}
}

// ConfigPath returns the configuration file location.
func ConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "shadowgit", "config.json"), nil
}

// Load reads the configuration, falling back to defaults when no file
// exists. Fields missing from the file keep their default values.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the config path.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
