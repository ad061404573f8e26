// Package config handles the CLI's own configuration file.
package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// defaultSyncConcurrency bounds how many registries sync in parallel when
// the config does not say otherwise.
const defaultSyncConcurrency = 4

// CLIConfig is the contents of ~/.templstack/config.toml.
type CLIConfig struct {
	Current         string `toml:"current"`                    // Active registry id
	DataDir         string `toml:"data_dir,omitempty"`         // Overrides the default state directory
	NetworkProfile  string `toml:"network_profile,omitempty"`  // wifi, mobile, ethernet
	SyncConcurrency int    `toml:"sync_concurrency,omitempty"` // Parallel registry syncs
	StrictPolicy    bool   `toml:"strict_policy,omitempty"`    // Fail resolution on advisory findings
}

// ConfigDir returns the CLI config directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".templstack"), nil
}

// ConfigPath returns the full path to config.toml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DataPath returns the state database path, honoring the data_dir
// override.
func (c CLIConfig) DataPath() (string, error) {
	dir := c.DataDir
	if dir == "" {
		configDir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		dir = configDir
	}
	return filepath.Join(dir, "state.db"), nil
}

// Concurrency returns the configured sync parallelism, defaulted.
func (c CLIConfig) Concurrency() int {
	if c.SyncConcurrency > 0 {
		return c.SyncConcurrency
	}
	return defaultSyncConcurrency
}

// LoadCLI loads CLI configuration from ~/.templstack/config.toml. A
// missing file yields a usable zero config.
func LoadCLI() (CLIConfig, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return CLIConfig{}, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return CLIConfig{}, nil
	}
	if err != nil {
		return CLIConfig{}, err
	}

	var config CLIConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return CLIConfig{}, err
	}
	return config, nil
}

// SaveCLI saves CLI configuration to ~/.templstack/config.toml.
func SaveCLI(config CLIConfig) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0o600)
}
