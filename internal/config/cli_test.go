package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigPaths(t *testing.T) {
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if filepath.Base(dir) != ".templstack" {
		t.Errorf("ConfigDir() = %q, expected to end with .templstack", dir)
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() returned error: %v", err)
	}
	if filepath.Base(path) != "config.toml" {
		t.Errorf("ConfigPath() = %q, expected to end with config.toml", path)
	}
}

func TestLoadCLI(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)

	t.Run("loads empty config when file doesn't exist", func(t *testing.T) {
		config, err := LoadCLI()
		if err != nil {
			t.Errorf("LoadCLI() returned error: %v", err)
		}
		if config.Current != "" {
			t.Errorf("expected empty current, got %q", config.Current)
		}
		if config.Concurrency() != defaultSyncConcurrency {
			t.Errorf("expected default concurrency %d, got %d", defaultSyncConcurrency, config.Concurrency())
		}
	})

	t.Run("loads valid config file", func(t *testing.T) {
		configDir := filepath.Join(tempDir, ".templstack")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			t.Fatalf("failed to create config dir: %v", err)
		}

		configContent := `current = "main"
network_profile = "mobile"
sync_concurrency = 2
strict_policy = true
`
		configPath := filepath.Join(configDir, "config.toml")
		if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		config, err := LoadCLI()
		if err != nil {
			t.Fatalf("LoadCLI() returned error: %v", err)
		}

		if config.Current != "main" {
			t.Errorf("expected current 'main', got %q", config.Current)
		}
		if config.NetworkProfile != "mobile" {
			t.Errorf("expected network profile 'mobile', got %q", config.NetworkProfile)
		}
		if config.Concurrency() != 2 {
			t.Errorf("expected concurrency 2, got %d", config.Concurrency())
		}
		if !config.StrictPolicy {
			t.Error("expected strict policy enabled")
		}
	})

	t.Run("handles invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(tempDir, ".templstack", "config.toml")
		if err := os.WriteFile(configPath, []byte(`invalid toml content [[[`), 0o600); err != nil {
			t.Fatalf("failed to write invalid config file: %v", err)
		}

		if _, err := LoadCLI(); err == nil {
			t.Error("expected error for invalid TOML")
		}
	})
}

func TestSaveCLI(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)

	config := CLIConfig{
		Current:        "main",
		NetworkProfile: "wifi",
	}

	if err := SaveCLI(config); err != nil {
		t.Fatalf("SaveCLI() returned error: %v", err)
	}

	loaded, err := LoadCLI()
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Current != "main" || loaded.NetworkProfile != "wifi" {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestDataPath(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)

	t.Run("default under config dir", func(t *testing.T) {
		path, err := CLIConfig{}.DataPath()
		if err != nil {
			t.Fatalf("DataPath() returned error: %v", err)
		}
		want := filepath.Join(tempDir, ".templstack", "state.db")
		if path != want {
			t.Errorf("DataPath() = %q, want %q", path, want)
		}
	})

	t.Run("honors data_dir override", func(t *testing.T) {
		path, err := CLIConfig{DataDir: "/var/lib/templstack"}.DataPath()
		if err != nil {
			t.Fatalf("DataPath() returned error: %v", err)
		}
		if path != filepath.Join("/var/lib/templstack", "state.db") {
			t.Errorf("DataPath() = %q", path)
		}
	})
}
