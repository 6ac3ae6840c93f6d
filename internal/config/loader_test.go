package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// writeConfigFile marshals cfg to YAML at dir/arbiter.yaml and returns its path.
func writeConfigFile(t *testing.T, dir string, cfg *Config) string {
	t.Helper()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "arbiter.yaml")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfigFile(t, t.TempDir(), &Config{
		Store:    StoreConfig{Backend: StoreBackendSQLite, Path: "/var/lib/arbiter/policies.db"},
		Index:    IndexConfig{Backend: IndexBackendFile, Path: "/var/lib/arbiter/index.json"},
		LogLevel: "debug",
	})

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}

	if cfg.Store.Backend != StoreBackendSQLite {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Store.Path != "/var/lib/arbiter/policies.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Index.Backend != IndexBackendFile {
		t.Errorf("Index.Backend = %q, want file", cfg.Index.Backend)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadConfig_NoFileUsesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	// No config file in any search location; env vars and defaults apply.
	InitViper("")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}

	if cfg.Store.Backend != StoreBackendMemory {
		t.Errorf("Store.Backend = %q, want memory default", cfg.Store.Backend)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info default", cfg.LogLevel)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfigFile(t, t.TempDir(), &Config{
		Store:    StoreConfig{Backend: StoreBackendMemory},
		Index:    IndexConfig{Backend: IndexBackendMemory},
		LogLevel: "info",
	})
	t.Setenv("ARBITER_LOG_LEVEL", "warn")

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want env override warn", cfg.LogLevel)
	}
}

func TestLoadConfig_InvalidConfigFails(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfigFile(t, t.TempDir(), &Config{
		Store: StoreConfig{Backend: StoreBackendSQLite}, // sqlite without a path
		Index: IndexConfig{Backend: IndexBackendMemory},
	})

	InitViper(path)
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() should fail validation for sqlite without store.path")
	}
}
