// Package config provides configuration types for the Arbiter policy store.
package config

// Backend selectors for the authoritative store and the policy data index.
const (
	StoreBackendMemory = "memory"
	StoreBackendSQLite = "sqlite"

	IndexBackendMemory = "memory"
	IndexBackendFile   = "file"
)

// Config is the top-level configuration for the policy store layer.
type Config struct {
	// Store configures the authoritative policy persistence backend.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Index configures the decision-side policy data index.
	Index IndexConfig `yaml:"index" mapstructure:"index"`

	// Legacy configures the deprecated property-bag read path.
	Legacy LegacyConfig `yaml:"legacy" mapstructure:"legacy"`

	// Telemetry configures tracing output.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// LogLevel sets the slog level: debug, info, warn, or error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// StoreConfig selects and parameterizes the persistence backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required,oneof=memory sqlite"`

	// Path is the SQLite database file. Required for the sqlite backend;
	// must be an absolute path or ":memory:".
	Path string `yaml:"path" mapstructure:"path" validate:"omitempty,store_path"`
}

// IndexConfig selects and parameterizes the policy data index.
type IndexConfig struct {
	// Backend is "memory" or "file".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required,oneof=memory file"`

	// Path is the index.json file. Required for the file backend; must be
	// an absolute path.
	Path string `yaml:"path" mapstructure:"path" validate:"omitempty,store_path"`
}

// LegacyConfig controls the deprecated registry-resource read path. The
// primary read path never depends on it; enabling this only switches the
// administration read wiring for migrated deployments.
type LegacyConfig struct {
	// Enabled selects the legacy adapter for administration reads.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	// TracingEnabled turns on the stdout span exporter.
	TracingEnabled bool `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendMemory
	}
	if c.Index.Backend == "" {
		c.Index.Backend = IndexBackendMemory
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
