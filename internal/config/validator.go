package config

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers Arbiter-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// store_path: validates ":memory:" or an absolute file path
	if err := v.RegisterValidation("store_path", validateStorePath); err != nil {
		return fmt.Errorf("failed to register store_path validator: %w", err)
	}
	return nil
}

// validateStorePath validates backend path fields.
// Valid values: ":memory:" or an absolute path.
func validateStorePath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == ":memory:" {
		return true
	}
	return filepath.IsAbs(path)
}

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return err
	}

	// Cross-field rules: file-backed backends need a path.
	if c.Store.Backend == StoreBackendSQLite && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when store.backend is %q", StoreBackendSQLite)
	}
	if c.Index.Backend == IndexBackendFile && c.Index.Path == "" {
		return fmt.Errorf("index.path is required when index.backend is %q", IndexBackendFile)
	}

	return nil
}
