package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig validates the configuration and returns a list of validation errors.
// An empty slice indicates the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error
	errs = append(errs, validateStorageConfig(&config.Storage)...)
	errs = append(errs, validateSchemaConfig(&config.Schema)...)
	errs = append(errs, validateWriteConfig(&config.Write)...)
	errs = append(errs, validateStreamConfig(&config.Stream)...)
	if config.Verify.Workers < 0 {
		errs = append(errs, ValidationError{Field: "verify.workers", Message: "must not be negative"})
	}
	errs = append(errs, validateLogConfig(&config.Logging)...)
	return errs
}

func oneOf(field, value string, allowed ...string) []error {
	if slices.Contains(allowed, strings.ToLower(value)) {
		return nil
	}
	return []error{ValidationError{
		Field:   field,
		Message: fmt.Sprintf("invalid value %q, must be one of: %s", value, strings.Join(allowed, ", ")),
	}}
}

func validateStorageConfig(config *StorageConfig) []error {
	errs := oneOf("storage.backend", config.Backend, "sqlite", "memory")
	errs = append(errs, oneOf("storage.compression", config.Compression, "zstd", "lz4", "none")...)

	if strings.EqualFold(config.Backend, "sqlite") {
		if config.Path == "" {
			errs = append(errs, ValidationError{Field: "storage.path", Message: "required for the sqlite backend"})
		} else if dir := filepath.Dir(config.Path); dir != "." {
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				errs = append(errs, ValidationError{
					Field:   "storage.path",
					Message: fmt.Sprintf("parent directory %q does not exist", dir),
				})
			}
		}
	}

	if config.Level < 0 || config.Level > 22 {
		errs = append(errs, ValidationError{Field: "storage.level", Message: "must be between 0 and 22"})
	}
	return errs
}

func validateSchemaConfig(config *SchemaConfig) []error {
	if config.File == "" {
		return nil
	}
	if _, err := os.Stat(config.File); err != nil {
		return []error{ValidationError{Field: "schema.file", Message: fmt.Sprintf("cannot read %q", config.File)}}
	}
	return nil
}

func validateWriteConfig(config *WriteConfig) []error {
	if config.AcquireTimeout < 0 {
		return []error{ValidationError{Field: "write.acquireTimeout", Message: "must not be negative"}}
	}
	return nil
}

func validateStreamConfig(config *StreamConfig) []error {
	if !config.Enabled {
		return nil
	}
	var errs []error
	if config.ReplayBuffer <= 0 {
		errs = append(errs, ValidationError{Field: "stream.replayBuffer", Message: "must be positive"})
	}
	if config.ChannelSize <= 0 {
		errs = append(errs, ValidationError{Field: "stream.channelSize", Message: "must be positive"})
	}
	return errs
}

func validateLogConfig(config *LogConfig) []error {
	errs := oneOf("logging.level", config.Level, "debug", "info", "warn", "error")
	errs = append(errs, oneOf("logging.format", config.Format, "text", "json")...)
	return errs
}
