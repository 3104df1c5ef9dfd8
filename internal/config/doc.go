// Package config loads obacore configuration.
//
// Values come from three layers, later ones winning: built-in defaults, a
// YAML file, and OBACORE_-prefixed environment variables where dots in the
// key become underscores (storage.path is OBACORE_STORAGE_PATH).
//
//	storage:
//	  backend: sqlite
//	  path: /var/lib/obacore/obacore.db
//	  compression: zstd
//	write:
//	  acquireTimeout: 10s
//	logging:
//	  level: debug
//	  format: json
//
// ValidateConfig reports every problem at once as ValidationError values.
package config
