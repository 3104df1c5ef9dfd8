package config

import "time"

// Config holds the complete obacore configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Schema  SchemaConfig  `mapstructure:"schema"`
	Write   WriteConfig   `mapstructure:"write"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Verify  VerifyConfig  `mapstructure:"verify"`
	Logging LogConfig     `mapstructure:"logging"`
}

// StorageConfig selects and tunes the durable store.
type StorageConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `mapstructure:"backend"`
	// Path is the SQLite database file.
	Path string `mapstructure:"path"`
	// Compression is "zstd", "lz4" or "none".
	Compression string `mapstructure:"compression"`
	// Level is the zstd level; 0 selects the library default.
	Level int `mapstructure:"level"`
}

// SchemaConfig locates the schema document.
type SchemaConfig struct {
	// File is a YAML schema document. Empty uses the built-in core schema.
	File string `mapstructure:"file"`
}

// WriteConfig controls write-token acquisition.
type WriteConfig struct {
	// NonBlocking makes writes fail with a conflict instead of waiting for
	// the token.
	NonBlocking bool `mapstructure:"nonBlocking"`
	// AcquireTimeout bounds the wait for the token. Zero waits forever.
	AcquireTimeout time.Duration `mapstructure:"acquireTimeout"`
}

// StreamConfig controls the change stream.
type StreamConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	ReplayBuffer int  `mapstructure:"replayBuffer"`
	ChannelSize  int  `mapstructure:"channelSize"`
}

// VerifyConfig tunes the consistency check.
type VerifyConfig struct {
	// Workers bounds verification parallelism. Zero uses GOMAXPROCS.
	Workers int `mapstructure:"workers"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
