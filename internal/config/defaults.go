package config

import "time"

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:     "sqlite",
			Path:        "obacore.db",
			Compression: "zstd",
			Level:       0,
		},
		Write: WriteConfig{
			NonBlocking:    false,
			AcquireTimeout: 30 * time.Second,
		},
		Stream: StreamConfig{
			Enabled:      true,
			ReplayBuffer: 4096,
			ChannelSize:  256,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// setDefaults registers every default with v so that environment
// variables can override keys absent from the config file.
func setDefaults(v defaultSetter) {
	d := DefaultConfig()
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.compression", d.Storage.Compression)
	v.SetDefault("storage.level", d.Storage.Level)
	v.SetDefault("schema.file", d.Schema.File)
	v.SetDefault("write.nonBlocking", d.Write.NonBlocking)
	v.SetDefault("write.acquireTimeout", d.Write.AcquireTimeout)
	v.SetDefault("stream.enabled", d.Stream.Enabled)
	v.SetDefault("stream.replayBuffer", d.Stream.ReplayBuffer)
	v.SetDefault("stream.channelSize", d.Stream.ChannelSize)
	v.SetDefault("verify.workers", d.Verify.Workers)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
}

type defaultSetter interface {
	SetDefault(key string, value any)
}
