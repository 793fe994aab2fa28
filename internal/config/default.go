package config

import "time"

// Default configuration values.
const (
	DefaultDataDir          = "/var/lib/simvault/data"
	DefaultDataVersion      = "1.0"
	DefaultChecksum         = "sha256"
	DefaultMaxBackups       = 5
	DefaultAutoSaveInterval = 5 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsAddr = "127.0.0.1:5090"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageSection{
			DataDir:          DefaultDataDir,
			DataVersion:      DefaultDataVersion,
			Checksum:         DefaultChecksum,
			MaxBackups:       DefaultMaxBackups,
			AutoSaveInterval: DefaultAutoSaveInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Enabled: false,
			Addr:    DefaultMetricsAddr,
		},
	}
}
