package config

import (
	"time"

	"github.com/yndnr/simvault-go/internal/storage"
	"github.com/yndnr/simvault-go/internal/storage/checksum"
)

// Config is the root configuration for SimVault.
type Config struct {
	Storage StorageSection `koanf:"storage"`
	Log     LogSection     `koanf:"log"`
	Metrics MetricsSection `koanf:"metrics"`
}

// StorageSection configures the persistence engine.
type StorageSection struct {
	// DataDir is the directory holding all persistence files.
	DataDir string `koanf:"data_dir"`

	// DataVersion is the running data version, stamped on saves and used
	// as the migration target on load.
	DataVersion string `koanf:"data_version"`

	// Checksum selects the content hash strength (sha256, murmur3).
	Checksum string `koanf:"checksum"`

	// MaxBackups is the backup retention count.
	MaxBackups int `koanf:"max_backups"`

	// IncrementalOnly sources clean providers from the last committed
	// snapshots instead of reserializing everything each save.
	IncrementalOnly bool `koanf:"incremental_only"`

	// Compress gzips the stored primary document.
	Compress bool `koanf:"compress"`

	// AutoSaveInterval is the minimum spacing between automatic saves.
	// Zero disables auto-saving.
	AutoSaveInterval time.Duration `koanf:"auto_save_interval"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures the Prometheus exposition endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// EngineConfig maps the storage section onto the engine's configuration.
// Logger and Sink stay zero; the caller wires those.
func (s StorageSection) EngineConfig() storage.Config {
	return storage.Config{
		DataDir:          s.DataDir,
		DataVersion:      s.DataVersion,
		Checksum:         checksum.Kind(s.Checksum),
		MaxBackups:       s.MaxBackups,
		IncrementalOnly:  s.IncrementalOnly,
		Compress:         s.Compress,
		AutoSaveInterval: s.AutoSaveInterval,
	}
}
