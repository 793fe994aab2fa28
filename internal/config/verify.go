package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/yndnr/simvault-go/internal/storage/checksum"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("cannot create data directory: %w", err)
	}

	if _, err := checksum.New(checksum.Kind(cfg.Checksum)); err != nil {
		return fmt.Errorf("storage.checksum: %w", err)
	}
	if cfg.MaxBackups < 1 {
		return errors.New("storage.max_backups must be at least 1")
	}
	if cfg.AutoSaveInterval < 0 {
		return errors.New("storage.auto_save_interval cannot be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch cfg.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not recognized", cfg.Level)
	}
	switch cfg.Format {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q is not recognized", cfg.Format)
	}
	return nil
}
