package config

import (
	"path/filepath"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := Default()
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func TestVerify_Defaults(t *testing.T) {
	if err := Verify(validConfig(t)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_MissingDataDir(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.DataDir = ""
	if err := Verify(cfg); err == nil {
		t.Fatalf("empty data_dir accepted")
	}
}

func TestVerify_UnknownChecksum(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.Checksum = "crc7"
	if err := Verify(cfg); err == nil {
		t.Fatalf("unknown checksum accepted")
	}
}

func TestVerify_BadRetention(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.MaxBackups = 0
	if err := Verify(cfg); err == nil {
		t.Fatalf("zero retention accepted")
	}
}

func TestVerify_NegativeInterval(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.AutoSaveInterval = -time.Second
	if err := Verify(cfg); err == nil {
		t.Fatalf("negative interval accepted")
	}
}

func TestVerify_BadLogLevel(t *testing.T) {
	cfg := validConfig(t)
	cfg.Log.Level = "loud"
	if err := Verify(cfg); err == nil {
		t.Fatalf("unknown log level accepted")
	}
}

func TestVerify_MetricsAddrRequired(t *testing.T) {
	cfg := validConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = ""
	if err := Verify(cfg); err == nil {
		t.Fatalf("enabled metrics without addr accepted")
	}
}

func TestEngineConfig_Mapping(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.Checksum = "murmur3"
	cfg.Storage.MaxBackups = 7
	cfg.Storage.Compress = true

	ec := cfg.Storage.EngineConfig()
	if ec.DataDir != cfg.Storage.DataDir {
		t.Fatalf("DataDir = %q", ec.DataDir)
	}
	if string(ec.Checksum) != "murmur3" || ec.MaxBackups != 7 || !ec.Compress {
		t.Fatalf("engine config = %+v", ec)
	}
}
