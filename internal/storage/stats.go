package storage

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

// Stats are cumulative engine counters for the lifetime of one process.
type Stats struct {
	SaveCount         uint64
	LoadCount         uint64
	AvgSaveDuration   time.Duration
	CrashRecoveries   uint64
	IntegrityFailures uint64
	LastSavedAt       time.Time
}

// StorageInfo describes the on-disk footprint of the data directory.
type StorageInfo struct {
	TotalBytes  int64
	BackupCount int
}

type engineStats struct {
	mu sync.Mutex

	saves             uint64
	loads             uint64
	totalSaveDuration time.Duration
	crashRecoveries   uint64
	integrityFailures uint64
}

func (s *engineStats) recordSave(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.totalSaveDuration += d
}

func (s *engineStats) recordLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
}

func (s *engineStats) recordCrashRecovery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crashRecoveries++
}

func (s *engineStats) recordIntegrityFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.integrityFailures++
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	e.stats.mu.Lock()
	st := Stats{
		SaveCount:         e.stats.saves,
		LoadCount:         e.stats.loads,
		CrashRecoveries:   e.stats.crashRecoveries,
		IntegrityFailures: e.stats.integrityFailures,
	}
	if e.stats.saves > 0 {
		st.AvgSaveDuration = e.stats.totalSaveDuration / time.Duration(e.stats.saves)
	}
	e.stats.mu.Unlock()

	if at, ok := e.lastSavedAt(); ok {
		st.LastSavedAt = at
	}
	return st
}

// StorageInfo walks the data directory and reports its footprint. Transient
// walk errors on individual entries are skipped rather than failing the
// whole report.
func (e *Engine) StorageInfo() (StorageInfo, error) {
	var info StorageInfo

	err := filepath.WalkDir(e.cfg.DataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			info.TotalBytes += fi.Size()
		}
		return nil
	})
	if err != nil {
		return info, err
	}

	count, err := e.rotator.Count()
	if err != nil {
		return info, err
	}
	info.BackupCount = count
	return info, nil
}
