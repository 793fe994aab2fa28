package metric

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/simvault-go/internal/storage"
)

func TestMetrics_SaveFinished(t *testing.T) {
	m := New()

	m.SaveFinished(storage.SaveResult{
		Tick: 42, Committed: true, Dirty: 3, Providers: 5, Duration: 20 * time.Millisecond,
	})
	m.SaveFinished(storage.SaveResult{
		Tick: 43, Committed: false, Dirty: 1, Providers: 5, Duration: time.Millisecond,
	})

	if got := testutil.ToFloat64(m.savesTotal.WithLabelValues("committed")); got != 1 {
		t.Fatalf("committed saves = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.savesTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed saves = %v, want 1", got)
	}
	// The tick gauge only follows committed saves.
	if got := testutil.ToFloat64(m.lastSaveTick); got != 42 {
		t.Fatalf("last save tick = %v, want 42", got)
	}
}

func TestMetrics_LoadFinished(t *testing.T) {
	m := New()
	m.LoadFinished(storage.LoadResult{OK: true, Tier: storage.TierPrimary})
	m.LoadFinished(storage.LoadResult{OK: false, Tier: storage.TierNone})

	if got := testutil.ToFloat64(m.loadsTotal.WithLabelValues("primary")); got != 1 {
		t.Fatalf("primary loads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.loadsTotal.WithLabelValues("none")); got != 1 {
		t.Fatalf("none loads = %v, want 1", got)
	}
}

type fakeSource struct {
	stats storage.Stats
	info  storage.StorageInfo
	err   error
}

func (f *fakeSource) Stats() storage.Stats                      { return f.stats }
func (f *fakeSource) StorageInfo() (storage.StorageInfo, error) { return f.info, f.err }

func TestStatsCollector(t *testing.T) {
	src := &fakeSource{
		stats: storage.Stats{
			SaveCount:         10,
			LoadCount:         1,
			AvgSaveDuration:   50 * time.Millisecond,
			CrashRecoveries:   2,
			IntegrityFailures: 1,
		},
		info: storage.StorageInfo{TotalBytes: 4096, BackupCount: 5},
	}

	c := NewStatsCollector(src)
	expected := strings.NewReader(`
# HELP simvault_engine_saves Saves committed since process start.
# TYPE simvault_engine_saves gauge
simvault_engine_saves 10
# HELP simvault_storage_backups Retained backup count.
# TYPE simvault_storage_backups gauge
simvault_storage_backups 5
`)
	if err := testutil.CollectAndCompare(c, expected,
		"simvault_engine_saves", "simvault_storage_backups"); err != nil {
		t.Fatalf("CollectAndCompare: %v", err)
	}
}

func TestStatsCollector_StorageInfoError(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("walk failed")}
	c := NewStatsCollector(src)

	// Engine counters still come through when the disk walk fails.
	if n := testutil.CollectAndCount(c); n != 5 {
		t.Fatalf("collected %d metrics, want 5", n)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Registry().MustRegister(NewStatsCollector(&fakeSource{}))
	m.SaveFinished(storage.SaveResult{Committed: true, Duration: time.Millisecond})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "simvault_saves_total") {
		t.Fatalf("exposition missing saves counter:\n%s", body)
	}
	if !strings.Contains(body, "simvault_engine_saves") {
		t.Fatalf("exposition missing collector gauge:\n%s", body)
	}
}
