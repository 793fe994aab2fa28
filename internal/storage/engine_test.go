package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/yndnr/simvault-go/internal/core/domain"
	"github.com/yndnr/simvault-go/internal/storage/checksum"
	"github.com/yndnr/simvault-go/internal/storage/snapshot"
)

// memProvider is an in-memory Provider for tests.
type memProvider struct {
	mu           sync.Mutex
	state        domain.Snapshot
	serializeErr error
	restoreErr   error
}

func newMemProvider(state domain.Snapshot) *memProvider {
	return &memProvider{state: state}
}

func (p *memProvider) Serialize() (domain.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.serializeErr != nil {
		return nil, p.serializeErr
	}
	out := make(domain.Snapshot, len(p.state))
	for k, v := range p.state {
		out[k] = v
	}
	return out, nil
}

func (p *memProvider) Restore(snap domain.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.restoreErr != nil {
		return p.restoreErr
	}
	p.state = snap
	return nil
}

func (p *memProvider) set(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state[key] = value
}

func (p *memProvider) get(key string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state[key]
}

// recordingSink captures engine notifications.
type recordingSink struct {
	mu    sync.Mutex
	saves []SaveResult
	loads []LoadResult
}

func (s *recordingSink) SaveFinished(res SaveResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, res)
}

func (s *recordingSink) LoadFinished(res LoadResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = append(s.loads, res)
}

func newTestEngine(t *testing.T, dir string, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig(dir)
	cfg.AutoSaveInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func readManifest(t *testing.T, dir string) *domain.Manifest {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, snapshot.ManifestFilename))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	return &m
}

func readModuleFile(t *testing.T, dir, name string) *snapshot.ModuleFile {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, snapshot.ModulesDirName, name+".json"))
	if err != nil {
		t.Fatalf("read module %s: %v", name, err)
	}
	var mf snapshot.ModuleFile
	if err := json.Unmarshal(data, &mf); err != nil {
		t.Fatalf("parse module %s: %v", name, err)
	}
	return &mf
}

func TestEngine_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := newTestEngine(t, dir, nil)
	mood := newMemProvider(domain.Snapshot{"happiness": 0.5})
	if err := e.RegisterProvider("mood", mood); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if !e.Save(ctx, 100, 3) {
		t.Fatalf("save failed")
	}

	// A fresh process with default state picks the saved value back up.
	e2 := newTestEngine(t, dir, nil)
	mood2 := newMemProvider(domain.Snapshot{"happiness": 0.0})
	if err := e2.RegisterProvider("mood", mood2); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if !e2.Load(ctx) {
		t.Fatalf("load failed")
	}
	if got := mood2.get("happiness"); got != 0.5 {
		t.Fatalf("happiness = %v, want 0.5", got)
	}

	m := readManifest(t, dir)
	if m.Tick != 100 || m.Day != 3 {
		t.Fatalf("manifest tick/day = %d/%d", m.Tick, m.Day)
	}
}

func TestEngine_SecondSaveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := newTestEngine(t, dir, nil)
	mood := newMemProvider(domain.Snapshot{"happiness": 0.5})
	if err := e.RegisterProvider("mood", mood); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}

	if !e.Save(ctx, 1, 1) {
		t.Fatalf("first save failed")
	}
	first := readModuleFile(t, dir, "mood")

	if !e.Save(ctx, 2, 1) {
		t.Fatalf("second save failed")
	}

	m := readManifest(t, dir)
	entry := m.Entry("mood")
	if entry == nil {
		t.Fatalf("manifest has no mood entry")
	}
	if entry.Dirty {
		t.Fatalf("unchanged provider marked dirty on second save")
	}

	// The incremental file was not rewritten.
	second := readModuleFile(t, dir, "mood")
	if second.SavedAt != first.SavedAt {
		t.Fatalf("module file rewritten: %s -> %s", first.SavedAt, second.SavedAt)
	}
}

func TestEngine_DirtyFlagsTrackMutation(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := newTestEngine(t, dir, nil)
	a := newMemProvider(domain.Snapshot{"n": 1.0})
	b := newMemProvider(domain.Snapshot{"n": 1.0})
	if err := e.RegisterProvider("a", a); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if err := e.RegisterProvider("b", b); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}

	if !e.Save(ctx, 1, 1) {
		t.Fatalf("save failed")
	}
	bFirst := readModuleFile(t, dir, "b")

	a.set("n", 2.0)
	if !e.Save(ctx, 2, 1) {
		t.Fatalf("save failed")
	}

	m := readManifest(t, dir)
	if ea := m.Entry("a"); ea == nil || !ea.Dirty {
		t.Fatalf("a should be dirty: %+v", ea)
	}
	if eb := m.Entry("b"); eb == nil || eb.Dirty {
		t.Fatalf("b should be clean: %+v", eb)
	}
	if bSecond := readModuleFile(t, dir, "b"); bSecond.SavedAt != bFirst.SavedAt {
		t.Fatalf("clean provider's module file rewritten")
	}
}

func TestEngine_RegisterProviderValidation(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), nil)
	p := newMemProvider(domain.Snapshot{})

	if err := e.RegisterProvider("", p); !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("empty name: %v", err)
	}
	if err := e.RegisterProvider("a/b", p); !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("path separator: %v", err)
	}
	if err := e.RegisterProvider("..", p); !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("dot prefix: %v", err)
	}
	if err := e.RegisterProvider("mood", nil); !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("nil provider: %v", err)
	}
	if err := e.RegisterProvider("mood", p); err != nil {
		t.Fatalf("valid register: %v", err)
	}
	if err := e.RegisterProvider("mood", p); !errors.Is(err, ErrProviderExists) {
		t.Fatalf("duplicate: %v", err)
	}
}

func TestEngine_SaveRejectedWhileInFlight(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), nil)
	if err := e.RegisterProvider("mood", newMemProvider(domain.Snapshot{"n": 1.0})); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}

	e.inFlight.Store(true)
	if e.Save(context.Background(), 1, 1) {
		t.Fatalf("overlapping save accepted")
	}
	e.inFlight.Store(false)
	if !e.Save(context.Background(), 1, 1) {
		t.Fatalf("save failed after flag cleared")
	}
}

func TestEngine_CheckAutoSave(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t, dir, func(cfg *Config) {
		cfg.AutoSaveInterval = time.Hour
	})
	if err := e.RegisterProvider("mood", newMemProvider(domain.Snapshot{"n": 1.0})); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}

	ctx := context.Background()
	if !e.CheckAutoSave(ctx, 1, 1) {
		t.Fatalf("first check should trigger a save")
	}
	if e.CheckAutoSave(ctx, 2, 1) {
		t.Fatalf("second check within the interval should not save")
	}

	st := e.Stats()
	if st.SaveCount != 1 {
		t.Fatalf("SaveCount = %d, want 1", st.SaveCount)
	}
}

func TestEngine_AutoSaveDisabled(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), nil)
	if e.CheckAutoSave(context.Background(), 1, 1) {
		t.Fatalf("auto-save triggered with zero interval")
	}
}

func TestEngine_SerializeFailureFallsBackToCache(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := newTestEngine(t, dir, nil)
	mood := newMemProvider(domain.Snapshot{"happiness": 0.5})
	if err := e.RegisterProvider("mood", mood); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if !e.Save(ctx, 1, 1) {
		t.Fatalf("first save failed")
	}
	before := readManifest(t, dir).Entry("mood")

	mood.serializeErr = fmt.Errorf("snapshot unavailable")
	if !e.Save(ctx, 2, 1) {
		t.Fatalf("second save failed")
	}

	after := readManifest(t, dir).Entry("mood")
	if after == nil {
		t.Fatalf("provider dropped from manifest")
	}
	if after.Dirty {
		t.Fatalf("cached fallback marked dirty")
	}
	if after.Checksum != before.Checksum {
		t.Fatalf("checksum changed: %s -> %s", before.Checksum, after.Checksum)
	}
}

func TestEngine_CompressedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := newTestEngine(t, dir, func(cfg *Config) {
		cfg.Compress = true
	})
	mood := newMemProvider(domain.Snapshot{"happiness": 0.5})
	if err := e.RegisterProvider("mood", mood); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if !e.Save(ctx, 1, 1) {
		t.Fatalf("save failed")
	}
	if !readManifest(t, dir).Compressed {
		t.Fatalf("manifest not marked compressed")
	}

	e2 := newTestEngine(t, dir, nil)
	mood2 := newMemProvider(domain.Snapshot{})
	if err := e2.RegisterProvider("mood", mood2); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if !e2.Load(ctx) {
		t.Fatalf("load failed")
	}
	if got := mood2.get("happiness"); got != 0.5 {
		t.Fatalf("happiness = %v, want 0.5", got)
	}
}

func TestEngine_MurmurChecksumKind(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := newTestEngine(t, dir, func(cfg *Config) {
		cfg.Checksum = checksum.KindMurmur3
	})
	if err := e.RegisterProvider("mood", newMemProvider(domain.Snapshot{"n": 1.0})); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if !e.Save(ctx, 1, 1) {
		t.Fatalf("save failed")
	}

	m := readManifest(t, dir)
	if len(m.AggregateChecksum) != 16 {
		t.Fatalf("aggregate checksum %q is not a murmur3 digest", m.AggregateChecksum)
	}

	e2 := newTestEngine(t, dir, func(cfg *Config) {
		cfg.Checksum = checksum.KindMurmur3
	})
	mood2 := newMemProvider(domain.Snapshot{})
	if err := e2.RegisterProvider("mood", mood2); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if !e2.Load(ctx) {
		t.Fatalf("load failed")
	}
}

func TestEngine_BackupRetention(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := newTestEngine(t, dir, func(cfg *Config) {
		cfg.MaxBackups = 2
	})
	mood := newMemProvider(domain.Snapshot{"n": 0.0})
	if err := e.RegisterProvider("mood", mood); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}

	// The first save has no prior primary to retain; each later save adds
	// one backup.
	for i := 0; i < 5; i++ {
		mood.set("n", float64(i))
		if !e.Save(ctx, uint64(i), 1) {
			t.Fatalf("save %d failed", i)
		}
	}

	count, err := e.rotator.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("backup count = %d, want 2", count)
	}
}

func TestEngine_SinkObservesOutcomes(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	sink := &recordingSink{}

	e := newTestEngine(t, dir, func(cfg *Config) {
		cfg.Sink = sink
	})
	if err := e.RegisterProvider("mood", newMemProvider(domain.Snapshot{"n": 1.0})); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}

	e.Load(ctx)
	if !e.Save(ctx, 7, 2) {
		t.Fatalf("save failed")
	}

	if len(sink.loads) != 1 || sink.loads[0].OK || sink.loads[0].Tier != TierNone {
		t.Fatalf("load notification = %+v", sink.loads)
	}
	if len(sink.saves) != 1 {
		t.Fatalf("save notifications = %d, want 1", len(sink.saves))
	}
	res := sink.saves[0]
	if !res.Committed || res.Tick != 7 || res.Day != 2 || res.Dirty != 1 || res.Providers != 1 {
		t.Fatalf("save notification = %+v", res)
	}
}

func TestEngine_StatsAndStorageInfo(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := newTestEngine(t, dir, nil)
	mood := newMemProvider(domain.Snapshot{"n": 0.0})
	if err := e.RegisterProvider("mood", mood); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}

	e.Load(ctx)
	for i := 0; i < 3; i++ {
		mood.set("n", float64(i))
		if !e.Save(ctx, uint64(i), 1) {
			t.Fatalf("save %d failed", i)
		}
	}

	st := e.Stats()
	if st.SaveCount != 3 || st.LoadCount != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if st.AvgSaveDuration <= 0 {
		t.Fatalf("AvgSaveDuration = %v", st.AvgSaveDuration)
	}
	if st.LastSavedAt.IsZero() {
		t.Fatalf("LastSavedAt not reported")
	}

	info, err := e.StorageInfo()
	if err != nil {
		t.Fatalf("StorageInfo: %v", err)
	}
	if info.TotalBytes <= 0 {
		t.Fatalf("TotalBytes = %d", info.TotalBytes)
	}
	if info.BackupCount != 2 {
		t.Fatalf("BackupCount = %d, want 2", info.BackupCount)
	}
}
