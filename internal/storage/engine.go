package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/yndnr/simvault-go/internal/core/domain"
	"github.com/yndnr/simvault-go/internal/storage/backup"
	"github.com/yndnr/simvault-go/internal/storage/checksum"
	"github.com/yndnr/simvault-go/internal/storage/migrate"
	"github.com/yndnr/simvault-go/internal/storage/snapshot"
	"github.com/yndnr/simvault-go/internal/storage/wal"
)

// Default configuration values.
const (
	DefaultMaxBackups       = 5
	DefaultAutoSaveInterval = 5 * time.Minute
)

// Errors for registration.
var (
	ErrProviderExists  = errors.New("storage: provider already registered")
	ErrInvalidProvider = errors.New("storage: invalid provider registration")
)

// Provider is a simulation module whose mutable state the engine persists.
// Both methods must be total with respect to any value the provider itself
// previously produced: Restore(s) must accept anything Serialize returned.
type Provider interface {
	// Serialize produces a fresh snapshot of the provider's current state.
	Serialize() (domain.Snapshot, error)

	// Restore replaces the provider's state from a snapshot.
	Restore(snap domain.Snapshot) error
}

// Config configures the persistence engine.
type Config struct {
	// DataDir is the directory holding all persistence files.
	DataDir string

	// DataVersion is the running system's data version, stamped on every
	// manifest and used as the migration target on load.
	DataVersion string

	// Checksum selects the content hash strength.
	Checksum checksum.Kind

	// MaxBackups is the backup retention count.
	MaxBackups int

	// IncrementalOnly rebuilds the primary document from the union of the
	// last committed snapshots overlaid with this save's dirty ones,
	// instead of from fresh serializations of every provider.
	IncrementalOnly bool

	// Compress gzips the stored primary document body.
	Compress bool

	// AutoSaveInterval is the minimum spacing between saves triggered by
	// CheckAutoSave. Zero disables auto-saving.
	AutoSaveInterval time.Duration

	// Logger is the structured logger.
	Logger *slog.Logger

	// Sink receives save/load notifications. Nil means none.
	Sink Sink
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:          dataDir,
		DataVersion:      domain.DefaultDataVersion,
		Checksum:         checksum.KindSHA256,
		MaxBackups:       DefaultMaxBackups,
		AutoSaveInterval: DefaultAutoSaveInterval,
	}
}

// Engine is the durable incremental persistence engine. One engine instance
// owns one data directory; saves and loads run to completion on the calling
// goroutine and overlapping saves are rejected by an in-flight flag.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	hasher  checksum.Hasher
	index   *checksum.Index
	writer  *snapshot.Writer
	loader  *snapshot.Loader
	rotator *backup.Rotator
	journal *wal.Journal
	chain   *migrate.Chain

	mu        sync.Mutex
	names     []string
	providers map[string]Provider

	// cache holds the serialized snapshot bytes last committed (or
	// restored) per provider.
	cache map[string]json.RawMessage

	inFlight atomic.Bool
	limiter  *rate.Limiter

	sink  Sink
	stats engineStats
}

// New creates an engine over cfg.DataDir. It does not read anything; call
// Load once, before the simulation starts ticking, to restore state.
func New(cfg Config) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("storage: data_dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DataVersion == "" {
		cfg.DataVersion = domain.DefaultDataVersion
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = DefaultMaxBackups
	}

	hasher, err := checksum.New(cfg.Checksum)
	if err != nil {
		return nil, err
	}

	writer, err := snapshot.NewWriter(cfg.DataDir, cfg.Compress, cfg.Logger)
	if err != nil {
		return nil, err
	}

	rotator, err := backup.NewRotator(filepath.Join(cfg.DataDir, backup.DirName), cfg.MaxBackups, cfg.Logger)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.AutoSaveInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.AutoSaveInterval), 1)
	}

	sink := cfg.Sink
	if sink == nil {
		sink = NopSink{}
	}

	return &Engine{
		cfg:       cfg,
		logger:    cfg.Logger,
		hasher:    hasher,
		index:     checksum.NewIndex(),
		writer:    writer,
		loader:    snapshot.NewLoader(cfg.DataDir, hasher, cfg.Logger),
		rotator:   rotator,
		journal:   wal.NewJournal(filepath.Join(cfg.DataDir, wal.DefaultFilename), cfg.Logger),
		chain:     migrate.NewChain(cfg.Logger),
		providers: make(map[string]Provider),
		cache:     make(map[string]json.RawMessage),
		limiter:   limiter,
		sink:      sink,
	}, nil
}

// RegisterProvider adds a named state provider. Names key the incremental
// module files, so path separators are rejected.
func (e *Engine) RegisterProvider(name string, p Provider) error {
	if name == "" || p == nil || strings.ContainsAny(name, "/\\") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidProvider, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.providers[name]; ok {
		return fmt.Errorf("%w: %q", ErrProviderExists, name)
	}
	e.providers[name] = p
	e.names = append(e.names, name)
	sort.Strings(e.names)
	return nil
}

// RegisterMigration adds a data version migration step, applied on load
// when the stored version differs from the running one.
func (e *Engine) RegisterMigration(from, to string, fn migrate.Transform) error {
	return e.chain.Register(from, to, fn)
}

// registered returns a stable snapshot of the registry.
func (e *Engine) registered() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(e.names))
	copy(names, e.names)
	return names
}

func (e *Engine) provider(name string) Provider {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.providers[name]
}

// pendingModule is one provider's contribution to an in-flight save.
type pendingModule struct {
	name  string
	body  json.RawMessage
	sum   string
	dirty bool
}

// Save persists all registered providers as one transaction. It returns
// whether the primary document was committed; failures are logged and
// counted, never propagated.
func (e *Engine) Save(ctx context.Context, tick uint64, day int) bool {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Warn("save rejected, another save is in flight", "tick", tick)
		return false
	}
	defer e.inFlight.Store(false)

	if err := ctx.Err(); err != nil {
		e.logger.Warn("save skipped", "error", err)
		return false
	}

	start := time.Now()
	plan := e.buildPlan()

	// The journal is a diagnostic aid, never a hard dependency: a failed
	// journal write must not abort the save.
	if err := e.journal.Begin(); err != nil {
		e.logger.Warn("journal begin failed", "error", err)
	}

	now := time.Now().UTC()
	dirty := 0
	for _, pm := range plan {
		if !pm.dirty {
			continue
		}
		dirty++
		if err := e.writer.WriteModule(pm.name, pm.body, pm.sum, now); err != nil {
			e.logger.Error("module write failed", "provider", pm.name, "error", err)
			continue
		}
		if err := e.journal.WriteProvider(pm.name, pm.sum); err != nil {
			e.logger.Warn("journal write failed", "provider", pm.name, "error", err)
		}
	}

	// Rotation happens on every save that reaches the write phase, dirty
	// or not, so each save closes out a rotation cycle.
	if _, err := e.rotator.Rotate(e.writer.StatePath(), e.writer.ManifestPath(), now); err != nil {
		e.logger.Warn("backup rotation failed", "error", err)
	}

	body, manifest, err := e.buildDocument(plan, tick, day, now)
	if err == nil {
		err = e.writer.WriteDocument(body, manifest)
	}
	if err != nil {
		e.logger.Error("save failed", "tick", tick, "day", day, "error", err)
		if rbErr := e.journal.Rollback(); rbErr != nil {
			e.logger.Warn("journal rollback failed", "error", rbErr)
		}
		e.index.Discard()
		e.sink.SaveFinished(SaveResult{
			Tick: tick, Day: day, Committed: false,
			Dirty: dirty, Providers: len(plan), Duration: time.Since(start),
		})
		return false
	}

	if err := e.journal.Commit(); err != nil {
		e.logger.Warn("journal commit failed", "error", err)
	}

	// Only now do the in-flight hashes become the committed baseline.
	e.index.Commit()
	for _, pm := range plan {
		e.cache[pm.name] = pm.body
	}

	elapsed := time.Since(start)
	e.stats.recordSave(elapsed)
	e.logger.Info("save committed",
		"tick", tick,
		"day", day,
		"providers", len(plan),
		"dirty", dirty,
		"bytes", len(body),
		"elapsed", elapsed)

	e.sink.SaveFinished(SaveResult{
		Tick: tick, Day: day, Committed: true,
		Dirty: dirty, Providers: len(plan), Duration: elapsed,
	})
	return true
}

// buildPlan serializes every registered provider and stages dirty hashes.
// A provider whose Serialize fails is carried from the committed cache when
// possible and otherwise omitted from this cycle; its previous on-disk
// state stays authoritative either way.
func (e *Engine) buildPlan() []pendingModule {
	names := e.registered()
	plan := make([]pendingModule, 0, len(names))

	for _, name := range names {
		pm, ok := e.serializeOne(name)
		if !ok {
			continue
		}
		if pm.dirty {
			e.index.Stage(pm.name, pm.sum)
		}
		plan = append(plan, pm)
	}
	return plan
}

func (e *Engine) serializeOne(name string) (pendingModule, bool) {
	p := e.provider(name)
	if p == nil {
		return pendingModule{}, false
	}

	snap, err := p.Serialize()
	if err == nil {
		var body []byte
		body, err = json.Marshal(snap)
		if err == nil {
			sum := e.hasher.Sum(body)
			return pendingModule{
				name:  name,
				body:  body,
				sum:   sum,
				dirty: e.index.Dirty(name, sum),
			}, true
		}
	}

	e.logger.Error("provider serialize failed", "provider", name, "error", err)
	if cached, ok := e.cache[name]; ok {
		sum, _ := e.index.Committed(name)
		return pendingModule{name: name, body: cached, sum: sum, dirty: false}, true
	}
	return pendingModule{}, false
}

// buildDocument assembles the composite document body and its manifest.
func (e *Engine) buildDocument(plan []pendingModule, tick uint64, day int, now time.Time) ([]byte, *domain.Manifest, error) {
	composite := make(map[string]json.RawMessage, len(plan))
	for _, pm := range plan {
		body := pm.body
		if e.cfg.IncrementalOnly && !pm.dirty {
			// Incremental mode reuses the committed bytes for clean
			// providers; content-hash equality makes this a no-op in
			// terms of output.
			if cached, ok := e.cache[pm.name]; ok {
				body = cached
			}
		}
		composite[pm.name] = body
	}

	body, err := json.Marshal(composite)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: marshal document: %w", err)
	}

	savedAt := now.Format(time.RFC3339Nano)
	m := &domain.Manifest{
		SchemaVersion:     domain.ManifestSchemaVersion,
		DataVersion:       e.cfg.DataVersion,
		SavedAt:           savedAt,
		Tick:              tick,
		Day:               day,
		AggregateChecksum: e.hasher.Sum(body),
		Compressed:        e.cfg.Compress,
		Entries:           make([]domain.ManifestEntry, 0, len(plan)),
	}
	for _, pm := range plan {
		m.Entries = append(m.Entries, domain.ManifestEntry{
			Name:     pm.name,
			Size:     int64(len(pm.body)),
			Checksum: pm.sum,
			SavedAt:  savedAt,
			Dirty:    pm.dirty,
		})
	}
	return body, m, nil
}

// CheckAutoSave triggers a save when the configured interval has elapsed
// and no save is in flight. It returns whether a save was triggered.
func (e *Engine) CheckAutoSave(ctx context.Context, tick uint64, day int) bool {
	if e.limiter == nil {
		return false
	}
	if e.inFlight.Load() {
		return false
	}
	if !e.limiter.Allow() {
		return false
	}
	e.logger.Debug("auto-save triggered", "tick", tick, "day", day)
	return e.Save(ctx, tick, day)
}
