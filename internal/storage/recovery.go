package storage

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"

	"github.com/yndnr/simvault-go/internal/core/domain"
	"github.com/yndnr/simvault-go/internal/storage/migrate"
	"github.com/yndnr/simvault-go/internal/storage/snapshot"
	"github.com/yndnr/simvault-go/internal/storage/wal"
)

// Load restores provider state from disk, walking the recovery tiers in
// order: verified primary document, per-provider incremental files, retained
// backups newest first. It returns whether any tier restored state; when all
// tiers fail the providers keep their constructed defaults and the engine
// behaves like a fresh install.
//
// Load must run before the first Save. It inspects the transaction journal
// first: an interrupted journal marks the previous run as crashed mid-save,
// which by itself says nothing about which files survived, so the tiers are
// still walked normally afterwards.
func (e *Engine) Load(ctx context.Context) bool {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Warn("load rejected, a save or load is in flight")
		return false
	}
	defer e.inFlight.Store(false)

	if err := ctx.Err(); err != nil {
		e.logger.Warn("load skipped", "error", err)
		return false
	}

	e.inspectJournal()

	res := e.loadPrimary()
	if !res.OK {
		res = e.loadIncremental()
	}
	if !res.OK {
		res = e.loadBackups()
	}

	e.stats.recordLoad()
	if res.OK {
		e.logger.Info("state restored",
			"tier", res.Tier.String(),
			"providers", res.Restored,
			"data_version", res.DataVersion)
	} else {
		e.logger.Info("no recoverable state, starting fresh")
	}
	e.sink.LoadFinished(res)
	return res.OK
}

// inspectJournal classifies the journal left by the previous run and resets
// it to idle.
func (e *Engine) inspectJournal() {
	state, entries, err := wal.Inspect(e.journal.Path())
	if err != nil {
		e.logger.Warn("journal inspection failed", "error", err)
		return
	}

	switch state {
	case wal.StateInterrupted:
		e.stats.recordCrashRecovery()
		e.logger.Warn("previous run crashed mid-save", "journal_entries", len(entries))
	case wal.StateStale:
		e.logger.Debug("stale journal discarded", "journal_entries", len(entries))
	default:
		return
	}

	if err := wal.Clear(e.journal.Path()); err != nil {
		e.logger.Warn("journal clear failed", "error", err)
	}
}

// loadPrimary is tier one: the manifest plus the checksum-verified primary
// document.
func (e *Engine) loadPrimary() LoadResult {
	m, err := e.loader.LoadManifest()
	if err != nil {
		if !errors.Is(err, snapshot.ErrNoManifest) {
			e.logger.Warn("manifest unreadable", "error", err)
		}
		return LoadResult{}
	}

	doc, err := e.loader.LoadDocument(m)
	if err != nil {
		if errors.Is(err, snapshot.ErrChecksumMismatch) {
			e.stats.recordIntegrityFailure()
		}
		e.logger.Warn("primary document rejected", "error", err)
		return LoadResult{}
	}

	doc, version, ok := e.migrateDocument(doc, m.DataVersion)
	if !ok {
		return LoadResult{}
	}

	restored := e.restoreDocument(doc)
	if restored == 0 {
		return LoadResult{}
	}
	return LoadResult{OK: true, Tier: TierPrimary, Restored: restored, DataVersion: version}
}

// loadIncremental is tier two: partial recovery, provider by provider, from
// the incremental module files. Restoring any provider counts as success;
// providers with no usable module file keep their defaults.
func (e *Engine) loadIncremental() LoadResult {
	restored := 0
	for _, name := range e.registered() {
		mf, snap, err := e.loader.LoadModule(name)
		if err != nil {
			if errors.Is(err, snapshot.ErrChecksumMismatch) {
				e.stats.recordIntegrityFailure()
			}
			if !errors.Is(err, snapshot.ErrNoModule) {
				e.logger.Warn("module file rejected", "provider", name, "error", err)
			}
			continue
		}
		if err := e.provider(name).Restore(snap); err != nil {
			e.logger.Error("provider restore failed", "provider", name, "error", err)
			continue
		}
		e.seed(name, mf.Snapshot, mf.Checksum)
		restored++
	}

	if restored == 0 {
		return LoadResult{}
	}
	// Incremental files carry no version marker of their own; they were
	// written by the running version or invalidated by the migration that
	// replaced it.
	return LoadResult{OK: true, Tier: TierIncremental, Restored: restored, DataVersion: e.cfg.DataVersion}
}

// loadBackups is tier three: retained prior saves, newest first. A backup
// that fails verification or migration is skipped, not fatal.
func (e *Engine) loadBackups() LoadResult {
	infos, err := e.rotator.List()
	if err != nil {
		e.logger.Warn("backup listing failed", "error", err)
		return LoadResult{}
	}

	for i := len(infos) - 1; i >= 0; i-- {
		info := infos[i]
		doc, m, err := e.loader.LoadBackup(info.StatePath, info.ManifestPath)
		if err != nil {
			if errors.Is(err, snapshot.ErrChecksumMismatch) {
				e.stats.recordIntegrityFailure()
			}
			e.logger.Warn("backup rejected", "id", info.ID, "error", err)
			continue
		}

		version := e.cfg.DataVersion
		if m != nil {
			var ok bool
			doc, version, ok = e.migrateDocument(doc, m.DataVersion)
			if !ok {
				continue
			}
		}

		restored := e.restoreDocument(doc)
		if restored == 0 {
			continue
		}
		e.logger.Info("restored from backup", "id", info.ID)
		return LoadResult{OK: true, Tier: TierBackup, Restored: restored, DataVersion: version}
	}
	return LoadResult{}
}

// migrateDocument brings a document from its stored version to the running
// one. A version gap with no registered path is an integrity failure and the
// caller escalates to the next tier.
func (e *Engine) migrateDocument(doc domain.Document, from string) (domain.Document, string, bool) {
	if from == "" {
		from = domain.DefaultDataVersion
	}
	if from == e.cfg.DataVersion {
		return doc, from, true
	}

	migrated, version, err := e.chain.Apply(doc, from, e.cfg.DataVersion)
	if err != nil {
		if errors.Is(err, migrate.ErrNoPath) {
			e.stats.recordIntegrityFailure()
		}
		e.logger.Error("migration failed",
			"from", from,
			"target", e.cfg.DataVersion,
			"reached", version,
			"error", err)
		return nil, version, false
	}
	return migrated, version, true
}

// restoreDocument hands each registered provider its snapshot from doc and
// seeds the dirty-tracking baseline for those that took it. Entries for
// providers that are not registered are ignored.
func (e *Engine) restoreDocument(doc domain.Document) int {
	restored := 0
	for _, name := range e.registered() {
		snap, ok := doc[name]
		if !ok {
			continue
		}
		if err := e.provider(name).Restore(snap); err != nil {
			e.logger.Error("provider restore failed", "provider", name, "error", err)
			continue
		}

		body, err := json.Marshal(snap)
		if err != nil {
			e.logger.Warn("baseline marshal failed", "provider", name, "error", err)
		} else {
			e.seed(name, body, e.hasher.Sum(body))
		}
		restored++
	}
	return restored
}

// seed records a restored snapshot as the committed baseline so the next
// save only rewrites providers that actually changed since the restore.
func (e *Engine) seed(name string, body json.RawMessage, sum string) {
	e.index.Seed(name, sum)
	e.cache[name] = body
}

// lastSavedAt is a small helper for stats reporting; it reads the manifest
// without verifying the document.
func (e *Engine) lastSavedAt() (time.Time, bool) {
	m, err := e.loader.LoadManifest()
	if err != nil {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, m.SavedAt)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}
