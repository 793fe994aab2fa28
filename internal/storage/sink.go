package storage

import "time"

// RecoveryTier identifies which source of truth satisfied a load.
type RecoveryTier int

const (
	// TierNone means no tier yielded anything; providers keep their
	// freshly constructed defaults.
	TierNone RecoveryTier = iota

	// TierPrimary is the checksum-verified primary document.
	TierPrimary

	// TierIncremental is partial recovery from per-provider module files.
	TierIncremental

	// TierBackup is a coherent restore from a retained prior save.
	TierBackup
)

func (t RecoveryTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierIncremental:
		return "incremental"
	case TierBackup:
		return "backup"
	default:
		return "none"
	}
}

// SaveResult describes one finished save transaction.
type SaveResult struct {
	Tick      uint64
	Day       int
	Committed bool
	Dirty     int
	Providers int
	Duration  time.Duration
}

// LoadResult describes one finished load.
type LoadResult struct {
	OK          bool
	Tier        RecoveryTier
	Restored    int
	DataVersion string
}

// Sink receives engine lifecycle notifications. Callbacks run synchronously
// on the saving/loading goroutine, strictly after the transaction journal
// has been cleared, so a sink observes only terminal outcomes.
type Sink interface {
	SaveFinished(res SaveResult)
	LoadFinished(res LoadResult)
}

// NopSink is a Sink that discards all notifications.
type NopSink struct{}

func (NopSink) SaveFinished(SaveResult) {}
func (NopSink) LoadFinished(LoadResult) {}
