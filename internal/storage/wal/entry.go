package wal

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultFilename is the journal filename inside a data directory.
const DefaultFilename = "wal.json"

// Op is the operation recorded by a journal entry.
type Op string

const (
	OpBegin         Op = "begin"
	OpWriteProvider Op = "write_provider"
	OpCommit        Op = "commit"
	OpRollback      Op = "rollback"
)

// Errors for journal operations.
var (
	ErrNotActive     = errors.New("wal: no active transaction")
	ErrAlreadyActive = errors.New("wal: transaction already active")
)

// Entry is one journal record, serialized as a single JSON line.
type Entry struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
	Op        Op     `json:"op"`
	Provider  string `json:"provider,omitempty"`
	Checksum  string `json:"checksum,omitempty"`
}

func newEntry(op Op) Entry {
	return Entry{
		ID:        ulid.Make().String(),
		Timestamp: time.Now().UnixMilli(),
		Op:        op,
	}
}

// State classifies the journal content found on disk.
type State int

const (
	// StateIdle means the journal is absent or empty: no save was in
	// flight when the process last stopped.
	StateIdle State = iota

	// StateInterrupted means the journal ends inside an open transaction:
	// the process died mid-save.
	StateInterrupted

	// StateStale means the journal ends in commit or rollback: the
	// transaction finished but the truncate did not; safe to discard.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInterrupted:
		return "interrupted"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}
