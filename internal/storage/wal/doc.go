// Package wal provides the save-transaction journal.
//
// The journal is an append-only record of in-progress save transactions.
// It is deliberately not a durability mechanism for data: it exists so that
// recovery can distinguish "last save completed" from "last save was
// interrupted mid-write", a signal the snapshot files alone cannot provide.
// Journal write failures are therefore reported but never abort a save.
//
// A transaction moves through four states: idle (empty file), active (a
// begin entry written), active with writes (write_provider entries
// appended), and terminal (commit or rollback written, after which the
// journal is truncated back to empty).
package wal
