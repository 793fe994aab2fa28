// Package storage provides the durable incremental persistence engine.
//
// The engine combines dirty tracking, a write-ahead transaction journal,
// checksum-verified snapshots, backup rotation and a migration chain to
// persist the mutable state of a long-running simulation, under the
// constraint that the process may be killed at any point without losing
// previously committed data.
//
// Save ordering within one transaction: journal begin, incremental module
// files for dirty providers, backup rotation of the old primary, primary
// document plus manifest, journal commit. Recovery walks the tiers
// primary -> incremental files -> backups, newest first.
package storage
