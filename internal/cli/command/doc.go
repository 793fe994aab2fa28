// Package command provides CLI command definitions for simvault-cli.
//
// The CLI is a maintenance tool operated against a data directory while the
// owning simulation is stopped: it inspects manifests, verifies checksums,
// examines the transaction journal, manages backups, and can serve engine
// metrics over HTTP.
package command
