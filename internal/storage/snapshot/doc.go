// Package snapshot writes and loads the on-disk state of a save: the
// composite state document, its manifest sidecar, and the per-provider
// incremental module files.
//
// All writes go through a temp-file-plus-rename so a crash never leaves a
// half-written file under the final name. Incremental module files carry
// their own checksum so each one is individually trustworthy even when the
// primary document never made it to disk.
package snapshot
