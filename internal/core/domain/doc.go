// Package domain defines the value types shared across the persistence
// engine: provider snapshots, the composite state document, and the
// manifest metadata that describes a committed save.
package domain
