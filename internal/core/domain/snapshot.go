package domain

// Snapshot is the serializable value a state provider produces on save and
// consumes on restore. It is an opaque tree of primitives, maps and
// sequences; the engine never interprets its contents beyond hashing the
// encoded form.
type Snapshot map[string]any

// Document is the composite state written as the primary save target:
// one snapshot per provider, keyed by provider name.
type Document map[string]Snapshot
