package checksum

import "sync"

// Index tracks the content hash of the last snapshot successfully committed
// per provider. A provider is dirty when its freshly serialized hash differs
// from the committed one; committed hashes only advance when a save
// transaction reaches commit, never on speculative in-flight values.
type Index struct {
	mu        sync.Mutex
	committed map[string]string
	staged    map[string]string
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		committed: make(map[string]string),
		staged:    make(map[string]string),
	}
}

// Dirty reports whether sum differs from the committed hash for name.
// A provider with no committed hash is always dirty.
func (i *Index) Dirty(name, sum string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	last, ok := i.committed[name]
	return !ok || last != sum
}

// Committed returns the committed hash for name.
func (i *Index) Committed(name string) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	sum, ok := i.committed[name]
	return sum, ok
}

// Stage records an in-flight hash. It becomes committed on Commit and is
// thrown away on Discard.
func (i *Index) Stage(name, sum string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.staged[name] = sum
}

// Commit promotes all staged hashes to committed.
func (i *Index) Commit() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for name, sum := range i.staged {
		i.committed[name] = sum
	}
	i.staged = make(map[string]string)
}

// Discard drops all staged hashes, leaving committed state untouched.
func (i *Index) Discard() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.staged = make(map[string]string)
}

// Seed sets a committed hash directly. Used after a successful load so the
// next save compares against the restored on-disk state.
func (i *Index) Seed(name, sum string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.committed[name] = sum
}
