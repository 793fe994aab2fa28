// Package migrate applies ordered version-to-version transforms to a loaded
// state document whose declared data version differs from the running one.
//
// Transforms see the whole document at once, so a migration may move data
// between providers. They run read-only with respect to stored files and
// must be safe to re-run: the only migration marker that persists is the
// document's own version field.
package migrate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/yndnr/simvault-go/internal/core/domain"
)

// Errors for chain operations.
var (
	ErrNoPath        = errors.New("migrate: no migration path")
	ErrDuplicateFrom = errors.New("migrate: duplicate source version")
	ErrBadMigration  = errors.New("migrate: invalid migration")
)

// Transform rewrites a document from one version's shape to the next.
type Transform func(doc domain.Document) (domain.Document, error)

// Migration is one registered version step.
type Migration struct {
	From  string
	To    string
	Apply Transform
}

// Chain is a linear list of migrations, applied by following From pointers
// until the target version is reached.
type Chain struct {
	steps  []Migration
	logger *slog.Logger
}

// NewChain creates an empty chain.
func NewChain(logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{logger: logger}
}

// Register adds a migration step. Each source version may appear only once.
func (c *Chain) Register(from, to string, fn Transform) error {
	if from == "" || to == "" || from == to || fn == nil {
		return fmt.Errorf("%w: %q -> %q", ErrBadMigration, from, to)
	}
	for _, s := range c.steps {
		if s.From == from {
			return fmt.Errorf("%w: %q", ErrDuplicateFrom, from)
		}
	}
	c.steps = append(c.steps, Migration{From: from, To: to, Apply: fn})
	return nil
}

// Len returns the number of registered steps.
func (c *Chain) Len() int { return len(c.steps) }

// Apply walks the chain from the document's declared version toward target.
// It returns the transformed document and the version reached. When no
// registered step bridges the remaining gap the document reached so far is
// returned together with ErrNoPath.
func (c *Chain) Apply(doc domain.Document, from, target string) (domain.Document, string, error) {
	version := from
	// A chain can advance at most once per registered step; anything more
	// means a cycle.
	for hops := 0; version != target; hops++ {
		if hops > len(c.steps) {
			return doc, version, fmt.Errorf("%w: cycle at %q", ErrNoPath, version)
		}

		step, ok := c.find(version)
		if !ok {
			return doc, version, fmt.Errorf("%w: stuck at %q, want %q", ErrNoPath, version, target)
		}

		next, err := step.Apply(doc)
		if err != nil {
			return doc, version, fmt.Errorf("migrate: %s -> %s: %w", step.From, step.To, err)
		}
		c.logger.Info("migration applied", "from", step.From, "to", step.To)
		doc = next
		version = step.To
	}
	return doc, version, nil
}

func (c *Chain) find(from string) (Migration, bool) {
	for _, s := range c.steps {
		if s.From == from {
			return s, true
		}
	}
	return Migration{}, false
}
