package wal

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	json "github.com/goccy/go-json"
)

const filePerm = 0600

// Journal appends transaction entries to a single journal file.
//
// Only one transaction may be active at a time; the caller serializes saves.
type Journal struct {
	path   string
	logger *slog.Logger

	file   *os.File
	active bool
}

// NewJournal creates a journal backed by the file at path. The file is not
// created until the first Begin.
func NewJournal(path string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{path: path, logger: logger}
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// Begin starts a new transaction, truncating any stale content.
func (j *Journal) Begin() error {
	if j.active {
		return ErrAlreadyActive
	}

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("wal: open journal: %w", err)
	}
	j.file = file
	j.active = true

	if err := j.append(newEntry(OpBegin)); err != nil {
		return err
	}
	return nil
}

// WriteProvider records that the named provider's incremental file is being
// written with the given content checksum.
func (j *Journal) WriteProvider(name, sum string) error {
	if !j.active {
		return ErrNotActive
	}
	e := newEntry(OpWriteProvider)
	e.Provider = name
	e.Checksum = sum
	return j.append(e)
}

// Commit terminates the transaction and truncates the journal to empty.
func (j *Journal) Commit() error {
	return j.terminate(OpCommit)
}

// Rollback terminates the transaction and truncates the journal to empty.
func (j *Journal) Rollback() error {
	return j.terminate(OpRollback)
}

func (j *Journal) terminate(op Op) error {
	if !j.active {
		return ErrNotActive
	}
	// The transaction is over regardless of what the filesystem says below.
	j.active = false

	appendErr := j.append(newEntry(op))

	var closeErr error
	if j.file != nil {
		closeErr = j.file.Close()
		j.file = nil
	}

	// Truncating back to empty returns the journal to the idle state. A
	// terminal entry left behind is harmless: recovery classifies it as
	// stale and discards it.
	truncErr := os.Truncate(j.path, 0)

	if appendErr != nil {
		return appendErr
	}
	if closeErr != nil {
		return fmt.Errorf("wal: close journal: %w", closeErr)
	}
	if truncErr != nil {
		return fmt.Errorf("wal: truncate journal: %w", truncErr)
	}
	return nil
}

func (j *Journal) append(e Entry) error {
	if j.file == nil {
		return ErrNotActive
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("wal: marshal entry: %w", err)
	}
	line = append(line, '\n')
	if _, err := j.file.Write(line); err != nil {
		return fmt.Errorf("wal: append entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync: %w", err)
	}
	return nil
}

// Inspect classifies the journal file at path and returns its entries.
//
// A line that fails to parse is treated as a torn write from an interrupted
// transaction, not as an error.
func Inspect(path string) (State, []Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return StateIdle, nil, nil
		}
		return StateIdle, nil, fmt.Errorf("wal: open journal: %w", err)
	}
	defer file.Close()

	var (
		entries []Entry
		torn    bool
	)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			torn = true
			break
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return StateIdle, entries, fmt.Errorf("wal: scan journal: %w", err)
	}

	if len(entries) == 0 && !torn {
		return StateIdle, nil, nil
	}
	if torn {
		return StateInterrupted, entries, nil
	}

	switch entries[len(entries)-1].Op {
	case OpCommit, OpRollback:
		return StateStale, entries, nil
	default:
		return StateInterrupted, entries, nil
	}
}

// Clear truncates the journal back to the idle state. Missing files are not
// an error.
func Clear(path string) error {
	err := os.Truncate(path, 0)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("wal: clear journal: %w", err)
	}
	return nil
}
