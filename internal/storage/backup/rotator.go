// Package backup retains timestamped copies of prior committed saves.
//
// Before each new primary write the rotator copies the existing state
// document (and its manifest, when present) into the retention set, then
// prunes the set down to a configured count, oldest first. The rotator only
// ever writes and deletes; reading backups back is recovery's job.
package backup

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Layout of the retention set.
const (
	DirName = "backups"

	statePrefix    = "state-"
	manifestPrefix = "manifest-"
	fileExtension  = ".json"
	timeFormat     = "20060102T150405"

	DefaultRetentionCount = 5

	filePerm = 0600
	dirPerm  = 0750
)

// Info describes one retained backup.
type Info struct {
	// ID is the timestamped identifier, e.g. "20240101T120000-001".
	ID string

	StatePath    string
	ManifestPath string
	Size         int64
}

// Rotator manages the retention set under one directory.
type Rotator struct {
	dir    string
	max    int
	logger *slog.Logger
}

// NewRotator creates a rotator, creating the backups directory.
func NewRotator(dir string, max int, logger *slog.Logger) (*Rotator, error) {
	if dir == "" {
		return nil, fmt.Errorf("backup: dir is required")
	}
	if max <= 0 {
		max = DefaultRetentionCount
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("backup: create dir: %w", err)
	}
	return &Rotator{dir: dir, max: max, logger: logger}, nil
}

// Rotate copies the current primary files into the retention set and prunes
// it. A missing state file means there is nothing to retain yet; that is
// not an error and no backup is created.
func (r *Rotator) Rotate(statePath, manifestPath string, at time.Time) (*Info, error) {
	if _, err := os.Stat(statePath); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("backup: stat primary: %w", err)
	}

	id, err := r.nextID(at)
	if err != nil {
		return nil, err
	}

	info := &Info{
		ID:        id,
		StatePath: filepath.Join(r.dir, statePrefix+id+fileExtension),
	}
	size, err := copyFile(statePath, info.StatePath)
	if err != nil {
		return nil, fmt.Errorf("backup: copy state: %w", err)
	}
	info.Size = size

	// The manifest sidecar is optional: without it a backup is loaded
	// best-effort.
	if manifestPath != "" {
		if _, err := os.Stat(manifestPath); err == nil {
			dst := filepath.Join(r.dir, manifestPrefix+id+fileExtension)
			if _, err := copyFile(manifestPath, dst); err != nil {
				r.logger.Warn("backup manifest copy failed", "id", id, "error", err)
			} else {
				info.ManifestPath = dst
			}
		}
	}

	if err := r.Prune(); err != nil {
		r.logger.Warn("backup prune failed", "error", err)
	}
	return info, nil
}

// List returns retained backups sorted oldest first.
func (r *Rotator) List() ([]Info, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("backup: read dir: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, statePrefix) || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, statePrefix), fileExtension)

		info := Info{
			ID:        id,
			StatePath: filepath.Join(r.dir, name),
		}
		if st, err := os.Stat(info.StatePath); err == nil {
			info.Size = st.Size()
		}
		manifest := filepath.Join(r.dir, manifestPrefix+id+fileExtension)
		if _, err := os.Stat(manifest); err == nil {
			info.ManifestPath = manifest
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// Count returns the number of retained backups.
func (r *Rotator) Count() (int, error) {
	infos, err := r.List()
	if err != nil {
		return 0, err
	}
	return len(infos), nil
}

// Prune deletes the oldest backups until at most the retention count remain.
func (r *Rotator) Prune() error {
	return r.PruneTo(r.max)
}

// PruneTo deletes the oldest backups until at most keep remain.
func (r *Rotator) PruneTo(keep int) error {
	if keep < 0 {
		keep = 0
	}
	infos, err := r.List()
	if err != nil {
		return err
	}
	if len(infos) <= keep {
		return nil
	}

	for _, info := range infos[:len(infos)-keep] {
		if err := os.Remove(info.StatePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("backup: remove %s: %w", info.StatePath, err)
		}
		if info.ManifestPath != "" {
			if err := os.Remove(info.ManifestPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("backup: remove %s: %w", info.ManifestPath, err)
			}
		}
		r.logger.Debug("backup pruned", "id", info.ID)
	}
	return nil
}

// nextID builds a timestamped identifier, adding a sequence suffix so that
// several saves within one second stay distinct and lexically ordered.
func (r *Rotator) nextID(at time.Time) (string, error) {
	ts := at.UTC().Format(timeFormat)

	seq := 1
	entries, err := os.ReadDir(r.dir)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("backup: read dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, statePrefix+ts+"-") && strings.HasSuffix(name, fileExtension) {
			seq++
		}
	}
	return fmt.Sprintf("%s-%03d", ts, seq), nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return 0, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return 0, err
	}
	return n, out.Close()
}
