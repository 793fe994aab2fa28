package snapshot

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/yndnr/simvault-go/internal/core/domain"
)

// Storage layout inside a data directory.
const (
	StateFilename    = "state.json"
	ManifestFilename = "manifest.json"
	ModulesDirName   = "modules"

	moduleExtension = ".json"
	filePerm        = 0600
	dirPerm         = 0750
)

// ModuleFile is the incremental per-provider file written for dirty
// providers. Checksum covers the Snapshot bytes exactly as stored.
type ModuleFile struct {
	Name     string          `json:"name"`
	Checksum string          `json:"checksum"`
	SavedAt  string          `json:"saved_at"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// Writer writes documents, manifests and module files under one directory.
type Writer struct {
	dir      string
	compress bool
	logger   *slog.Logger
}

// NewWriter creates a writer rooted at dir, creating the directory tree.
func NewWriter(dir string, compress bool, logger *slog.Logger) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(dir, ModulesDirName), dirPerm); err != nil {
		return nil, fmt.Errorf("snapshot: create dirs: %w", err)
	}
	return &Writer{dir: dir, compress: compress, logger: logger}, nil
}

// StatePath returns the primary document path.
func (w *Writer) StatePath() string { return filepath.Join(w.dir, StateFilename) }

// ManifestPath returns the manifest sidecar path.
func (w *Writer) ManifestPath() string { return filepath.Join(w.dir, ManifestFilename) }

// ModulePath returns the incremental file path for a provider.
func (w *Writer) ModulePath(name string) string {
	return filepath.Join(w.dir, ModulesDirName, name+moduleExtension)
}

// WriteModule writes the incremental file for one provider.
func (w *Writer) WriteModule(name string, snapshot json.RawMessage, sum string, at time.Time) error {
	mf := ModuleFile{
		Name:     name,
		Checksum: sum,
		SavedAt:  at.Format(time.RFC3339Nano),
		Snapshot: snapshot,
	}
	data, err := json.Marshal(mf)
	if err != nil {
		return fmt.Errorf("snapshot: marshal module %s: %w", name, err)
	}
	if err := atomicWrite(w.ModulePath(name), data); err != nil {
		return fmt.Errorf("snapshot: write module %s: %w", name, err)
	}
	return nil
}

// WriteDocument writes the composite document body and then its manifest.
//
// body is the uncompressed serialized document; when the manifest declares
// compression the stored state file is gzipped, but the manifest's aggregate
// checksum always refers to the uncompressed body. The document goes first
// so a crash between the two writes leaves the old manifest pointing at the
// old document rather than a new manifest pointing at nothing.
func (w *Writer) WriteDocument(body []byte, m *domain.Manifest) error {
	stored := body
	if m.Compressed {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(body); err != nil {
			return fmt.Errorf("snapshot: compress document: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("snapshot: compress document: %w", err)
		}
		stored = buf.Bytes()
	}

	if err := atomicWrite(w.StatePath(), stored); err != nil {
		return fmt.Errorf("snapshot: write document: %w", err)
	}

	manifestData, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("snapshot: marshal manifest: %w", err)
	}
	if err := atomicWrite(w.ManifestPath(), manifestData); err != nil {
		return fmt.Errorf("snapshot: write manifest: %w", err)
	}
	return nil
}

// atomicWrite writes data to a temp file in the target directory, syncs it,
// and renames it over the final path.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
