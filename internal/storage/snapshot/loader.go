package snapshot

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/yndnr/simvault-go/internal/core/domain"
	"github.com/yndnr/simvault-go/internal/storage/checksum"
)

// Errors for load operations.
var (
	ErrNoManifest       = errors.New("snapshot: no manifest")
	ErrNoDocument       = errors.New("snapshot: no document")
	ErrNoModule         = errors.New("snapshot: no module file")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
)

// Loader reads and verifies the files a Writer produces.
type Loader struct {
	dir    string
	hasher checksum.Hasher
	logger *slog.Logger
}

// NewLoader creates a loader rooted at dir using the given hasher for
// verification.
func NewLoader(dir string, hasher checksum.Hasher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, hasher: hasher, logger: logger}
}

// LoadManifest reads the manifest sidecar.
func (l *Loader) LoadManifest() (*domain.Manifest, error) {
	data, err := os.ReadFile(l.manifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("snapshot: read manifest: %w", err)
	}
	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("snapshot: parse manifest: %w", err)
	}
	return &m, nil
}

// LoadDocument reads the primary document, recomputes the aggregate checksum
// over the uncompressed body, and decodes it. ErrChecksumMismatch means the
// document cannot be trusted and the next recovery tier applies.
func (l *Loader) LoadDocument(m *domain.Manifest) (domain.Document, error) {
	body, err := readDocumentBody(l.statePath(), m.Compressed)
	if err != nil {
		return nil, err
	}

	if sum := l.hasher.Sum(body); sum != m.AggregateChecksum {
		return nil, fmt.Errorf("%w: document %s != manifest %s",
			ErrChecksumMismatch, sum, m.AggregateChecksum)
	}

	var doc domain.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("snapshot: parse document: %w", err)
	}
	return doc, nil
}

// LoadModule reads and verifies one provider's incremental file.
func (l *Loader) LoadModule(name string) (*ModuleFile, domain.Snapshot, error) {
	path := moduleFilePath(l.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNoModule
		}
		return nil, nil, fmt.Errorf("snapshot: read module %s: %w", name, err)
	}

	var mf ModuleFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, nil, fmt.Errorf("snapshot: parse module %s: %w", name, err)
	}

	if sum := l.hasher.Sum(mf.Snapshot); sum != mf.Checksum {
		return nil, nil, fmt.Errorf("%w: module %s", ErrChecksumMismatch, name)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(mf.Snapshot, &snap); err != nil {
		return nil, nil, fmt.Errorf("snapshot: parse module snapshot %s: %w", name, err)
	}
	return &mf, snap, nil
}

// LoadBackup reads a retained document copy. When a manifest sidecar exists
// the aggregate checksum is verified against it; without one the body is
// accepted best-effort if it parses. The returned manifest is nil in the
// best-effort case.
func (l *Loader) LoadBackup(statePath, manifestPath string) (domain.Document, *domain.Manifest, error) {
	var m *domain.Manifest
	if manifestPath != "" {
		data, err := os.ReadFile(manifestPath)
		switch {
		case err == nil:
			var parsed domain.Manifest
			if err := json.Unmarshal(data, &parsed); err == nil {
				m = &parsed
			} else {
				l.logger.Warn("backup manifest unparseable, proceeding best-effort",
					"path", manifestPath, "error", err)
			}
		case !os.IsNotExist(err):
			return nil, nil, fmt.Errorf("snapshot: read backup manifest: %w", err)
		}
	}

	compressed := m != nil && m.Compressed
	body, err := readDocumentBody(statePath, compressed)
	if err != nil {
		// Without a manifest the compression flag is unknown; retry the
		// other way before giving up.
		if m == nil {
			if retry, retryErr := readDocumentBody(statePath, true); retryErr == nil {
				body = retry
				err = nil
			}
		}
		if err != nil {
			return nil, nil, err
		}
	}

	if m != nil {
		if sum := l.hasher.Sum(body); sum != m.AggregateChecksum {
			return nil, nil, fmt.Errorf("%w: backup %s", ErrChecksumMismatch, statePath)
		}
	}

	var doc domain.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, nil, fmt.Errorf("snapshot: parse backup document: %w", err)
	}
	return doc, m, nil
}

func (l *Loader) statePath() string    { return filepath.Join(l.dir, StateFilename) }
func (l *Loader) manifestPath() string { return filepath.Join(l.dir, ManifestFilename) }

func readDocumentBody(path string, compressed bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoDocument
		}
		return nil, fmt.Errorf("snapshot: read document: %w", err)
	}
	if !compressed {
		return data, nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress document: %w", err)
	}
	defer gz.Close()
	body, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress document: %w", err)
	}
	return body, nil
}

func moduleFilePath(dir, name string) string {
	return filepath.Join(dir, ModulesDirName, name+moduleExtension)
}
