package domain

// ManifestSchemaVersion is the version of the manifest file layout itself,
// independent of the application data version carried in DataVersion.
const ManifestSchemaVersion = 1

// DefaultDataVersion is the data version stamped on saves when the host
// does not configure one.
const DefaultDataVersion = "1.0"

// ManifestEntry describes one provider's snapshot inside a committed save.
type ManifestEntry struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	SavedAt  string `json:"saved_at"`
	Dirty    bool   `json:"dirty"`
}

// Manifest is the sidecar metadata document for a committed state document.
//
// AggregateChecksum is the content hash of the serialized document body
// (uncompressed); a manifest is only valid for load while that equality
// holds.
type Manifest struct {
	SchemaVersion     int             `json:"schema_version"`
	DataVersion       string          `json:"data_version"`
	SavedAt           string          `json:"saved_at"`
	Tick              uint64          `json:"tick"`
	Day               int             `json:"day"`
	Entries           []ManifestEntry `json:"entries"`
	AggregateChecksum string          `json:"aggregate_checksum"`
	Compressed        bool            `json:"compressed"`
}

// Entry returns the manifest entry for the named provider, or nil.
func (m *Manifest) Entry(name string) *ManifestEntry {
	for i := range m.Entries {
		if m.Entries[i].Name == name {
			return &m.Entries[i]
		}
	}
	return nil
}
