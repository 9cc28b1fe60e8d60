package archive

import (
	"encoding/json"
	"fmt"
)

// ManifestPath is the name of the index entry, always written last.
const ManifestPath = "manifest.json"

// Location points at one content entry.
type Location struct {
	Path    string `json:"path"`
	Version int64  `json:"version"`
}

// ContentRange holds the newest and the earliest reconstructed content of
// a document.
type ContentRange struct {
	End   Location `json:"end"`
	Start Location `json:"start"`
}

// UpdateRef points at one update entry. Timestamp is epoch milliseconds.
type UpdateRef struct {
	Path      string `json:"path"`
	Version   int64  `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

// ManifestEntry summarizes the history of one document.
type ManifestEntry struct {
	ID           string       `json:"id"`
	FinalVersion int64        `json:"finalVersion"`
	Content      ContentRange `json:"content"`
	Updates      []UpdateRef  `json:"updates"`

	// Failures counts updates that could not be reverse-applied.
	Failures int `json:"-"`
}

// Manifest indexes every document in an archive.
type Manifest struct {
	ProjectID string          `json:"projectId"`
	Docs      []ManifestEntry `json:"docs"`
}

// Encode returns the manifest as indented JSON. Empty lists encode as []
// rather than null.
func (m *Manifest) Encode() ([]byte, error) {
	out := Manifest{ProjectID: m.ProjectID, Docs: make([]ManifestEntry, len(m.Docs))}
	for i, d := range m.Docs {
		if d.Updates == nil {
			d.Updates = []UpdateRef{}
		}
		out.Docs[i] = d
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// DecodeManifest parses manifest.json content.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
