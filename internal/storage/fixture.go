package storage

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/docrewind/internal/history"
)

// Fixture is a project's documents and pending updates in YAML (or JSON)
// form, as loaded by 'docrewind import'.
type Fixture struct {
	Project   string            `yaml:"project"`
	Documents []FixtureDocument `yaml:"documents"`
	Updates   []history.Update  `yaml:"updates"`
}

// FixtureDocument is the current snapshot of one document.
type FixtureDocument struct {
	ID      string `yaml:"id"`
	Content string `yaml:"content"`
	Version int64  `yaml:"version"`
}

// ImportStats reports what an import stored.
type ImportStats struct {
	Documents int
	Updates   int
}

// ParseFixture decodes and checks a fixture. JSON input is accepted since
// it is valid YAML.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if f.Project == "" {
		return nil, fmt.Errorf("parse fixture: project is required")
	}

	seen := make(map[string]bool, len(f.Documents))
	for i, d := range f.Documents {
		if d.ID == "" {
			return nil, fmt.Errorf("parse fixture: document %d has no id", i)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("parse fixture: duplicate document %s", d.ID)
		}
		seen[d.ID] = true
	}
	for i, u := range f.Updates {
		if u.DocID == "" {
			return nil, fmt.Errorf("parse fixture: update %d has no doc_id", i)
		}
	}
	return &f, nil
}

// LoadFixture reads and parses a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// Import stores the fixture's documents and queues its updates as pending.
// The updates become readable after the project is compacted.
func (d *DatabaseBackend) Import(ctx context.Context, f *Fixture) (*ImportStats, error) {
	stats := &ImportStats{}
	for _, doc := range f.Documents {
		if err := d.SaveDocument(ctx, f.Project, doc.ID, doc.Content, doc.Version); err != nil {
			return stats, err
		}
		stats.Documents++
	}
	if err := d.QueueUpdates(ctx, f.Project, f.Updates); err != nil {
		return stats, err
	}
	stats.Updates = len(f.Updates)

	d.logger.Info("imported fixture",
		"project_id", f.Project,
		"documents", stats.Documents,
		"updates", stats.Updates,
	)
	return stats, nil
}
