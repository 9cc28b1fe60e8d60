// Package storage provides the history store used by exports and the CLI.
// It wraps the history database and converts rows to domain types.
package storage

import (
	"context"

	"github.com/randalmurphal/docrewind/internal/db"
	"github.com/randalmurphal/docrewind/internal/history"
)

// Backend defines the history store operations.
// All implementations must be safe for concurrent access.
type Backend interface {
	// Export collaborators
	CompactProject(ctx context.Context, projectID string) (int, error)
	ListDocIDs(ctx context.Context, projectID string) ([]string, error)
	GetDocument(ctx context.Context, projectID, docID string) (string, int64, error)
	// GetUpdates returns updates with from <= version <= to, most recent
	// first.
	GetUpdates(ctx context.Context, projectID, docID string, from, to int64) ([]history.Update, error)

	// Store operations
	SaveDocument(ctx context.Context, projectID, docID, content string, version int64) error
	QueueUpdates(ctx context.Context, projectID string, updates []history.Update) error
	ListDocuments(ctx context.Context, projectID string) ([]db.DocumentSummary, error)
	CountPending(ctx context.Context, projectID string) (int, error)
	Import(ctx context.Context, f *Fixture) (*ImportStats, error)

	// Lifecycle
	Close() error
}
