package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/docrewind/internal/db"
	docerrors "github.com/randalmurphal/docrewind/internal/errors"
	"github.com/randalmurphal/docrewind/internal/history"
)

// DatabaseBackend stores history in SQLite or PostgreSQL.
// Compaction takes the write lock; reads share the read lock.
type DatabaseBackend struct {
	db       *db.ProjectDB
	pageSize int
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewDatabaseBackend wraps an open history database. A pageSize <= 0
// uses db.DefaultUpdatePageSize.
func NewDatabaseBackend(pdb *db.ProjectDB, pageSize int, logger *slog.Logger) *DatabaseBackend {
	if pageSize <= 0 {
		pageSize = db.DefaultUpdatePageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DatabaseBackend{db: pdb, pageSize: pageSize, logger: logger}
}

// NewInMemoryBackend creates a backend over a fresh in-memory database.
func NewInMemoryBackend() (*DatabaseBackend, error) {
	pdb, err := db.OpenProjectInMemory()
	if err != nil {
		return nil, err
	}
	return NewDatabaseBackend(pdb, 0, nil), nil
}

// DB returns the underlying database for direct access.
// WARNING: Direct database access bypasses the mutex protection.
func (d *DatabaseBackend) DB() *db.ProjectDB {
	return d.db
}

// CompactProject moves pending updates into the update log.
func (d *DatabaseBackend) CompactProject(ctx context.Context, projectID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.db.CompactProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("compact project %s: %w", projectID, err)
	}
	if n > 0 {
		d.logger.Debug("compacted pending updates", "project_id", projectID, "count", n)
	}
	return n, nil
}

// ListDocIDs returns the document ids of a project, sorted.
func (d *DatabaseBackend) ListDocIDs(ctx context.Context, projectID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.ListDocIDs(ctx, projectID)
}

// GetDocument returns the current content and version of a document.
// A missing document returns a DOC_NOT_FOUND error.
func (d *DatabaseBackend) GetDocument(ctx context.Context, projectID, docID string) (string, int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, err := d.db.GetDocument(ctx, projectID, docID)
	if errors.Is(err, db.ErrDocumentNotFound) {
		return "", 0, docerrors.ErrDocNotFound(projectID, docID)
	}
	if err != nil {
		return "", 0, err
	}
	return doc.Content, doc.Version, nil
}

// GetUpdates returns the updates of a document with from <= version <= to,
// ordered by version descending. Rows are read in pages.
func (d *DatabaseBackend) GetUpdates(ctx context.Context, projectID, docID string, from, to int64) ([]history.Update, error) {
	d.mu.RLock()
	records, err := d.db.GetUpdates(ctx, projectID, docID, from, to, d.pageSize)
	d.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	updates := make([]history.Update, 0, len(records))
	for i := range records {
		u, err := dbUpdateToHistory(&records[i])
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// SaveDocument stores the current snapshot of a document.
func (d *DatabaseBackend) SaveDocument(ctx context.Context, projectID, docID, content string, version int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.SaveDocument(ctx, &db.Document{
		ProjectID: projectID,
		DocID:     docID,
		Content:   content,
		Version:   version,
	})
}

// QueueUpdates adds updates to the pending queue of a project.
func (d *DatabaseBackend) QueueUpdates(ctx context.Context, projectID string, updates []history.Update) error {
	records := make([]db.UpdateRecord, 0, len(updates))
	for _, u := range updates {
		r, err := historyUpdateToDB(projectID, u)
		if err != nil {
			return err
		}
		records = append(records, r)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.QueuePendingUpdates(ctx, records)
}

// ListDocuments returns per-document summaries for a project.
func (d *DatabaseBackend) ListDocuments(ctx context.Context, projectID string) ([]db.DocumentSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.ListDocuments(ctx, projectID)
}

// CountPending returns the number of uncompacted updates of a project.
func (d *DatabaseBackend) CountPending(ctx context.Context, projectID string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.CountPending(ctx, projectID)
}

// Close closes the database.
func (d *DatabaseBackend) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Close()
}
