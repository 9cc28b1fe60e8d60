package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrDocumentNotFound is returned by GetDocument when no snapshot exists.
var ErrDocumentNotFound = errors.New("document not found")

// DefaultUpdatePageSize is the page size GetUpdates uses when given <= 0.
const DefaultUpdatePageSize = 500

// Document is the current snapshot of one document.
type Document struct {
	ProjectID string
	DocID     string
	Content   string
	Version   int64
	UpdatedAt time.Time
}

// UpdateRecord is one stored update. Op holds the JSON-encoded operation;
// timestamps are epoch milliseconds.
type UpdateRecord struct {
	ProjectID string
	DocID     string
	Version   int64
	Op        string
	StartTS   int64
	EndTS     int64
	UserID    string
}

// DocumentSummary is a row of ListDocuments.
type DocumentSummary struct {
	DocID       string
	Version     int64
	UpdateCount int
	UpdatedAt   time.Time
}

// SaveDocument inserts or replaces a document snapshot.
func (p *ProjectDB) SaveDocument(ctx context.Context, d *Document) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	_, err := p.ExecContext(ctx, `
		INSERT INTO documents (project_id, doc_id, content, version, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (project_id, doc_id) DO UPDATE SET
			content = excluded.content,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, d.ProjectID, d.DocID, d.Content, d.Version, d.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save document %s: %w", d.DocID, err)
	}
	return nil
}

// GetDocument returns the snapshot of one document, or ErrDocumentNotFound.
func (p *ProjectDB) GetDocument(ctx context.Context, projectID, docID string) (*Document, error) {
	d := Document{ProjectID: projectID, DocID: docID}
	var updatedAt int64
	err := p.QueryRowContext(ctx, `
		SELECT content, version, updated_at
		FROM documents
		WHERE project_id = ? AND doc_id = ?
	`, projectID, docID).Scan(&d.Content, &d.Version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", docID, err)
	}
	d.UpdatedAt = time.UnixMilli(updatedAt)
	return &d, nil
}

// ListDocIDs returns the ids of every document in a project, sorted.
func (p *ProjectDB) ListDocIDs(ctx context.Context, projectID string) ([]string, error) {
	rows, err := p.QueryContext(ctx, `
		SELECT doc_id FROM documents WHERE project_id = ? ORDER BY doc_id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return ids, nil
}

// ListDocuments returns a summary of every document in a project, with the
// number of compacted updates each one has.
func (p *ProjectDB) ListDocuments(ctx context.Context, projectID string) ([]DocumentSummary, error) {
	rows, err := p.QueryContext(ctx, `
		SELECT d.doc_id, d.version, d.updated_at, COUNT(u.version)
		FROM documents d
		LEFT JOIN doc_updates u ON u.project_id = d.project_id AND u.doc_id = d.doc_id
		WHERE d.project_id = ?
		GROUP BY d.doc_id, d.version, d.updated_at
		ORDER BY d.doc_id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []DocumentSummary
	for rows.Next() {
		var s DocumentSummary
		var updatedAt int64
		if err := rows.Scan(&s.DocID, &s.Version, &updatedAt, &s.UpdateCount); err != nil {
			return nil, fmt.Errorf("scan document summary: %w", err)
		}
		s.UpdatedAt = time.UnixMilli(updatedAt)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// QueuePendingUpdates appends updates to the pending queue in one transaction.
// They become visible to GetUpdates only after CompactProject.
func (p *ProjectDB) QueuePendingUpdates(ctx context.Context, updates []UpdateRecord) error {
	if len(updates) == 0 {
		return nil
	}
	return p.RunInTx(ctx, func(tx *TxOps) error {
		for _, u := range updates {
			if _, err := tx.Exec(`
				INSERT INTO pending_updates (project_id, doc_id, version, op, start_ts, end_ts, user_id)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, u.ProjectID, u.DocID, u.Version, u.Op, u.StartTS, u.EndTS, u.UserID); err != nil {
				return fmt.Errorf("queue update %s v%d: %w", u.DocID, u.Version, err)
			}
		}
		return nil
	})
}

// CountPending returns the number of pending updates for a project.
func (p *ProjectDB) CountPending(ctx context.Context, projectID string) (int, error) {
	var n int
	err := p.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pending_updates WHERE project_id = ?
	`, projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending updates: %w", err)
	}
	return n, nil
}

// CompactProject moves every pending update of a project into the update
// log. A version already present in the log is kept and the pending copy
// dropped. Returns the number of updates added to the log.
//
// Only rows queued before the call are moved; rows queued concurrently stay
// pending for the next compaction.
func (p *ProjectDB) CompactProject(ctx context.Context, projectID string) (int, error) {
	var moved int64
	err := p.RunInTx(ctx, func(tx *TxOps) error {
		var maxID int64
		if err := tx.QueryRow(`
			SELECT COALESCE(MAX(id), 0) FROM pending_updates WHERE project_id = ?
		`, projectID).Scan(&maxID); err != nil {
			return fmt.Errorf("find pending range: %w", err)
		}
		if maxID == 0 {
			return nil
		}

		res, err := tx.Exec(`
			INSERT INTO doc_updates (project_id, doc_id, version, op, start_ts, end_ts, user_id)
			SELECT project_id, doc_id, version, op, start_ts, end_ts, user_id
			FROM pending_updates
			WHERE project_id = ? AND id <= ?
			ORDER BY id
			ON CONFLICT (project_id, doc_id, version) DO NOTHING
		`, projectID, maxID)
		if err != nil {
			return fmt.Errorf("move pending updates: %w", err)
		}
		moved, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("check rows affected: %w", err)
		}

		if _, err := tx.Exec(`
			DELETE FROM pending_updates WHERE project_id = ? AND id <= ?
		`, projectID, maxID); err != nil {
			return fmt.Errorf("clear pending updates: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(moved), nil
}

// GetUpdates returns the compacted updates of a document with
// fromVersion <= version <= toVersion, ordered by version descending
// (most recent first). Rows are read in pages of pageSize using the
// version as the keyset.
func (p *ProjectDB) GetUpdates(ctx context.Context, projectID, docID string, fromVersion, toVersion int64, pageSize int) ([]UpdateRecord, error) {
	if pageSize <= 0 {
		pageSize = DefaultUpdatePageSize
	}

	var out []UpdateRecord
	upper := toVersion
	for upper >= fromVersion {
		page, err := p.getUpdatesPage(ctx, projectID, docID, fromVersion, upper, pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			break
		}
		upper = page[len(page)-1].Version - 1
	}
	return out, nil
}

func (p *ProjectDB) getUpdatesPage(ctx context.Context, projectID, docID string, from, to int64, limit int) ([]UpdateRecord, error) {
	rows, err := p.QueryContext(ctx, `
		SELECT version, op, start_ts, end_ts, user_id
		FROM doc_updates
		WHERE project_id = ? AND doc_id = ? AND version >= ? AND version <= ?
		ORDER BY version DESC
		LIMIT ?
	`, projectID, docID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query updates of %s: %w", docID, err)
	}
	defer func() { _ = rows.Close() }()

	page := make([]UpdateRecord, 0, limit)
	for rows.Next() {
		u := UpdateRecord{ProjectID: projectID, DocID: docID}
		if err := rows.Scan(&u.Version, &u.Op, &u.StartTS, &u.EndTS, &u.UserID); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		page = append(page, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate updates: %w", err)
	}
	return page, nil
}
