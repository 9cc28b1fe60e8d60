// Package rewind reconstructs the history of one document by undoing its
// updates, most recent first, starting from the current content.
//
// The rewind is best effort: an update that cannot be undone is logged and
// skipped, and the fold carries on from the last content it did reach.
// Every update is still written to the archive as an audit record.
package rewind

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/randalmurphal/docrewind/internal/archive"
	docerrors "github.com/randalmurphal/docrewind/internal/errors"
	"github.com/randalmurphal/docrewind/internal/history"
)

// DocumentSource returns the current content and version of a document.
type DocumentSource interface {
	GetDocument(ctx context.Context, projectID, docID string) (content string, version int64, err error)
}

// UpdateLog returns the updates of a document with
// fromVersion <= version <= toVersion.
//
// Implementations MUST return them ordered by version descending, most
// recently applied first. The rewind depends on this order and does not
// sort.
type UpdateLog interface {
	GetUpdates(ctx context.Context, projectID, docID string, fromVersion, toVersion int64) ([]history.Update, error)
}

// Reverser undoes one update, returning the content before it was applied.
type Reverser interface {
	Reverse(content string, u history.Update) (string, error)
}

// EntrySink receives archive entries.
type EntrySink interface {
	AddEntry(path string, data []byte, mtime time.Time) error
}

// Engine rewinds documents.
type Engine struct {
	docs     DocumentSource
	updates  UpdateLog
	reverser Reverser
	logger   *slog.Logger
}

// NewEngine creates an engine. A nil logger uses slog.Default().
func NewEngine(docs DocumentSource, updates UpdateLog, reverser Reverser, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		docs:     docs,
		updates:  updates,
		reverser: reverser,
		logger:   logger,
	}
}

// state is the fold accumulator: the earliest content reached so far and
// the version it corresponds to.
type state struct {
	content string
	version int64
}

// Rewind writes the history of one document to sink and returns its
// manifest entry.
//
// Entries are written in this order: the current content, one entry per
// update (most recent first), then the earliest content reached. That is
// exactly 2 + len(updates) entries.
//
// Fetch failures return FETCH_FAILED and sink failures STREAM_FAILED.
// Updates that cannot be undone never cause an error.
func (e *Engine) Rewind(ctx context.Context, projectID, docID string, sink EntrySink) (*archive.ManifestEntry, error) {
	content, finalVersion, err := e.docs.GetDocument(ctx, projectID, docID)
	if err != nil {
		return nil, docerrors.ErrFetch(docID, "content").WithCause(err)
	}
	updates, err := e.updates.GetUpdates(ctx, projectID, docID, 0, finalVersion)
	if err != nil {
		return nil, docerrors.ErrFetch(docID, "updates").WithCause(err)
	}

	entry := &archive.ManifestEntry{
		ID:           docID,
		FinalVersion: finalVersion,
		Updates:      make([]archive.UpdateRef, 0, len(updates)),
	}

	endPath := EndPath(docID, finalVersion)
	if err := sink.AddEntry(endPath, []byte(content), time.Time{}); err != nil {
		return nil, docerrors.ErrStream(endPath).WithCause(err)
	}
	entry.Content.End = archive.Location{Path: endPath, Version: finalVersion}

	st := state{content: content, version: finalVersion}
	prevVersion := finalVersion + 1
	for _, u := range updates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if u.Version >= prevVersion {
			e.logger.Warn("out-of-order update",
				"project_id", projectID,
				"doc_id", docID,
				"version", u.Version,
				"previous_version", prevVersion,
			)
		}
		prevVersion = u.Version

		ref, err := e.emitUpdate(docID, u, sink)
		if err != nil {
			return nil, err
		}
		entry.Updates = append(entry.Updates, ref)

		previous, err := e.reverser.Reverse(st.content, u)
		if err != nil {
			entry.Failures++
			e.logger.Error("rewind update failed",
				"project_id", projectID,
				"doc_id", docID,
				"version", u.Version,
				"error", docerrors.ErrReconstruction(docID, u.Version).WithCause(err),
				"update", u,
			)
			continue
		}
		st = state{content: previous, version: u.Version}
	}

	startPath := StartPath(docID, st.version)
	if err := sink.AddEntry(startPath, []byte(st.content), time.Time{}); err != nil {
		return nil, docerrors.ErrStream(startPath).WithCause(err)
	}
	entry.Content.Start = archive.Location{Path: startPath, Version: st.version}

	e.logger.Debug("document rewound",
		"project_id", projectID,
		"doc_id", docID,
		"final_version", finalVersion,
		"start_version", st.version,
		"updates", len(updates),
		"failures", entry.Failures,
	)
	return entry, nil
}

// emitUpdate writes the audit entry for u, stamped with its start time.
func (e *Engine) emitUpdate(docID string, u history.Update, sink EntrySink) (archive.UpdateRef, error) {
	path := UpdatePath(docID, u.Version)
	data, err := json.Marshal(u)
	if err != nil {
		return archive.UpdateRef{}, docerrors.ErrStream(path).WithCause(err)
	}
	if err := sink.AddEntry(path, data, u.Timestamp()); err != nil {
		return archive.UpdateRef{}, docerrors.ErrStream(path).WithCause(err)
	}
	return archive.UpdateRef{Path: path, Version: u.Version, Timestamp: u.Meta.StartTS}, nil
}
