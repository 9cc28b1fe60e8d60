// Package export produces the history archive of a project.
//
// An export compacts the project's pending updates, lists its documents,
// rewinds each document in turn into one archive, and writes manifest.json
// last. The archive is streamed into a temporary file while it is being
// generated: the generator and the file writer run as two goroutines on
// either end of a pipe, and a failure on either side stops the other.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/docrewind/internal/archive"
	docerrors "github.com/randalmurphal/docrewind/internal/errors"
	"github.com/randalmurphal/docrewind/internal/rewind"
	"github.com/randalmurphal/docrewind/internal/util"
)

// Backend is the history store an export reads from.
type Backend interface {
	rewind.DocumentSource
	rewind.UpdateLog

	// CompactProject flushes pending updates so the update log is complete.
	CompactProject(ctx context.Context, projectID string) (int, error)
	// ListDocIDs returns the documents of a project in export order.
	ListDocIDs(ctx context.Context, projectID string) ([]string, error)
}

// Options configures an Exporter.
type Options struct {
	// TempDir holds archives while they are generated (default: os.TempDir())
	TempDir string

	// CompressionLevel is the deflate level, 0 to 9
	CompressionLevel int

	// OnStage, if set, is called on every stage transition. It runs on the
	// generating goroutine and must not block.
	OnStage func(projectID string, s Stage)
}

// Exporter runs exports. It is safe for concurrent use; each export has
// its own compaction, archive and temporary file.
type Exporter struct {
	backend Backend
	engine  *rewind.Engine
	opts    Options
	logger  *slog.Logger
}

// New creates an exporter. A nil logger uses slog.Default().
func New(backend Backend, reverser rewind.Reverser, opts Options, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		backend: backend,
		engine:  rewind.NewEngine(backend, backend, reverser, logger),
		opts:    opts,
		logger:  logger,
	}
}

// run tracks one export.
type run struct {
	id        string
	projectID string
	stage     Stage
	stats     Stats
	logger    *slog.Logger
	onStage   func(string, Stage)
}

func (r *run) enter(s Stage) {
	r.stage = s
	r.logger.Debug("export stage", "stage", s.String())
	if r.onStage != nil {
		r.onStage(r.projectID, s)
	}
}

// Export builds the history archive of a project.
//
// On success the archive is left in a temporary file owned by the returned
// Result; the caller reads it from Result.Path and then calls
// Result.Close to remove it. On failure the temporary file is removed
// before Export returns.
//
// Errors carry the failing stage's code: COMPACTION_FAILED,
// ENUMERATION_FAILED, FETCH_FAILED or STREAM_FAILED. Context cancellation
// returns the context's error.
func (e *Exporter) Export(ctx context.Context, projectID string) (*Result, error) {
	id := uuid.NewString()
	r := &run{
		id:        id,
		projectID: projectID,
		logger:    e.logger.With("export_id", id, "project_id", projectID),
		onStage:   e.opts.OnStage,
	}
	r.logger.Info("export started")
	start := time.Now()

	tmp, err := newTempFile(e.opts.TempDir, tempPattern(projectID))
	if err != nil {
		return nil, e.failed(r, docerrors.ErrStream("create temporary file").WithCause(err))
	}

	builder := archive.NewBuilder(archive.WithCompressionLevel(e.opts.CompressionLevel))

	s := &sink{file: tmp}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.generate(gctx, r, builder)
	})
	g.Go(func() error {
		return s.drain(builder.Reader())
	})

	err = g.Wait()
	r.stats.Bytes = s.n
	if s.err != nil {
		// The generator only saw a closed pipe
		err = s.err
	}
	if err != nil {
		if relErr := tmp.Release(); relErr != nil {
			r.logger.Warn("remove temporary archive failed", "path", tmp.Path(), "error", relErr)
		}
		return nil, e.failed(r, err)
	}

	r.enter(StageCompleted)
	r.logger.Info("export completed",
		"path", tmp.Path(),
		"documents", r.stats.Documents,
		"updates", r.stats.Updates,
		"failures", r.stats.Failures,
		"bytes", r.stats.Bytes,
		"duration", time.Since(start),
	)
	return &Result{
		ID:        r.id,
		ProjectID: projectID,
		Path:      tmp.Path(),
		Stats:     r.stats,
		file:      tmp,
	}, nil
}

// ExportAsync runs Export in a new goroutine. The returned channel
// receives exactly one Outcome. A successful Result must still be closed.
func (e *Exporter) ExportAsync(ctx context.Context, projectID string) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		res, err := e.Export(ctx, projectID)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

func (e *Exporter) failed(r *run, err error) error {
	failedAt := r.stage
	r.enter(StageFailed)
	r.logger.Error("export failed", "stage", failedAt.String(), "error", err)
	return err
}

// generate is the producing end of the pipe. Any error aborts the builder
// so the consumer stops reading.
func (e *Exporter) generate(ctx context.Context, r *run, b *archive.Builder) (err error) {
	defer func() {
		if err != nil {
			b.Abort(err)
		}
	}()

	r.enter(StageCompacting)
	if err := e.compact(ctx, r); err != nil {
		return err
	}

	r.enter(StageEnumerating)
	ids, err := e.backend.ListDocIDs(ctx, r.projectID)
	if err != nil {
		return docerrors.ErrEnumeration(r.projectID).WithCause(err)
	}

	r.enter(StageGenerating)
	manifest := archive.Manifest{
		ProjectID: r.projectID,
		Docs:      make([]archive.ManifestEntry, 0, len(ids)),
	}
	for _, docID := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := e.engine.Rewind(ctx, r.projectID, docID, b)
		if err != nil {
			return err
		}
		manifest.Docs = append(manifest.Docs, *entry)
		r.stats.Documents++
		r.stats.Updates += len(entry.Updates)
		r.stats.Failures += entry.Failures
	}

	r.enter(StageFinalizing)
	data, err := manifest.Encode()
	if err != nil {
		return docerrors.ErrStream(archive.ManifestPath).WithCause(err)
	}
	if err := b.AddEntry(archive.ManifestPath, data, time.Time{}); err != nil {
		return docerrors.ErrStream(archive.ManifestPath).WithCause(err)
	}
	if err := b.Close(); err != nil {
		return docerrors.ErrStream("finish archive").WithCause(err)
	}
	return nil
}

// compact runs a compaction of its own under the export's context. Every
// update queued before the export started is in the log afterwards.
func (e *Exporter) compact(ctx context.Context, r *run) error {
	n, err := e.backend.CompactProject(ctx, r.projectID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return docerrors.ErrCompaction(r.projectID).WithCause(err)
	}
	r.logger.Debug("project compacted", "updates", n)
	return nil
}

// sink is the consuming end of the pipe: it copies the archive stream
// into the temporary file.
type sink struct {
	file *util.ScopedFile
	n    int64
	// err is set when the sink itself failed, as STREAM_FAILED
	err error
}

// drain copies until the stream ends. A read error is the generator's
// abort error and is returned as is. A write error closes the pipe so the
// generator stops.
func (s *sink) drain(pr *io.PipeReader) error {
	var writeErr error
	n, err := io.Copy(writerFunc(func(p []byte) (int, error) {
		n, err := s.file.Write(p)
		if err != nil {
			writeErr = err
		}
		return n, err
	}), pr)
	s.n = n
	if err == nil {
		if err = s.file.Sync(); err == nil {
			err = s.file.Close()
		}
		writeErr = err
	}
	if writeErr != nil {
		s.err = docerrors.ErrStream(fmt.Sprintf("write %s", s.file.Path())).WithCause(writeErr)
		_ = pr.CloseWithError(s.err)
		return s.err
	}
	return err
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// newTempFile is replaced in tests.
var newTempFile = util.NewScopedFile

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// tempPattern names the temporary archive after the project.
func tempPattern(projectID string) string {
	return "docrewind-" + unsafeNameChars.ReplaceAllString(projectID, "_") + "-*.zip"
}
