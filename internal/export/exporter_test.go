package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/docrewind/internal/archive"
	docerrors "github.com/randalmurphal/docrewind/internal/errors"
	"github.com/randalmurphal/docrewind/internal/history"
	"github.com/randalmurphal/docrewind/internal/storage"
	"github.com/randalmurphal/docrewind/internal/util"
)

// faultyBackend wraps a real backend and fails the stages it is told to.
type faultyBackend struct {
	*storage.DatabaseBackend

	compactErr error
	listErr    error
	docErr     error

	// compactHook, if set, runs before every compaction
	compactHook func(ctx context.Context) error
}

func (b *faultyBackend) CompactProject(ctx context.Context, projectID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if b.compactHook != nil {
		if err := b.compactHook(ctx); err != nil {
			return 0, err
		}
	}
	if b.compactErr != nil {
		return 0, b.compactErr
	}
	return b.DatabaseBackend.CompactProject(ctx, projectID)
}

func (b *faultyBackend) ListDocIDs(ctx context.Context, projectID string) ([]string, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.DatabaseBackend.ListDocIDs(ctx, projectID)
}

func (b *faultyBackend) GetDocument(ctx context.Context, projectID, docID string) (string, int64, error) {
	if b.docErr != nil {
		return "", 0, b.docErr
	}
	return b.DatabaseBackend.GetDocument(ctx, projectID, docID)
}

func insert(docID string, v int64, pos int, text string) history.Update {
	return history.Update{
		DocID:   docID,
		Version: v,
		Op:      []history.OpComponent{{Pos: pos, Insert: text}},
		Meta:    history.Meta{StartTS: 1_700_000_000_000 + v*1000, EndTS: 1_700_000_000_500 + v*1000, UserID: "alice"},
	}
}

// seed stores "ABCDE" at version 5 whose last two updates typed D and E,
// and an untouched second document. Updates stay pending until compaction.
func seed(t *testing.T, updates ...history.Update) *faultyBackend {
	t.Helper()
	backend := storage.NewTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.SaveDocument(ctx, "p1", "D", "ABCDE", 5))
	require.NoError(t, backend.SaveDocument(ctx, "p1", "notes", "todo", 1))
	if updates == nil {
		updates = []history.Update{insert("D", 4, 3, "D"), insert("D", 5, 4, "E")}
	}
	require.NoError(t, backend.QueueUpdates(ctx, "p1", updates))
	return &faultyBackend{DatabaseBackend: backend}
}

type stageRecorder struct {
	mu     sync.Mutex
	stages []Stage
}

func (r *stageRecorder) record(_ string, s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, s)
}

func (r *stageRecorder) get() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Stage(nil), r.stages...)
}

func newTestExporter(t *testing.T, backend Backend) (*Exporter, string, *stageRecorder, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	rec := &stageRecorder{}
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	exp := New(backend, history.TextReverser{}, Options{
		TempDir:          dir,
		CompressionLevel: archive.DefaultCompressionLevel,
		OnStage:          rec.record,
	}, logger)
	return exp, dir, rec, &logs
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary archive left behind")
}

func readEntry(t *testing.T, a *archive.Archive, path string) string {
	t.Helper()
	data, err := a.ReadEntry(path)
	require.NoError(t, err)
	return string(data)
}

func TestExport_RewindsEveryDocument(t *testing.T) {
	t.Parallel()
	exp, dir, rec, _ := newTestExporter(t, seed(t))

	res, err := exp.Export(context.Background(), "p1")
	require.NoError(t, err)
	defer func() { _ = res.Close() }()

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "p1", res.ProjectID)
	assert.Equal(t, dir, filepath.Dir(res.Path))
	assert.Equal(t, []Stage{
		StageCompacting, StageEnumerating, StageGenerating, StageFinalizing, StageCompleted,
	}, rec.get())

	a, err := res.Open()
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	var paths []string
	for _, e := range a.Entries() {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{
		"D/content/end/5",
		"D/updates/5",
		"D/updates/4",
		"D/content/start/4",
		"notes/content/end/1",
		"notes/content/start/1",
		archive.ManifestPath,
	}, paths)

	assert.Equal(t, "ABCDE", readEntry(t, a, "D/content/end/5"))
	assert.Equal(t, "ABC", readEntry(t, a, "D/content/start/4"))
	assert.Equal(t, "todo", readEntry(t, a, "notes/content/start/1"))

	var u history.Update
	require.NoError(t, json.Unmarshal([]byte(readEntry(t, a, "D/updates/5")), &u))
	assert.Equal(t, insert("D", 5, 4, "E"), u)

	m, err := a.Manifest()
	require.NoError(t, err)
	assert.Equal(t, "p1", m.ProjectID)
	require.Len(t, m.Docs, 2)
	doc := m.Docs[0]
	assert.Equal(t, "D", doc.ID)
	assert.Equal(t, int64(5), doc.FinalVersion)
	assert.Equal(t, archive.Location{Path: "D/content/end/5", Version: 5}, doc.Content.End)
	assert.Equal(t, archive.Location{Path: "D/content/start/4", Version: 4}, doc.Content.Start)
	assert.Equal(t, []archive.UpdateRef{
		{Path: "D/updates/5", Version: 5, Timestamp: 1_700_000_005_000},
		{Path: "D/updates/4", Version: 4, Timestamp: 1_700_000_004_000},
	}, doc.Updates)
	assert.Empty(t, m.Docs[1].Updates)

	info, err := os.Stat(res.Path)
	require.NoError(t, err)
	assert.Equal(t, Stats{Documents: 2, Updates: 2, Failures: 0, Bytes: info.Size()}, res.Stats)
}

func TestExport_FailedUpdateKeepsGoing(t *testing.T) {
	t.Parallel()
	// v4 claims to have typed "Z" where the text has "D", so it cannot be undone.
	backend := seed(t, insert("D", 3, 2, "C"), insert("D", 4, 3, "Z"), insert("D", 5, 4, "E"))
	exp, _, _, logs := newTestExporter(t, backend)

	res, err := exp.Export(context.Background(), "p1")
	require.NoError(t, err)
	defer func() { _ = res.Close() }()

	assert.Equal(t, 1, res.Stats.Failures)
	assert.Equal(t, 3, res.Stats.Updates)

	a, err := res.Open()
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	m, err := a.Manifest()
	require.NoError(t, err)
	doc := m.Docs[0]
	assert.Equal(t, archive.Location{Path: "D/content/start/3", Version: 3}, doc.Content.Start)
	assert.Equal(t, "ABD", readEntry(t, a, "D/content/start/3"))
	assert.Len(t, doc.Updates, 3, "failed updates are still archived")

	assert.Contains(t, logs.String(), "rewind update failed")
}

func TestExport_EmptyProject(t *testing.T) {
	t.Parallel()
	exp, _, _, _ := newTestExporter(t, &faultyBackend{DatabaseBackend: storage.NewTestBackend(t)})

	res, err := exp.Export(context.Background(), "empty")
	require.NoError(t, err)
	defer func() { _ = res.Close() }()

	a, err := res.Open()
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	entries := a.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, archive.ManifestPath, entries[0].Path)

	raw := readEntry(t, a, archive.ManifestPath)
	assert.Contains(t, raw, `"docs": []`)
	assert.Contains(t, raw, `"projectId": "empty"`)
	assert.Equal(t, Stats{Bytes: res.Stats.Bytes}, res.Stats)
}

func TestExport_CompactsPendingUpdates(t *testing.T) {
	t.Parallel()
	backend := seed(t)
	exp, _, _, _ := newTestExporter(t, backend)

	res, err := exp.Export(context.Background(), "p1")
	require.NoError(t, err)
	defer func() { _ = res.Close() }()

	pending, err := backend.CountPending(context.Background(), "p1")
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Equal(t, 2, res.Stats.Updates)
}

func TestExport_StageFailures(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	tests := []struct {
		name      string
		setup     func(b *faultyBackend)
		code      docerrors.Code
		lastStage Stage
	}{
		{
			name:      "compaction",
			setup:     func(b *faultyBackend) { b.compactErr = boom },
			code:      docerrors.CodeCompactionFailed,
			lastStage: StageCompacting,
		},
		{
			name:      "enumeration",
			setup:     func(b *faultyBackend) { b.listErr = boom },
			code:      docerrors.CodeEnumerationFailed,
			lastStage: StageEnumerating,
		},
		{
			name:      "fetch",
			setup:     func(b *faultyBackend) { b.docErr = boom },
			code:      docerrors.CodeFetchFailed,
			lastStage: StageGenerating,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend := seed(t)
			tt.setup(backend)
			exp, dir, rec, logs := newTestExporter(t, backend)

			res, err := exp.Export(context.Background(), "p1")
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, docerrors.HasCode(err, tt.code), "got %v", err)
			assert.ErrorIs(t, err, boom)

			stages := rec.get()
			require.GreaterOrEqual(t, len(stages), 2)
			assert.Equal(t, tt.lastStage, stages[len(stages)-2])
			assert.Equal(t, StageFailed, stages[len(stages)-1])
			assert.Contains(t, logs.String(), `"stage":"`+tt.lastStage.String()+`"`)

			assertDirEmpty(t, dir)
		})
	}
}

func TestExport_ContextCanceled(t *testing.T) {
	t.Parallel()
	exp, dir, _, _ := newTestExporter(t, seed(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exp.Export(ctx, "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assertDirEmpty(t, dir)
}

func TestExport_CanceledWhileGenerating(t *testing.T) {
	t.Parallel()
	backend := seed(t)
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exp := New(backend, history.TextReverser{}, Options{
		TempDir: dir,
		OnStage: func(_ string, s Stage) {
			if s == StageGenerating {
				cancel()
			}
		},
	}, nil)

	_, err := exp.Export(ctx, "p1")
	assert.ErrorIs(t, err, context.Canceled)
	assertDirEmpty(t, dir)
}

func TestExport_MissingTempDir(t *testing.T) {
	t.Parallel()
	backend := seed(t)
	rec := &stageRecorder{}
	exp := New(backend, history.TextReverser{}, Options{
		TempDir: filepath.Join(t.TempDir(), "missing"),
		OnStage: rec.record,
	}, nil)

	_, err := exp.Export(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, docerrors.HasCode(err, docerrors.CodeStreamFailed))
	assert.Equal(t, []Stage{StageFailed}, rec.get())
}

// Not parallel: replaces newTempFile.
func TestExport_SinkWriteFailure(t *testing.T) {
	orig := newTempFile
	t.Cleanup(func() { newTempFile = orig })
	newTempFile = func(dir, pattern string) (*util.ScopedFile, error) {
		f, err := orig(dir, pattern)
		if err != nil {
			return nil, err
		}
		// Every write to the archive now fails.
		_ = f.File.Close()
		return f, nil
	}

	exp, dir, rec, _ := newTestExporter(t, seed(t))
	res, err := exp.Export(context.Background(), "p1")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, docerrors.HasCode(err, docerrors.CodeStreamFailed), "got %v", err)
	assert.ErrorIs(t, err, os.ErrClosed)

	stages := rec.get()
	assert.Equal(t, StageFailed, stages[len(stages)-1])
	assertDirEmpty(t, dir)
}

func TestResult_CloseRemovesArchive(t *testing.T) {
	t.Parallel()
	exp, dir, _, _ := newTestExporter(t, seed(t))

	res, err := exp.Export(context.Background(), "p1")
	require.NoError(t, err)
	assert.FileExists(t, res.Path)

	require.NoError(t, res.Close())
	assert.NoFileExists(t, res.Path)
	assert.NoError(t, res.Close(), "second close is a no-op")
	assertDirEmpty(t, dir)
}

func TestExportAsync_DeliversOneOutcome(t *testing.T) {
	t.Parallel()
	exp, _, _, _ := newTestExporter(t, seed(t))

	out := <-exp.ExportAsync(context.Background(), "p1")
	require.NoError(t, out.Err)
	require.NotNil(t, out.Result)
	defer func() { _ = out.Result.Close() }()
	assert.Equal(t, 2, out.Result.Stats.Documents)
}

func TestExportAsync_DeliversError(t *testing.T) {
	t.Parallel()
	backend := seed(t)
	backend.listErr = errors.New("down")
	exp, _, _, _ := newTestExporter(t, backend)

	out := <-exp.ExportAsync(context.Background(), "p1")
	assert.Nil(t, out.Result)
	assert.True(t, docerrors.HasCode(out.Err, docerrors.CodeEnumerationFailed))
}

func TestExport_ConcurrentExportsAreIndependent(t *testing.T) {
	t.Parallel()
	exp, _, _, _ := newTestExporter(t, seed(t))

	const n = 4
	outs := make([]<-chan Outcome, n)
	for i := range outs {
		outs[i] = exp.ExportAsync(context.Background(), "p1")
	}

	seen := make(map[string]bool)
	for _, ch := range outs {
		out := <-ch
		require.NoError(t, out.Err)
		assert.False(t, seen[out.Result.Path], "exports must not share a file")
		seen[out.Result.Path] = true
		assert.Equal(t, 2, out.Result.Stats.Updates)
		require.NoError(t, out.Result.Close())
	}
}

// An export must not depend on another export's compaction: cancelling
// one leaves the other running, and the other still sees the updates
// queued after the first one started compacting.
func TestExport_CompactionIsPerExport(t *testing.T) {
	t.Parallel()
	backend := seed(t, insert("D", 4, 3, "D"))

	var calls atomic.Int32
	blocked := make(chan struct{})
	backend.compactHook = func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			close(blocked)
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}
	exp, dir, _, _ := newTestExporter(t, backend)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	outA := exp.ExportAsync(ctxA, "p1")
	<-blocked

	require.NoError(t, backend.QueueUpdates(context.Background(), "p1",
		[]history.Update{insert("D", 5, 4, "E")}))

	ctxB, cancelB := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelB()
	outB := exp.ExportAsync(ctxB, "p1")
	cancelA()

	a := <-outA
	assert.ErrorIs(t, a.Err, context.Canceled)

	b := <-outB
	require.NoError(t, b.Err)
	require.NoError(t, ctxB.Err())
	assert.Equal(t, 2, b.Result.Stats.Updates, "updates queued before the export are compacted")
	assert.Equal(t, int32(2), calls.Load())
	require.NoError(t, b.Result.Close())
	assertDirEmpty(t, dir)
}

func TestSink_WriteFailureClosesPipe(t *testing.T) {
	t.Parallel()
	f, err := util.NewScopedFile(t.TempDir(), "sink-*")
	require.NoError(t, err)
	defer func() { _ = f.Release() }()
	require.NoError(t, f.File.Close())

	pr, pw := io.Pipe()
	writerErr := make(chan error, 1)
	go func() {
		for {
			if _, err := pw.Write([]byte("chunk")); err != nil {
				writerErr <- err
				return
			}
		}
	}()

	s := &sink{file: f}
	err = s.drain(pr)
	require.Error(t, err)
	assert.True(t, docerrors.HasCode(err, docerrors.CodeStreamFailed))
	assert.Same(t, s.err, err)

	werr := <-writerErr
	assert.True(t, docerrors.HasCode(werr, docerrors.CodeStreamFailed), "producer sees the sink's error")
}

func TestSink_PassesThroughProducerAbort(t *testing.T) {
	t.Parallel()
	f, err := util.NewScopedFile(t.TempDir(), "sink-*")
	require.NoError(t, err)
	defer func() { _ = f.Release() }()

	abort := errors.New("producer gave up")
	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte("partial"))
		_ = pw.CloseWithError(abort)
	}()

	s := &sink{file: f}
	err = s.drain(pr)
	assert.Same(t, abort, err)
	assert.NoError(t, s.err)
	assert.Equal(t, int64(len("partial")), s.n)
}

func TestSink_CopiesAndCloses(t *testing.T) {
	t.Parallel()
	f, err := util.NewScopedFile(t.TempDir(), "sink-*")
	require.NoError(t, err)
	defer func() { _ = f.Release() }()

	pr, pw := io.Pipe()
	payload := strings.Repeat("history ", 10_000)
	go func() {
		_, _ = io.Copy(pw, strings.NewReader(payload))
		_ = pw.Close()
	}()

	s := &sink{file: f}
	require.NoError(t, s.drain(pr))
	assert.Equal(t, int64(len(payload)), s.n)

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	_, err = f.File.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed, "sink closes the file on success")
}

func TestTempPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		projectID string
		want      string
	}{
		{"p1", "docrewind-p1-*.zip"},
		{"my project/../x", "docrewind-my_project_.._x-*.zip"},
		{"a*b?c", "docrewind-a_b_c-*.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.projectID, func(t *testing.T) {
			got := tempPattern(tt.projectID)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, string(os.PathSeparator))
		})
	}
}

func TestStage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "compacting", StageCompacting.String())
	assert.Equal(t, "unknown", Stage(99).String())
	assert.True(t, StageCompleted.Terminal())
	assert.True(t, StageFailed.Terminal())
	assert.False(t, StageGenerating.Terminal())
}
