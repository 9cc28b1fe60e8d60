package archive

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain collects the builder's stream in the background.
func drain(b *Builder) <-chan []byte {
	out := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(b.Reader())
		out <- data
	}()
	return out
}

func openBytes(t *testing.T, data []byte) *Archive {
	t.Helper()
	a, err := ReadArchive(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return a
}

func TestBuilder_RoundTrip(t *testing.T) {
	t.Parallel()

	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBuilder()
	stream := drain(b)

	require.NoError(t, b.AddEntry("D/content/end/5", []byte("ABCDE"), mtime))
	require.NoError(t, b.AddEntry("D/updates/5", []byte(`{"v":5}`), mtime.Add(time.Hour)))
	require.NoError(t, b.AddEntry("empty", nil, mtime))
	require.NoError(t, b.Close())
	assert.Equal(t, 3, b.Entries())

	a := openBytes(t, <-stream)
	entries := a.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "D/content/end/5", entries[0].Path)
	assert.Equal(t, "D/updates/5", entries[1].Path)
	assert.True(t, entries[1].Modified.Equal(mtime.Add(time.Hour)), "got %v", entries[1].Modified)

	data, err := a.ReadEntry("D/content/end/5")
	require.NoError(t, err)
	assert.Equal(t, "ABCDE", string(data))

	data, err = a.ReadEntry("empty")
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = a.ReadEntry("missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestBuilder_CompressionLevels(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("history "), 4096)
	sizes := map[int]int{}
	for _, level := range []int{0, 1, 9} {
		b := NewBuilder(WithCompressionLevel(level))
		stream := drain(b)
		require.NoError(t, b.AddEntry("doc", payload, time.Time{}))
		require.NoError(t, b.Close())
		data := <-stream
		sizes[level] = len(data)

		got, err := openBytes(t, data).ReadEntry("doc")
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
	assert.Greater(t, sizes[0], len(payload), "level 0 stores entries")
	assert.Less(t, sizes[9], sizes[0])
}

func TestBuilder_ZeroMtimeUsesClock(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2023, 7, 4, 8, 30, 0, 0, time.UTC)
	b := NewBuilder(WithClock(func() time.Time { return fixed }))
	stream := drain(b)
	require.NoError(t, b.AddEntry("a", []byte("x"), time.Time{}))
	require.NoError(t, b.Close())

	entries := openBytes(t, <-stream).Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Modified.Equal(fixed), "got %v", entries[0].Modified)
}

func TestBuilder_DuplicateEntry(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	stream := drain(b)
	require.NoError(t, b.AddEntry("a", []byte("1"), time.Time{}))
	err := b.AddEntry("a", []byte("2"), time.Time{})
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	// The stream is still usable after a rejected duplicate
	require.NoError(t, b.AddEntry("b", []byte("3"), time.Time{}))
	require.NoError(t, b.Close())

	a := openBytes(t, <-stream)
	assert.Len(t, a.Entries(), 2)
	data, err := a.ReadEntry("a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))
}

func TestBuilder_EmptyPath(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	defer b.Abort(nil)
	assert.Error(t, b.AddEntry("", []byte("x"), time.Time{}))
}

func TestBuilder_Backpressure(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 1<<20)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	b := NewBuilder(WithCompressionLevel(0))
	added := make(chan error, 1)
	go func() {
		added <- b.AddEntry("big", payload, time.Time{})
	}()

	// Nobody is reading, so the write cannot complete.
	select {
	case err := <-added:
		t.Fatalf("AddEntry returned without a reader: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	stream := drain(b)
	select {
	case err := <-added:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("AddEntry did not complete once the reader drained")
	}
	require.NoError(t, b.Close())

	got, err := openBytes(t, <-stream).ReadEntry("big")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestBuilder_AbortUnblocksWriterAndReader(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 1<<20)
	b := NewBuilder(WithCompressionLevel(0))
	added := make(chan error, 1)
	go func() {
		added <- b.AddEntry("big", payload, time.Time{})
	}()

	cause := errors.New("document fetch failed")
	time.Sleep(20 * time.Millisecond)
	b.Abort(cause)

	select {
	case err := <-added:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("AddEntry still blocked after Abort")
	}

	_, err := io.ReadAll(b.Reader())
	assert.ErrorIs(t, err, cause)

	assert.ErrorIs(t, b.AddEntry("after", nil, time.Time{}), ErrClosed)
	assert.ErrorIs(t, b.Close(), ErrClosed)
}

func TestBuilder_AbortNilError(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.Abort(nil)
	_, err := io.ReadAll(b.Reader())
	assert.ErrorIs(t, err, ErrAborted)

	// Second abort is a no-op
	b.Abort(errors.New("ignored"))
	_, err = b.Reader().Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrAborted)
}

func TestBuilder_ReaderClosedFailsWrite(t *testing.T) {
	t.Parallel()

	b := NewBuilder(WithCompressionLevel(0))
	sinkErr := errors.New("disk full")
	_ = b.Reader().CloseWithError(sinkErr)

	err := b.AddEntry("a", make([]byte, 64<<10), time.Time{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sinkErr)

	// The failed write terminated the stream
	assert.ErrorIs(t, b.AddEntry("b", nil, time.Time{}), ErrClosed)
}

func TestBuilder_CloseTwice(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	stream := drain(b)
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Close(), ErrClosed)

	// An archive with no entries is still a valid zip
	a := openBytes(t, <-stream)
	assert.Empty(t, a.Entries())
}

func TestManifest_EncodeRoundTrip(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		ProjectID: "p1",
		Docs: []ManifestEntry{{
			ID:           "D",
			FinalVersion: 5,
			Content: ContentRange{
				End:   Location{Path: "D/content/end/5", Version: 5},
				Start: Location{Path: "D/content/start/5", Version: 5},
			},
			Failures: 2,
		}},
	}
	data, err := m.Encode()
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"projectId": "p1",
		"docs": [{
			"id": "D",
			"finalVersion": 5,
			"content": {
				"end":   {"path": "D/content/end/5", "version": 5},
				"start": {"path": "D/content/start/5", "version": 5}
			},
			"updates": []
		}]
	}`, string(data))
	assert.Contains(t, string(data), "\n  \"docs\": [")

	got, err := DecodeManifest(data)
	require.NoError(t, err)
	assert.Equal(t, "D", got.Docs[0].ID)
	assert.Zero(t, got.Docs[0].Failures)
}

func TestManifest_EmptyDocs(t *testing.T) {
	t.Parallel()

	data, err := (&Manifest{ProjectID: "p1"}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"projectId":"p1","docs":[]}`, string(data))
}
