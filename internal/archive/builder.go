// Package archive writes and reads history archives: zip containers of
// named entries with a manifest.json index written last.
//
// The Builder streams the archive through an unbuffered pipe, so AddEntry
// cannot run ahead of whatever drains Reader() by more than the zip
// writer's internal buffer. Entries are never held in memory as a whole
// archive.
package archive

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// DefaultCompressionLevel is the deflate level used when none is set.
const DefaultCompressionLevel = 6

var (
	// ErrClosed is returned by AddEntry and Close after the builder was
	// closed or aborted.
	ErrClosed = errors.New("archive builder closed")

	// ErrDuplicateEntry is returned when a path was already added.
	ErrDuplicateEntry = errors.New("duplicate archive entry")

	// ErrAborted is what the reader observes when Abort is called with nil.
	ErrAborted = errors.New("archive aborted")
)

// Option configures a Builder.
type Option func(*Builder)

// WithCompressionLevel sets the deflate level (0 stores entries
// uncompressed, 9 is best compression).
func WithCompressionLevel(level int) Option {
	return func(b *Builder) { b.level = level }
}

// WithClock sets the time source for entries added without an mtime.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// Builder incrementally writes a zip archive to a pipe.
//
// AddEntry and Close must be called from a single goroutine. Abort may be
// called from any goroutine and unblocks a pending AddEntry.
type Builder struct {
	pr *io.PipeReader
	pw *io.PipeWriter
	zw *zip.Writer

	level int
	now   func() time.Time

	seen    map[string]struct{}
	entries int
	done    atomic.Bool
}

// NewBuilder creates a builder. Nothing is written until the first entry.
func NewBuilder(opts ...Option) *Builder {
	pr, pw := io.Pipe()
	b := &Builder{
		pr:    pr,
		pw:    pw,
		level: DefaultCompressionLevel,
		now:   time.Now,
		seen:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.zw = zip.NewWriter(pw)
	level := b.level
	b.zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})
	return b
}

// Reader returns the read end of the archive stream. Closing it with an
// error makes the next write in the builder fail with that error.
func (b *Builder) Reader() *io.PipeReader {
	return b.pr
}

// Entries returns the number of entries added so far.
func (b *Builder) Entries() int {
	return b.entries
}

// AddEntry writes one entry. A zero mtime is replaced by the current time.
// It blocks until the reader has consumed enough of the stream. A write
// failure terminates the stream and is returned.
func (b *Builder) AddEntry(path string, data []byte, mtime time.Time) error {
	if b.done.Load() {
		return ErrClosed
	}
	if path == "" {
		return fmt.Errorf("add entry: empty path")
	}
	if _, ok := b.seen[path]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, path)
	}
	if mtime.IsZero() {
		mtime = b.now()
	}

	method := zip.Deflate
	if b.level == flate.NoCompression {
		method = zip.Store
	}
	w, err := b.zw.CreateHeader(&zip.FileHeader{
		Name:     path,
		Method:   method,
		Modified: mtime,
	})
	if err != nil {
		return b.fail(fmt.Errorf("add entry %s: %w", path, err))
	}
	if _, err := w.Write(data); err != nil {
		return b.fail(fmt.Errorf("add entry %s: %w", path, err))
	}
	if err := b.zw.Flush(); err != nil {
		return b.fail(fmt.Errorf("add entry %s: %w", path, err))
	}

	b.seen[path] = struct{}{}
	b.entries++
	return nil
}

// Close writes the central directory and closes the stream. The reader
// sees io.EOF after the last byte.
func (b *Builder) Close() error {
	if !b.done.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := b.zw.Close(); err != nil {
		err = fmt.Errorf("finish archive: %w", err)
		_ = b.pw.CloseWithError(err)
		return err
	}
	return b.pw.Close()
}

// Abort terminates the stream. The reader observes err, or ErrAborted if
// err is nil. Abort after Close or a previous Abort has no effect.
func (b *Builder) Abort(err error) {
	if !b.done.CompareAndSwap(false, true) {
		return
	}
	if err == nil {
		err = ErrAborted
	}
	_ = b.pw.CloseWithError(err)
}

func (b *Builder) fail(err error) error {
	b.Abort(err)
	return err
}
