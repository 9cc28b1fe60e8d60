package export

import (
	"github.com/randalmurphal/docrewind/internal/archive"
	"github.com/randalmurphal/docrewind/internal/util"
)

// Stats summarizes one export.
type Stats struct {
	Documents int
	Updates   int
	// Failures counts updates that could not be reverse-applied
	Failures int
	// Bytes is the archive size
	Bytes int64
}

// Result is a completed export. The archive at Path stays on disk until
// Close is called; callers must Close once they are done reading it.
type Result struct {
	ID        string
	ProjectID string
	Path      string
	Stats     Stats

	file *util.ScopedFile
}

// Open opens the archive for reading. Close the archive before the Result.
func (r *Result) Open() (*archive.Archive, error) {
	return archive.OpenArchive(r.Path)
}

// Close acknowledges the result and removes the archive. Only the first
// call removes the file; later calls return the same result.
func (r *Result) Close() error {
	return r.file.Release()
}

// Outcome is the single value delivered by ExportAsync.
type Outcome struct {
	Result *Result
	Err    error
}
