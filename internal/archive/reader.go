package archive

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"

	docerrors "github.com/randalmurphal/docrewind/internal/errors"
)

// ErrEntryNotFound is returned by ReadEntry for an unknown path.
var ErrEntryNotFound = errors.New("archive entry not found")

// EntryInfo describes one entry of an archive.
type EntryInfo struct {
	Path     string
	Size     uint64
	Modified time.Time
}

// Archive is a history archive opened for reading.
type Archive struct {
	zr     *zip.Reader
	closer io.Closer
	files  map[string]*zip.File
}

// OpenArchive opens the archive at path. The caller must Close it.
func OpenArchive(path string) (*Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, docerrors.ErrArchiveInvalid(path, "not a readable zip file").WithCause(err)
	}
	return newArchive(&rc.Reader, rc), nil
}

// ReadArchive reads an archive held in r, of the given size.
func ReadArchive(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, docerrors.ErrArchiveInvalid("<stream>", "not a readable zip file").WithCause(err)
	}
	return newArchive(zr, nil), nil
}

func newArchive(zr *zip.Reader, closer io.Closer) *Archive {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	return &Archive{zr: zr, closer: closer, files: files}
}

// Close releases the underlying file, if any.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Entries lists entries in archive order.
func (a *Archive) Entries() []EntryInfo {
	out := make([]EntryInfo, 0, len(a.zr.File))
	for _, f := range a.zr.File {
		out = append(out, EntryInfo{
			Path:     f.Name,
			Size:     f.UncompressedSize64,
			Modified: f.Modified,
		})
	}
	return out
}

// ReadEntry returns the content of one entry.
func (a *Archive) ReadEntry(path string) ([]byte, error) {
	f, ok := a.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, path)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", path, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", path, err)
	}
	return data, nil
}

// Manifest reads and decodes manifest.json.
func (a *Archive) Manifest() (*Manifest, error) {
	data, err := a.ReadEntry(ManifestPath)
	if err != nil {
		return nil, err
	}
	return DecodeManifest(data)
}
