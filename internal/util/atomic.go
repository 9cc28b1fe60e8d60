// Package util provides file helpers shared by the export and the CLI.
package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AtomicWriteFrom copies r into path atomically: the data goes to a
// temporary file in the same directory, which is synced and then renamed
// over path. A failed copy leaves path untouched. Returns the number of
// bytes written.
func AtomicWriteFrom(path string, r io.Reader, perm os.FileMode) (int64, error) {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	// Same directory, so the rename stays on one filesystem
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmpFile, r)
	if err != nil {
		_ = tmpFile.Close()
		return 0, fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return 0, fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return 0, fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("rename temp to final: %w", err)
	}

	success = true
	return n, nil
}

// CopyFileAtomic copies the file at src to dst with AtomicWriteFrom.
func CopyFileAtomic(dst, src string, perm os.FileMode) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = f.Close() }()
	return AtomicWriteFrom(dst, f, perm)
}
