package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// ScopedFile is a temporary file that is removed exactly once, by the
// first call to Release. Release is safe to call from any goroutine and
// any number of times.
type ScopedFile struct {
	*os.File
	path string

	once       sync.Once
	releaseErr error
}

// NewScopedFile creates a temporary file in dir (os.TempDir() if empty)
// named after pattern, as os.CreateTemp does.
func NewScopedFile(dir, pattern string) (*ScopedFile, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &ScopedFile{File: f, path: f.Name()}, nil
}

// Path returns the file's path.
func (s *ScopedFile) Path() string {
	return s.path
}

// Release closes and removes the file. Later calls return the first
// call's result.
func (s *ScopedFile) Release() error {
	s.once.Do(func() {
		// Close may already have been called by the writer
		if err := s.File.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			s.releaseErr = fmt.Errorf("close temp file: %w", err)
		}
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.releaseErr = errors.Join(s.releaseErr, fmt.Errorf("remove temp file: %w", err))
		}
	})
	return s.releaseErr
}
