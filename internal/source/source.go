// Package source resolves asset keys to the flat files holding their raw
// price history.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ErrUnknownAsset is returned for keys that are not configured.
var ErrUnknownAsset = errors.New("unknown asset")

// SeriesSource maps asset keys to readable raw series.
type SeriesSource interface {
	// Open returns a reader over the raw table for key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Fingerprint identifies the current content of key; it changes when
	// the underlying data changes.
	Fingerprint(key string) (string, error)
	// Keys lists the configured asset keys in sorted order.
	Keys() []string
}

// FileSource serves CSV files from a directory.
type FileSource struct {
	dir   string
	files map[string]string
}

// NewFileSource maps each key to files[key] under dir. Absolute file names
// are used as they are.
func NewFileSource(dir string, files map[string]string) *FileSource {
	copied := make(map[string]string, len(files))
	for k, v := range files {
		copied[k] = v
	}
	return &FileSource{dir: dir, files: copied}
}

// Path returns the file backing key.
func (s *FileSource) Path(key string) (string, error) {
	name, ok := s.files[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAsset, key)
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	return filepath.Join(s.dir, name), nil
}

func (s *FileSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("asset %q: failed to open %s: %w", key, path, err)
	}
	return f, nil
}

// Fingerprint combines the file size and modification time.
func (s *FileSource) Fingerprint(key string) (string, error) {
	path, err := s.Path(key)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("asset %q: failed to stat %s: %w", key, path, err)
	}
	return fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixNano()), nil
}

func (s *FileSource) Keys() []string {
	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is configured.
func (s *FileSource) Has(key string) bool {
	_, ok := s.files[key]
	return ok
}
