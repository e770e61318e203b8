package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/itemdesk/internal/apperr"
)

const fileExt = ".json"

// FS implements Provider with one file per key inside a directory.
type FS struct {
	root string // absolute path to the data directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string { return f.root }

// Path returns the absolute file path backing key.
func (f *FS) Path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(f.root, key+fileExt), nil
}

// KeyForPath is the inverse of Path. It returns false for files that are
// not slot files of this provider.
func (f *FS) KeyForPath(p string) (string, bool) {
	if filepath.Dir(p) != f.root {
		return "", false
	}
	name := filepath.Base(p)
	if !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	key := strings.TrimSuffix(name, fileExt)
	if ValidateKey(key) != nil {
		return "", false
	}
	return key, true
}

// Get returns the contents of the slot file.
func (f *FS) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: get %s: %w", key, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// Set atomically writes value: tmp file → fsync → rename.
func (f *FS) Set(_ context.Context, key string, value []byte) error {
	p, err := f.Path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".itemdesk-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes the slot file if it exists.
func (f *FS) Delete(_ context.Context, key string) error {
	p, err := f.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Keys lists the slot files in the data directory.
func (f *FS) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := f.KeyForPath(filepath.Join(f.root, e.Name())); ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op for the file backend.
func (f *FS) Close() error { return nil }

var _ Provider = (*FS)(nil)
