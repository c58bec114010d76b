package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore writes files under root. Files are published at baseURL, which
// the server maps back onto root with a static file handler.
type DiskStore struct {
	root    string
	baseURL string
}

var _ FileStore = (*DiskStore)(nil)

// NewDiskStore creates root if needed.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating upload dir %s: %w", root, err)
	}
	if baseURL == "" {
		baseURL = "/uploads"
	}
	return &DiskStore{root: root, baseURL: baseURL}, nil
}

// Root is the directory files are written to.
func (d *DiskStore) Root() string { return d.root }

// Save writes r to a temporary file and renames it into place, so a
// half-written upload is never visible at its final path.
func (d *DiskStore) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("storage: creating dir for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("storage: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("storage: writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: closing %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("storage: publishing %s: %w", key, err)
	}
	return joinURL(d.baseURL, key), nil
}

// Delete removes the file. A missing file is not an error.
func (d *DiskStore) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(d.root, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: deleting %s: %w", key, err)
	}
	return nil
}

func (d *DiskStore) KeyForURL(url string) (string, bool) {
	return keyFromURL(d.baseURL, url)
}
