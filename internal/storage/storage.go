// Package storage keeps uploaded files and checks them for malware.
//
// Two FileStore backends exist: DiskStore writes under a local directory
// served at /uploads, and MinIOStore puts objects in an S3-compatible
// bucket. Keys are always "<category>/<name>" with a server-generated name,
// never a client-supplied path.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// FileStore saves uploaded files and returns the URL they are served at.
type FileStore interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyForURL maps a URL returned by Save back to its key. ok is false
	// for URLs this store did not produce, such as external links.
	KeyForURL(url string) (key string, ok bool)
}

// Scanner inspects a file before it is stored. It returns ErrInfected when
// the file must be rejected.
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// ErrInfected is returned by a Scanner that found malware.
var ErrInfected = errors.New("storage: file failed malware scan")

// ErrInvalidKey is returned for keys that could escape the store's root.
var ErrInvalidKey = errors.New("storage: invalid object key")

// CleanKey validates key and returns it in canonical form.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

// keyFromURL strips base from url and validates the remainder as a key.
func keyFromURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key, err := CleanKey(strings.TrimPrefix(url, prefix))
	if err != nil {
		return "", false
	}
	return key, true
}

// joinURL appends key to base with exactly one slash between them.
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
