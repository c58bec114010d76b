package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"gallery/abc.jpg", false},
		{"program/2026/order.pdf", false},
		{"", true},
		{"/etc/passwd", true},
		{"../secrets", true},
		{"gallery/../../x", true},
		{"gallery//x.jpg", true},
		{`gallery\x.jpg`, true},
		{".", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := CleanKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("CleanKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("CleanKey(%q) error = %v, want ErrInvalidKey", tt.key, err)
			}
		})
	}
}

func TestDiskStore_SaveAndDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root, "/uploads/")
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}
	ctx := context.Background()

	url, err := store.Save(ctx, "gallery/photo.png", strings.NewReader("png-bytes"), 9, "image/png")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if url != "/uploads/gallery/photo.png" {
		t.Errorf("Save() url = %q, want %q", url, "/uploads/gallery/photo.png")
	}

	data, err := os.ReadFile(filepath.Join(root, "gallery", "photo.png"))
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("file content = %q", data)
	}

	// no temp files left behind
	entries, _ := os.ReadDir(filepath.Join(root, "gallery"))
	if len(entries) != 1 {
		t.Errorf("gallery dir has %d entries, want 1", len(entries))
	}

	if err := store.Delete(ctx, "gallery/photo.png"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "gallery/photo.png"); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
}

func TestDiskStore_RejectsTraversal(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	_, err = store.Save(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "text/plain")
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Save(../escape.txt) error = %v, want ErrInvalidKey", err)
	}
}

func TestKeyForURL(t *testing.T) {
	disk, err := NewDiskStore(t.TempDir(), "/uploads/")
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}
	bucket := &MinIOStore{publicURL: "https://cdn.example.com/memorial"}

	tests := []struct {
		name    string
		store   FileStore
		url     string
		wantKey string
		wantOK  bool
	}{
		{"disk upload", disk, "/uploads/gallery/a.png", "gallery/a.png", true},
		{"disk external link", disk, "https://example.com/a.png", "", false},
		{"disk traversal", disk, "/uploads/../etc/passwd", "", false},
		{"disk bare prefix", disk, "/uploads/", "", false},
		{"minio object", bucket, "https://cdn.example.com/memorial/site/bg.jpg", "site/bg.jpg", true},
		{"minio other bucket", bucket, "https://cdn.example.com/other/site/bg.jpg", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := tt.store.KeyForURL(tt.url)
			if ok != tt.wantOK || key != tt.wantKey {
				t.Errorf("KeyForURL(%q) = (%q, %v), want (%q, %v)", tt.url, key, ok, tt.wantKey, tt.wantOK)
			}
		})
	}
}

func TestClamdScanner_Unreachable(t *testing.T) {
	// nothing listens on port 1
	s := NewClamdScanner("tcp://127.0.0.1:1")

	err := s.Scan(context.Background(), strings.NewReader("hello"))
	if err == nil {
		t.Fatal("Scan() against an unreachable daemon succeeded")
	}
	if errors.Is(err, ErrInfected) {
		t.Error("a connection failure must not be reported as an infection")
	}
}
