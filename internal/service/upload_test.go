package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/storage"
)

// memFiles is a FileStore that keeps files in a map.
type memFiles struct {
	files map[string][]byte
}

func (m *memFiles) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.files[key] = data
	return "/uploads/" + key, nil
}

func (m *memFiles) Delete(_ context.Context, key string) error {
	delete(m.files, key)
	return nil
}

func (m *memFiles) KeyForURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, "/uploads/")
	return key, ok && key != ""
}

// stubScanner flags any file containing the EICAR marker.
type stubScanner struct{ err error }

func (s stubScanner) Scan(_ context.Context, r io.Reader) error {
	if s.err != nil {
		return s.err
	}
	data, _ := io.ReadAll(r)
	if bytes.Contains(data, []byte("EICAR")) {
		return fmt.Errorf("%w: Eicar-Test-Signature", storage.ErrInfected)
	}
	return nil
}

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	pdfBytes = []byte("%PDF-1.7\n%some pdf body\n")
)

func newUploadService(t *testing.T, scanner storage.Scanner, maxBytes int64) (*UploadService, *memFiles, *countingObserver) {
	t.Helper()
	files := &memFiles{files: map[string][]byte{}}
	obs := &countingObserver{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewUploadService(files, scanner, maxBytes, obs, logger), files, obs
}

func TestUpload_StoresImage(t *testing.T) {
	svc, files, obs := newUploadService(t, stubScanner{}, 1024)
	admin := &model.Account{ID: "admin", IsAdmin: true}

	res, err := svc.Upload(context.Background(), admin, "grandma.png", bytes.NewReader(pngBytes), UploadGallery)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", res.ContentType)
	}
	if !strings.HasPrefix(res.Key, "gallery/") || !strings.HasSuffix(res.Key, ".png") {
		t.Errorf("Key = %q, want gallery/<uuid>.png", res.Key)
	}
	if strings.Contains(res.Key, "grandma") {
		t.Error("client filename leaked into the storage key")
	}
	if res.URL != "/uploads/"+res.Key {
		t.Errorf("URL = %q", res.URL)
	}
	if !bytes.Equal(files.files[res.Key], pngBytes) {
		t.Error("stored bytes differ from upload")
	}
	if obs.uploads[UploadGallery] != 1 {
		t.Errorf("uploads[gallery] = %d, want 1", obs.uploads[UploadGallery])
	}
}

func TestUpload_PDFOnlyForProgram(t *testing.T) {
	svc, _, _ := newUploadService(t, nil, 1024)
	admin := &model.Account{ID: "admin", IsAdmin: true}
	ctx := context.Background()

	if _, err := svc.Upload(ctx, admin, "order.pdf", bytes.NewReader(pdfBytes), UploadProgram); err != nil {
		t.Errorf("Upload(pdf, program) error = %v", err)
	}
	if _, err := svc.Upload(ctx, admin, "order.pdf", bytes.NewReader(pdfBytes), UploadGallery); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Upload(pdf, gallery) error = %v, want ErrValidation", err)
	}
}

func TestUpload_Rejections(t *testing.T) {
	admin := &model.Account{ID: "admin", IsAdmin: true}
	member := &model.Account{ID: "member"}
	infected := append(append([]byte{}, pngBytes...), []byte("EICAR")...)

	tests := []struct {
		name     string
		actor    *model.Account
		data     []byte
		category string
		want     error
	}{
		{"anonymous", nil, pngBytes, UploadGallery, apperror.ErrUnauthorized},
		{"member", member, pngBytes, UploadGallery, apperror.ErrForbidden},
		{"unknown category", admin, pngBytes, "avatars", apperror.ErrValidation},
		{"empty file", admin, nil, UploadSite, apperror.ErrValidation},
		{"plain text", admin, []byte("hello, world"), UploadSite, apperror.ErrValidation},
		{"html disguised", admin, []byte("<html><script>alert(1)</script></html>"), UploadSite, apperror.ErrValidation},
		{"too large", admin, append(append([]byte{}, pngBytes...), make([]byte, 100)...), UploadSite, apperror.ErrValidation},
		{"infected", admin, infected, UploadSite, apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, files, _ := newUploadService(t, stubScanner{}, 64)

			_, err := svc.Upload(context.Background(), tt.actor, "f", bytes.NewReader(tt.data), tt.category)
			if !errors.Is(err, tt.want) {
				t.Errorf("Upload() error = %v, want %v", err, tt.want)
			}
			if len(files.files) != 0 {
				t.Error("rejected upload was stored")
			}
		})
	}
}

func TestUpload_ScannerFailureIsNotValidation(t *testing.T) {
	svc, _, _ := newUploadService(t, stubScanner{err: errors.New("clamd down")}, 1024)
	admin := &model.Account{ID: "admin", IsAdmin: true}

	_, err := svc.Upload(context.Background(), admin, "f.png", bytes.NewReader(pngBytes), UploadSite)
	if err == nil || errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Upload() error = %v, want an internal error", err)
	}
}

func TestNewUploadService_DefaultLimit(t *testing.T) {
	svc, _, _ := newUploadService(t, nil, 0)
	if svc.MaxBytes() != DefaultMaxUploadBytes {
		t.Errorf("MaxBytes() = %d, want %d", svc.MaxBytes(), DefaultMaxUploadBytes)
	}
}
